package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			stage TEXT,
			status TEXT,
			started_at TIMESTAMP,
			finished_at TIMESTAMP,
			processed INTEGER DEFAULT 0,
			skipped INTEGER DEFAULT 0,
			failed INTEGER DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS documents (
			run_id TEXT,
			path TEXT,
			content_hash TEXT,
			faq_count INTEGER,
			block TEXT,
			status TEXT,
			error TEXT,
			created_at TIMESTAMP,
			PRIMARY KEY (run_id, path)
		);`,
		`CREATE TABLE IF NOT EXISTS deploy_results (
			run_id TEXT,
			path TEXT,
			operation TEXT,
			method TEXT,
			status TEXT,
			http_status INTEGER,
			note TEXT,
			PRIMARY KEY (run_id, path, method)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_documents_lookup ON documents(path, content_hash);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// --- Ledger Implementation ---

func (s *SQLiteStore) StartRun(ctx context.Context, stage string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Stage:     stage,
		Status:    RunRunning,
		StartedAt: s.now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, stage, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Stage, run.Status, run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	return run, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *Run) error {
	run.FinishedAt = s.now()
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status=?, finished_at=?, processed=?, skipped=?, failed=?
		WHERE id=?
	`, run.Status, run.FinishedAt, run.Processed, run.Skipped, run.Failed, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", run.ID, err)
	}
	return nil
}

func (s *SQLiteStore) SaveDocument(ctx context.Context, doc DocumentRecord) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (run_id, path, content_hash, faq_count, block, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, path) DO UPDATE SET
			content_hash=excluded.content_hash,
			faq_count=excluded.faq_count,
			block=excluded.block,
			status=excluded.status,
			error=excluded.error,
			created_at=excluded.created_at
	`, doc.RunID, doc.Path, doc.ContentHash, doc.FAQCount, doc.Block, doc.Status, doc.Error, doc.CreatedAt)
	return err
}

func (s *SQLiteStore) LookupBlock(ctx context.Context, path, contentHash string) (DocumentRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, path, content_hash, faq_count, block, status, error, created_at
		FROM documents
		WHERE path = ? AND content_hash = ? AND status IN (?, ?)
		ORDER BY created_at DESC
		LIMIT 1
	`, path, contentHash, DocGenerated, DocReused)

	var doc DocumentRecord
	var errText sql.NullString
	err := row.Scan(&doc.RunID, &doc.Path, &doc.ContentHash, &doc.FAQCount, &doc.Block, &doc.Status, &errText, &doc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return DocumentRecord{}, false, nil
	}
	if err != nil {
		return DocumentRecord{}, false, err
	}
	doc.Error = errText.String
	return doc, true, nil
}

func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, stage, status, started_at, finished_at, processed, skipped, failed
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Stage, &r.Status, &r.StartedAt, &finished, &r.Processed, &r.Skipped, &r.Failed); err != nil {
			return nil, err
		}
		r.FinishedAt = finished.Time
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// --- DeployLog Implementation ---

func (s *SQLiteStore) SaveDeployResults(ctx context.Context, runID string, results []DeployRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO deploy_results (run_id, path, operation, method, status, http_status, note)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, path, method) DO UPDATE SET
			operation=excluded.operation,
			status=excluded.status,
			http_status=excluded.http_status,
			note=excluded.note
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range results {
		if _, err := stmt.ExecContext(ctx, runID, r.Path, r.Operation, r.Method, r.Status, r.HTTPStatus, r.Note); err != nil {
			return fmt.Errorf("failed to save deploy result %s: %w", r.Path, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) DeployResults(ctx context.Context, runID string) ([]DeployRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, operation, method, status, http_status, note
		FROM deploy_results WHERE run_id = ? ORDER BY path, method
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DeployRecord
	for rows.Next() {
		var r DeployRecord
		if err := rows.Scan(&r.Path, &r.Operation, &r.Method, &r.Status, &r.HTTPStatus, &r.Note); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
