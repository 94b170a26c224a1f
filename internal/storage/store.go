package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Store combines the generation ledger and the deploy log.
type Store interface {
	Ledger
	DeployLog
	Close() error
}

// Ledger records pipeline runs and the metadata blocks they produced.
type Ledger interface {
	// StartRun opens a run for stage and assigns it an id.
	StartRun(ctx context.Context, stage string) (*Run, error)

	// FinishRun stores the final status and counters of run.
	FinishRun(ctx context.Context, run *Run) error

	// SaveDocument records the outcome for one document of a run.
	SaveDocument(ctx context.Context, doc DocumentRecord) error

	// LookupBlock returns the most recent generated block for path whose
	// source had contentHash.
	LookupBlock(ctx context.Context, path, contentHash string) (DocumentRecord, bool, error)

	// RecentRuns lists the newest runs first.
	RecentRuns(ctx context.Context, limit int) ([]Run, error)
}

// DeployLog records per-file deploy results.
type DeployLog interface {
	SaveDeployResults(ctx context.Context, runID string, results []DeployRecord) error
	DeployResults(ctx context.Context, runID string) ([]DeployRecord, error)
}

type Run struct {
	ID         string
	Stage      string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
	Processed  int
	Skipped    int
	Failed     int
}

const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
	RunEmpty     = "empty"
)

// Document statuses.
const (
	DocGenerated = "generated"
	DocReused    = "reused"
	DocSkipped   = "skipped"
)

type DocumentRecord struct {
	RunID       string
	Path        string
	ContentHash string
	FAQCount    int
	Block       string
	Status      string
	Error       string
	CreatedAt   time.Time
}

type DeployRecord struct {
	Path       string
	Operation  string
	Method     string
	Status     string
	HTTPStatus int
	Note       string
}

// HashContent returns the hex SHA-256 of content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
