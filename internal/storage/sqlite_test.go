package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run, err := store.StartRun(ctx, "generate")
	require.NoError(t, err)
	assert.Len(t, run.ID, 36)
	assert.Equal(t, RunRunning, run.Status)

	run.Status = RunSucceeded
	run.Processed = 3
	run.Skipped = 1
	require.NoError(t, store.FinishRun(ctx, run))

	runs, err := store.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, RunSucceeded, runs[0].Status)
	assert.Equal(t, 3, runs[0].Processed)
	assert.Equal(t, 1, runs[0].Skipped)
	assert.False(t, runs[0].FinishedAt.IsZero())
}

func TestSQLiteStore_LookupBlock(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	hash := HashContent("# Page\n")
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveDocument(ctx, DocumentRecord{
		RunID: "r1", Path: "src/pages/a.md", ContentHash: hash, FAQCount: 2,
		Block: "---\ntitle: Old\n---", Status: DocGenerated, CreatedAt: older,
	}))
	require.NoError(t, store.SaveDocument(ctx, DocumentRecord{
		RunID: "r2", Path: "src/pages/a.md", ContentHash: hash, FAQCount: 2,
		Block: "---\ntitle: New\n---", Status: DocGenerated, CreatedAt: older.Add(time.Hour),
	}))
	require.NoError(t, store.SaveDocument(ctx, DocumentRecord{
		RunID: "r3", Path: "src/pages/a.md", ContentHash: hash,
		Status: DocSkipped, Error: "boom", CreatedAt: older.Add(2 * time.Hour),
	}))

	doc, ok, err := store.LookupBlock(ctx, "src/pages/a.md", hash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "---\ntitle: New\n---", doc.Block)
	assert.Equal(t, "r2", doc.RunID)

	_, ok, err = store.LookupBlock(ctx, "src/pages/a.md", HashContent("changed"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStore_SaveDocumentUpserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc := DocumentRecord{RunID: "r", Path: "a.md", ContentHash: "h", Block: "one", Status: DocGenerated}
	require.NoError(t, store.SaveDocument(ctx, doc))
	doc.Block = "two"
	require.NoError(t, store.SaveDocument(ctx, doc))

	got, ok, err := store.LookupBlock(ctx, "a.md", "h")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "two", got.Block)
}

func TestSQLiteStore_DeployResults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	results := []DeployRecord{
		{Path: "/b.md", Operation: "live", Method: "POST", Status: "success", HTTPStatus: 200, Note: "ok"},
		{Path: "/a.md", Operation: "live", Method: "DELETE", Status: "error", HTTPStatus: 500, Note: "bad"},
	}
	require.NoError(t, store.SaveDeployResults(ctx, "run", results))

	got, err := store.DeployResults(ctx, "run")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "/a.md", got[0].Path)
	assert.Equal(t, 500, got[0].HTTPStatus)

	empty, err := store.DeployResults(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestHashContent(t *testing.T) {
	assert.Equal(t, HashContent("a"), HashContent("a"))
	assert.NotEqual(t, HashContent("a"), HashContent("b"))
	assert.Len(t, HashContent(""), 64)
}
