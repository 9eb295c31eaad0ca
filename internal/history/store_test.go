package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/bucketsort/internal/models"
)

func TestNewStore(t *testing.T) {
	tests := []struct {
		name    string
		dbPath  func(t *testing.T) string
		wantErr bool
	}{
		{
			name: "valid path",
			dbPath: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "history.db")
			},
		},
		{
			name:   "in-memory database",
			dbPath: func(t *testing.T) string { return ":memory:" },
		},
		{
			name: "creates nested directories",
			dbPath: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "a", "b", "history.db")
			},
		},
		{
			name: "parent is a file",
			dbPath: func(t *testing.T) string {
				dir := t.TempDir()
				blocker := filepath.Join(dir, "blocker")
				require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
				return filepath.Join(blocker, "history.db")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.dbPath(t)
			store, err := NewStore(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer store.Close()

			assert.Equal(t, path, store.Path())
			version, err := store.GetLatestVersion()
			require.NoError(t, err)
			assert.Equal(t, len(migrations), version)
		})
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.ApplyMigrations(context.Background()))
	require.NoError(t, store.Close())

	store, err = NewStore(path)
	require.NoError(t, err)
	defer store.Close()

	version, err := store.GetLatestVersion()
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)
}

func newSummary(id string, started time.Time) *models.RunSummary {
	return &models.RunSummary{
		RunID:      id,
		SourceRoot: "/src",
		OutputRoot: "/out",
		StartedAt:  started,
	}
}

func TestRunLifecycle(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	summary := newSummary("run-1", started)
	require.NoError(t, store.BeginRun(summary))

	task := models.FileTask{SourcePath: "/src/a.txt", RelPath: "a.txt"}
	ok := models.Success(task, "/out/txt/a.txt", 1)
	ok.Duration = 15 * time.Millisecond
	bad := models.Failed(models.FileTask{SourcePath: "/src/b.bin", RelPath: "b.bin"}, "/out/bin/b.bin", 4, errors.New("disk full"))
	locked := models.SkippedLocked(models.FileTask{SourcePath: "/src/c.doc", RelPath: "c.doc"}, "/out/doc/c.doc", 1, errors.New("in use"))

	for _, o := range []models.Outcome{ok, bad, locked} {
		require.NoError(t, store.RecordOutcome(summary.RunID, o))
		summary.Record(o)
	}

	runs, err := store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.False(t, runs[0].Finished())

	summary.Discovered = 4
	summary.Excluded = 1
	summary.Duration = 2 * time.Second
	require.NoError(t, store.FinishRun(summary))

	runs, err = store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	run := runs[0]
	assert.True(t, run.Finished())
	assert.Equal(t, "run-1", run.RunID)
	assert.Equal(t, "/src", run.SourceRoot)
	assert.Equal(t, "/out", run.OutputRoot)
	assert.True(t, started.Equal(run.StartedAt))
	assert.True(t, started.Add(2*time.Second).Equal(run.FinishedAt))
	assert.Equal(t, 2*time.Second, run.Duration)
	assert.Equal(t, 4, run.Discovered)
	assert.Equal(t, 1, run.Excluded)
	assert.Equal(t, 1, run.Succeeded)
	assert.Equal(t, 1, run.SkippedLocked)
	assert.Equal(t, 1, run.Failed)

	outcomes, err := store.GetOutcomes(context.Background(), "run-1", "")
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.Equal(t, "a.txt", outcomes[0].RelPath)
	assert.Equal(t, "success", outcomes[0].Kind)
	assert.Equal(t, "", outcomes[0].Reason)
	assert.Equal(t, 15*time.Millisecond, outcomes[0].Duration)
	assert.Equal(t, "/out/bin/b.bin", outcomes[1].Destination)
	assert.Equal(t, 4, outcomes[1].Attempts)
	assert.Equal(t, "disk full", outcomes[1].Reason)

	failed, err := store.GetOutcomes(context.Background(), "run-1", "failed")
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "/src/b.bin", failed[0].SourcePath)
}

func TestListRunsNewestFirstWithLimit(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		require.NoError(t, store.BeginRun(newSummary(id, base.Add(time.Duration(i)*time.Hour))))
	}

	runs, err := store.ListRuns(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "third", runs[0].RunID)
	assert.Equal(t, "second", runs[1].RunID)
}

func TestBeginRunDuplicateID(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	summary := newSummary("dup", time.Now())
	require.NoError(t, store.BeginRun(summary))
	assert.Error(t, store.BeginRun(summary))
}

func TestFinishRunUnknown(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	err = store.FinishRun(newSummary("missing", time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestRecordOutcomeRequiresRun(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	task := models.FileTask{SourcePath: "/src/a", RelPath: "a"}
	assert.Error(t, store.RecordOutcome("nope", models.Success(task, "/out/a", 1)))
}
