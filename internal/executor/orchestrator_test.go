package executor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/bucketsort/internal/copier"
	"github.com/harrison/bucketsort/internal/filelock"
	"github.com/harrison/bucketsort/internal/models"
)

type recordingLogger struct {
	mu       sync.Mutex
	lines    []string
	outcomes []models.Outcome
	summary  *models.RunSummary
	runID    string
}

func (r *recordingLogger) add(level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, level+" "+msg)
}

func (r *recordingLogger) LogDebug(message string) { r.add("DEBUG", message) }
func (r *recordingLogger) LogInfo(message string)  { r.add("INFO", message) }
func (r *recordingLogger) LogWarn(message string)  { r.add("WARN", message) }
func (r *recordingLogger) LogError(message string) { r.add("ERROR", message) }

func (r *recordingLogger) LogRunStart(runID, source, output string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runID = runID
}

func (r *recordingLogger) LogOutcome(o models.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *recordingLogger) LogSummary(s models.RunSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary = &s
}

func (r *recordingLogger) contains(fragment string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lines {
		if strings.Contains(l, fragment) {
			return true
		}
	}
	return false
}

type recordingRecorder struct {
	began    int
	outcomes int
	finished *models.RunSummary
}

func (r *recordingRecorder) BeginRun(s *models.RunSummary) error {
	r.began++
	return nil
}

func (r *recordingRecorder) RecordOutcome(runID string, o models.Outcome) error {
	r.outcomes++
	return nil
}

func (r *recordingRecorder) FinishRun(s *models.RunSummary) error {
	r.finished = s
	return errors.New("ledger unavailable")
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

// listTree returns every regular file under root as slash paths, skipping
// bucketsort's own state directory.
func listTree(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == StateDirName {
			return filepath.SkipDir
		}
		if d.Type().IsRegular() {
			rel, _ := filepath.Rel(root, path)
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(files)
	return files
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func TestOrchestratorEndToEnd(t *testing.T) {
	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "sorted")
	writeFiles(t, src, map[string]string{
		"a.txt":      "alpha",
		"b.TXT":      "bravo",
		"c":          "charlie",
		"skip/d.log": "delta",
	})

	log := &recordingLogger{}
	o := NewOrchestrator(Options{
		MaxWorkers:   4,
		Retries:      3,
		RetryDelay:   500 * time.Millisecond,
		ExcludeGlobs: []string{"skip/*"},
	}, log)

	summary, err := o.Run(context.Background(), src, out)
	require.NoError(t, err)

	assert.Equal(t, []string{"no_extension/c", "txt/a.txt", "txt/b.TXT"}, listTree(t, out))
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 0, summary.SkippedLocked)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 4, summary.Discovered)
	assert.Equal(t, 1, summary.Excluded)
	assert.True(t, summary.Clean())

	data, err := os.ReadFile(filepath.Join(out, "txt", "b.TXT"))
	require.NoError(t, err)
	assert.Equal(t, "bravo", string(data))

	require.NotNil(t, log.summary)
	assert.Equal(t, summary.RunID, log.runID)
	assert.Len(t, log.outcomes, 3)
	assert.True(t, log.contains(`Excluded by glob "skip/*"`))
	assert.True(t, log.contains("INFO Excluding: skip/*"))
}

func TestOrchestratorOneOutcomePerFile(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()

	files := make(map[string]string)
	for i := 0; i < 40; i++ {
		files[fmt.Sprintf("dir%d/file%d.dat", i%5, i)] = "x"
	}
	files["ignored/x.tmp"] = "x"
	writeFiles(t, src, files)

	var mu sync.Mutex
	copied := make(map[string]int)
	o := NewOrchestrator(Options{MaxWorkers: 3, ExcludeGlobs: []string{"*.tmp"}}, nil)
	o.SetCopier(copier.CopierFunc(func(ctx context.Context, s, d string) error {
		mu.Lock()
		copied[s]++
		mu.Unlock()
		return nil
	}))

	summary, err := o.Run(context.Background(), src, out)
	require.NoError(t, err)

	assert.Equal(t, 40, summary.Total())
	assert.Len(t, copied, 40)
	for path, n := range copied {
		assert.Equal(t, 1, n, "file %s copied %d times", path, n)
		assert.False(t, strings.HasSuffix(path, ".tmp"), "excluded file %s was copied", path)
	}
}

func TestOrchestratorConcurrencyBound(t *testing.T) {
	const maxWorkers = 2
	const files = 7

	src := t.TempDir()
	out := t.TempDir()
	names := make(map[string]string)
	for i := 0; i < files; i++ {
		names[fmt.Sprintf("f%d.bin", i)] = "payload"
	}
	writeFiles(t, src, names)

	var inFlight, peak atomic.Int32
	release := make(chan struct{})

	o := NewOrchestrator(Options{MaxWorkers: maxWorkers, PrepareWorkers: 6}, nil)
	o.SetCopier(copier.CopierFunc(func(ctx context.Context, s, d string) error {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}))

	type runResult struct {
		summary *models.RunSummary
		err     error
	}
	done := make(chan runResult, 1)
	go func() {
		s, err := o.Run(context.Background(), src, out)
		done <- runResult{s, err}
	}()

	deadline := time.Now().Add(5 * time.Second)
	for inFlight.Load() < maxWorkers {
		if time.Now().After(deadline) {
			t.Fatal("copies never saturated the permits")
		}
		time.Sleep(time.Millisecond)
	}
	// Give any over-admitted copy a chance to show up.
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, inFlight.Load(), int32(maxWorkers))

	close(release)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, files, r.summary.Succeeded)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish after releasing copies")
	}
	assert.Equal(t, int32(maxWorkers), peak.Load())
}

func TestOrchestratorCollisionNaming(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFiles(t, src, map[string]string{
		"one/report.pdf":   "1",
		"two/report.pdf":   "2",
		"three/report.pdf": "3",
		"Summary.PDF":      "4",
	})

	o := NewOrchestrator(Options{MaxWorkers: 4}, nil)
	summary, err := o.Run(context.Background(), src, out)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Succeeded)

	assert.Equal(t, []string{
		"pdf/Summary.PDF",
		"pdf/report (1).pdf",
		"pdf/report (2).pdf",
		"pdf/report.pdf",
	}, listTree(t, out))

	contents := make(map[string]bool)
	for _, f := range listTree(t, out) {
		data, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(f)))
		require.NoError(t, err)
		contents[string(data)] = true
	}
	assert.Len(t, contents, 4, "every source must land in its own file")
}

func TestOrchestratorSecondRunDisambiguates(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFiles(t, src, map[string]string{"a.txt": "a"})

	for i := 0; i < 3; i++ {
		_, err := NewOrchestrator(Options{MaxWorkers: 1}, nil).Run(context.Background(), src, out)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"txt/a (1).txt", "txt/a (2).txt", "txt/a.txt"}, listTree(t, out))
}

func TestOrchestratorBucketCreationFailure(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFiles(t, src, map[string]string{"a.txt": "a", "b.md": "b"})
	// A regular file where the txt bucket should go.
	require.NoError(t, os.WriteFile(filepath.Join(out, "txt"), []byte("blocker"), 0644))

	log := &recordingLogger{}
	summary, err := NewOrchestrator(Options{MaxWorkers: 2}, log).Run(context.Background(), src, out)
	require.NoError(t, err, "per-file failures must not abort the run")

	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.FailedFiles, 1)
	var te *TaskError
	require.ErrorAs(t, summary.FailedFiles[0].Err, &te)
	assert.Equal(t, PhasePrepare, te.Phase)
	assert.Equal(t, "a.txt", summary.FailedFiles[0].Task.RelPath)
	assert.True(t, log.contains("failed to create bucket directory"))
}

func TestOrchestratorFailedCopyReleasesReservation(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFiles(t, src, map[string]string{"a.txt": "a"})

	var calls atomic.Int32
	o := NewOrchestrator(Options{MaxWorkers: 1, Retries: 2, RetryDelay: time.Second}, nil)
	o.SetSleeper(noSleep)
	o.SetCopier(copier.CopierFunc(func(ctx context.Context, s, d string) error {
		calls.Add(1)
		return errors.New("device not ready")
	}))

	summary, err := o.Run(context.Background(), src, out)
	require.NoError(t, err)

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 3, summary.FailedFiles[0].Attempts)
	assert.Empty(t, listTree(t, out), "a failed copy must not leave a placeholder behind")
}

func TestOrchestratorSkipLocked(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFiles(t, src, map[string]string{"locked.db": "x", "free.db": "y"})

	errInUse := errors.New("in use")
	o := NewOrchestrator(Options{MaxWorkers: 2, Retries: 3, SkipLocked: true}, nil)
	o.SetSleeper(noSleep)
	o.SetLockedFunc(func(err error) bool { return errors.Is(err, errInUse) })
	o.SetCopier(copier.CopierFunc(func(ctx context.Context, s, d string) error {
		if filepath.Base(s) == "locked.db" {
			return errInUse
		}
		return copier.NewFSCopier().Copy(ctx, s, d)
	}))

	summary, err := o.Run(context.Background(), src, out)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.SkippedLocked)
	assert.Equal(t, 0, summary.Failed)
	require.Len(t, summary.SkippedFiles, 1)
	assert.Equal(t, 1, summary.SkippedFiles[0].Attempts)
	assert.Equal(t, []string{"db/free.db"}, listTree(t, out))
}

func TestOrchestratorPreflight(t *testing.T) {
	tmp := t.TempDir()
	file := filepath.Join(tmp, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	tests := []struct {
		name   string
		source string
		output string
		opts   Options
	}{
		{"missing source", filepath.Join(tmp, "missing"), filepath.Join(tmp, "out"), Options{MaxWorkers: 1}},
		{"source is a file", file, filepath.Join(tmp, "out"), Options{MaxWorkers: 1}},
		{"output below a file", tmp, filepath.Join(file, "out"), Options{MaxWorkers: 1}},
		{"output equals source", tmp, tmp, Options{MaxWorkers: 1}},
		{"bad pattern", tmp, filepath.Join(tmp, "out"), Options{MaxWorkers: 1, ExcludeGlobs: []string{"[unclosed"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			o := NewOrchestrator(tt.opts, nil)
			o.SetCopier(copier.CopierFunc(func(ctx context.Context, s, d string) error {
				calls.Add(1)
				return nil
			}))

			summary, err := o.Run(context.Background(), tt.source, tt.output)
			require.Error(t, err)
			assert.True(t, IsPreflightError(err), "got %T: %v", err, err)
			assert.Nil(t, summary)
			assert.Zero(t, calls.Load())
		})
	}
}

func TestOrchestratorEmptySource(t *testing.T) {
	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	log := &recordingLogger{}

	summary, err := NewOrchestrator(Options{MaxWorkers: 2}, log).Run(context.Background(), src, out)
	require.NoError(t, err)

	assert.Zero(t, summary.Total())
	assert.True(t, log.contains("No files found"))
	assert.DirExists(t, out)
}

func TestOrchestratorOutputInsideSource(t *testing.T) {
	src := t.TempDir()
	writeFiles(t, src, map[string]string{"a.txt": "a", "sorted/txt/old.txt": "old"})

	summary, err := NewOrchestrator(Options{MaxWorkers: 2}, nil).Run(context.Background(), src, filepath.Join(src, "sorted"))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Succeeded, "files already in the output tree are not re-sorted")
}

func TestOrchestratorCancellation(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	files := make(map[string]string)
	for i := 0; i < 10; i++ {
		files[fmt.Sprintf("f%d.txt", i)] = "x"
	}
	writeFiles(t, src, files)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o := NewOrchestrator(Options{MaxWorkers: 1, PrepareWorkers: 1}, nil)
	var started sync.Once
	o.SetCopier(copier.CopierFunc(func(ctx context.Context, s, d string) error {
		started.Do(cancel)
		<-ctx.Done()
		return ctx.Err()
	}))

	summary, err := o.Run(ctx, src, out)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.Zero(t, summary.Succeeded)
	assert.Equal(t, summary.Total(), summary.Failed, "every scheduled file reports an outcome")
	assert.Empty(t, listTree(t, out), "cancelled copies leave no files behind")
}

func TestOrchestratorCancellationWhileBucketLockedElsewhere(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFiles(t, src, map[string]string{"a.txt": "a", "b.txt": "b", "c.txt": "c"})

	// Another bucketsort process naming into the same bucket holds its lock.
	lockDir := filepath.Join(out, StateDirName, "locks")
	require.NoError(t, os.MkdirAll(lockDir, 0755))
	held := filelock.NewFileLock(filepath.Join(lockDir, "txt.lock"))
	require.NoError(t, held.Lock())
	defer held.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	type result struct {
		summary *models.RunSummary
		err     error
	}
	done := make(chan result, 1)
	go func() {
		summary, err := NewOrchestrator(Options{MaxWorkers: 2}, nil).Run(ctx, src, out)
		done <- result{summary, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after its context was cancelled")
	}

	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, context.DeadlineExceeded)
	require.NotNil(t, res.summary)
	assert.Equal(t, 3, res.summary.Failed)
	for _, o := range res.summary.FailedFiles {
		assert.ErrorIs(t, o.Err, context.DeadlineExceeded)
		assert.Empty(t, o.Destination)
	}
	assert.Empty(t, listTree(t, out))
}

func TestOrchestratorRecorder(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFiles(t, src, map[string]string{"a.txt": "a", "b.txt": "b"})

	rec := &recordingRecorder{}
	log := &recordingLogger{}
	o := NewOrchestrator(Options{MaxWorkers: 2}, log)
	o.SetRecorder(rec)
	o.SetRunID("run-123")

	summary, err := o.Run(context.Background(), src, out)
	require.NoError(t, err)

	assert.Equal(t, "run-123", summary.RunID)
	assert.Equal(t, 1, rec.began)
	assert.Equal(t, 2, rec.outcomes)
	assert.Same(t, summary, rec.finished)
	assert.True(t, log.contains("Failed to record run summary"), "recorder errors are logged, not returned")
}
