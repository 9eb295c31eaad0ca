package executor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/bucketsort/internal/bucket"
	"github.com/harrison/bucketsort/internal/copier"
	"github.com/harrison/bucketsort/internal/fileutil"
	"github.com/harrison/bucketsort/internal/logger"
	"github.com/harrison/bucketsort/internal/models"
	"github.com/harrison/bucketsort/internal/retry"
)

// StateDirName is the directory under the output root holding bucketsort's
// own state, such as the per-bucket naming locks.
const StateDirName = ".bucketsort"

// Logger defines the interface for logging run progress and results.
type Logger interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogRunStart(runID, source, output string)
	LogOutcome(outcome models.Outcome)
	LogSummary(summary models.RunSummary)
}

// Recorder persists runs and their outcomes. Recording failures are logged
// and never abort a run.
type Recorder interface {
	BeginRun(summary *models.RunSummary) error
	RecordOutcome(runID string, outcome models.Outcome) error
	FinishRun(summary *models.RunSummary) error
}

// Options holds the run-wide settings. They are read-only during a run.
type Options struct {
	MaxWorkers         int           // Concurrent copies
	PrepareWorkers     int           // Workers doing mkdir and naming; 0 means 2*MaxWorkers
	Retries            int           // Retries after the first attempt
	RetryDelay         time.Duration // Wait before the first retry, doubled after each
	SkipLocked         bool          // Skip files held open by another process
	ExcludeGlobs       []string      // Patterns matched against root-relative paths
	MaxCopiesPerSecond float64       // Copy start throttle; 0 means unlimited
	HandleSignals      bool          // Cancel the run on SIGINT/SIGTERM
}

// Orchestrator walks the source tree, schedules one copy per retained file
// and aggregates the outcomes into a RunSummary.
type Orchestrator struct {
	opts     Options
	logger   Logger
	copier   copier.Copier
	locked   copier.LockedFunc
	sleep    retry.Sleeper
	recorder Recorder
	runID    string
}

// NewOrchestrator creates a new Orchestrator instance.
// The log parameter is optional and can be nil.
func NewOrchestrator(opts Options, log Logger) *Orchestrator {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Orchestrator{
		opts:   opts,
		logger: log,
		copier: copier.NewFSCopier(),
		locked: copier.IsLocked,
	}
}

// SetCopier replaces the copy primitive.
func (o *Orchestrator) SetCopier(c copier.Copier) {
	o.copier = c
}

// SetLockedFunc replaces the locked-file predicate.
func (o *Orchestrator) SetLockedFunc(f copier.LockedFunc) {
	o.locked = f
}

// SetSleeper replaces the backoff sleeper.
func (o *Orchestrator) SetSleeper(s retry.Sleeper) {
	o.sleep = s
}

// SetRecorder enables persistence of runs and outcomes.
func (o *Orchestrator) SetRecorder(r Recorder) {
	o.recorder = r
}

// SetRunID fixes the run identifier; by default a UUID is generated.
func (o *Orchestrator) SetRunID(id string) {
	o.runID = id
}

// Run classifies every file under source into extension buckets under
// output. It returns a PreflightError before scheduling anything when source
// is not a directory or output cannot be created. Per-file failures are
// recorded in the summary and do not produce an error. A cancelled run
// returns the partial summary together with the context error.
func (o *Orchestrator) Run(ctx context.Context, source, output string) (*models.RunSummary, error) {
	absSource, absOutput, filter, err := o.preflight(source, output)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if o.opts.HandleSignals {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		go func() {
			select {
			case <-sigChan:
				o.logger.LogWarn("Received interrupt signal, abandoning remaining files...")
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	runID := o.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	summary := &models.RunSummary{
		RunID:      runID,
		SourceRoot: absSource,
		OutputRoot: absOutput,
		StartedAt:  time.Now(),
	}

	o.logger.LogRunStart(runID, absSource, absOutput)
	if patterns := filter.Patterns(); len(patterns) > 0 {
		o.logger.LogInfo(fmt.Sprintf("Excluding: %s", strings.Join(patterns, ", ")))
	}
	if o.recorder != nil {
		if err := o.recorder.BeginRun(summary); err != nil {
			o.logger.LogWarn(fmt.Sprintf("Failed to record run start: %v", err))
		}
	}

	engine := retry.NewEngine(o.copier, o.opts.Retries, o.opts.RetryDelay, o.opts.SkipLocked)
	engine.Locked = o.locked
	engine.Sleep = o.sleep
	engine.Logger = o.logger

	namer := bucket.NewNamer(filepath.Join(absOutput, StateDirName, "locks"))
	namer.SetLogger(o.logger)
	sched := NewScheduler(engine, namer, absOutput, o.opts.MaxWorkers, o.opts.PrepareWorkers, o.logger)
	sched.SetRateLimit(o.opts.MaxCopiesPerSecond)

	tasks := make(chan models.FileTask, sched.Workers())
	results := make(chan models.Outcome, sched.Workers())

	var walkResult *fileutil.WalkResult
	var walkErr error
	go func() {
		defer close(tasks)
		walkResult, walkErr = fileutil.Walk(ctx, absSource, fileutil.WalkOptions{
			Exclude:  filter,
			Logger:   o.logger,
			SkipDirs: []string{absOutput},
		}, func(task models.FileTask) error {
			tasks <- task
			return nil
		})
	}()

	go func() {
		sched.Run(ctx, tasks, results)
		close(results)
	}()

	for outcome := range results {
		summary.Record(outcome)
		o.logger.LogOutcome(outcome)
		if o.recorder != nil {
			if err := o.recorder.RecordOutcome(runID, outcome); err != nil {
				o.logger.LogWarn(fmt.Sprintf("Failed to record outcome for %s: %v", outcome.Task.SourcePath, err))
			}
		}
	}

	if walkResult != nil {
		summary.Discovered = walkResult.Walked
		summary.Excluded = walkResult.Excluded
		for _, walkWarning := range walkResult.Errors {
			o.logger.LogWarn(walkWarning.Error())
		}
	}
	summary.Duration = time.Since(summary.StartedAt)

	if summary.Total() == 0 && ctx.Err() == nil && walkErr == nil {
		o.logger.LogInfo(fmt.Sprintf("No files found in %s", absSource))
	}

	if o.recorder != nil {
		if err := o.recorder.FinishRun(summary); err != nil {
			o.logger.LogWarn(fmt.Sprintf("Failed to record run summary: %v", err))
		}
	}
	o.logger.LogSummary(*summary)

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("run interrupted: %w", err)
	}
	if walkErr != nil {
		return summary, fmt.Errorf("failed to walk %s: %w", absSource, walkErr)
	}
	return summary, nil
}

// preflight validates the roots and the exclusion patterns before any work
// is scheduled, creating the output root when missing.
func (o *Orchestrator) preflight(source, output string) (string, string, *fileutil.ExcludeFilter, error) {
	absSource, err := filepath.Abs(source)
	if err != nil {
		return "", "", nil, NewPreflightError(source, "cannot resolve source directory", err)
	}
	if err := fileutil.ValidateRoot(absSource); err != nil {
		return "", "", nil, NewPreflightError(absSource, "invalid source directory", err)
	}

	filter, err := fileutil.NewExcludeFilter(o.opts.ExcludeGlobs)
	if err != nil {
		return "", "", nil, NewPreflightError(absSource, "invalid exclusion pattern", err)
	}

	absOutput, err := filepath.Abs(output)
	if err != nil {
		return "", "", nil, NewPreflightError(output, "cannot resolve output directory", err)
	}
	if absOutput == absSource {
		return "", "", nil, NewPreflightError(absOutput, "output directory must differ from source directory", nil)
	}
	if err := os.MkdirAll(absOutput, 0755); err != nil {
		return "", "", nil, NewPreflightError(absOutput, "cannot create output directory", err)
	}

	return absSource, absOutput, filter, nil
}
