package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harrison/bucketsort/internal/copier"
	"github.com/harrison/bucketsort/internal/models"
)

// Logger receives per-attempt diagnostics from the engine.
type Logger interface {
	LogDebug(message string)
	LogWarn(message string)
	LogError(message string)
}

// Sleeper waits for d, returning early with ctx.Err() if ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// TimerSleep is the default Sleeper.
func TimerSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Engine runs one file copy with retries. An Engine holds no per-file state
// and is safe for concurrent use once configured.
type Engine struct {
	Copier     copier.Copier
	Locked     copier.LockedFunc // nil means copier.IsLocked
	Backoff    *ExponentialBackoff
	Retries    int
	SkipLocked bool
	Sleep      Sleeper // nil means TimerSleep
	Logger     Logger  // nil disables logging

	// OnRetry, when set, is called before each backoff wait. attempt is the
	// 1-based number of the attempt that just failed.
	OnRetry func(task models.FileTask, attempt int, err error, delay time.Duration)
}

// NewEngine creates an Engine with a doubling backoff starting at delay.
func NewEngine(c copier.Copier, retries int, delay time.Duration, skipLocked bool) *Engine {
	return &Engine{
		Copier:     c,
		Backoff:    NewExponentialBackoff(delay),
		Retries:    retries,
		SkipLocked: skipLocked,
	}
}

// Run copies task to dst and returns the outcome. It never returns an error:
// every failure, including cancellation, becomes a Failed outcome.
func (e *Engine) Run(ctx context.Context, task models.FileTask, dst string) models.Outcome {
	start := time.Now()
	outcome := e.run(ctx, task, dst)
	outcome.Duration = time.Since(start)
	return outcome
}

func (e *Engine) run(ctx context.Context, task models.FileTask, dst string) models.Outcome {
	locked := e.Locked
	if locked == nil {
		locked = copier.IsLocked
	}
	sleep := e.Sleep
	if sleep == nil {
		sleep = TimerSleep
	}
	backoff := e.Backoff
	if backoff == nil {
		backoff = NewExponentialBackoff(0)
	}
	maxAttempts := e.Retries + 1

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return models.Failed(task, dst, attempt-1, err)
		}

		e.logDebug(fmt.Sprintf("Attempt %d/%d: %s -> %s", attempt, maxAttempts, task.SourcePath, dst))
		err := e.Copier.Copy(ctx, task.SourcePath, dst)
		if err == nil {
			e.logDebug(fmt.Sprintf("Copied %s -> %s (attempt %d)", task.SourcePath, dst, attempt))
			return models.Success(task, dst, attempt)
		}

		if e.SkipLocked && locked(err) {
			e.logWarn(fmt.Sprintf("Skipping locked file %s -> %s (attempt %d): %v", task.SourcePath, dst, attempt, err))
			return models.SkippedLocked(task, dst, attempt, err)
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			e.logError(fmt.Sprintf("Copy of %s -> %s interrupted (attempt %d): %v", task.SourcePath, dst, attempt, err))
			return models.Failed(task, dst, attempt, err)
		}

		if attempt >= maxAttempts {
			e.logError(fmt.Sprintf("Failed to copy %s -> %s after %d attempts: %v", task.SourcePath, dst, attempt, err))
			return models.Failed(task, dst, attempt, err)
		}

		delay := backoff.NextDelay(attempt - 1)
		e.logWarn(fmt.Sprintf("Attempt %d/%d failed for %s -> %s: %v; retrying in %s",
			attempt, maxAttempts, task.SourcePath, dst, err, delay))
		if e.OnRetry != nil {
			e.OnRetry(task, attempt, err, delay)
		}

		if err := sleep(ctx, delay); err != nil {
			return models.Failed(task, dst, attempt, err)
		}
	}
}

func (e *Engine) logDebug(message string) {
	if e.Logger != nil {
		e.Logger.LogDebug(message)
	}
}

func (e *Engine) logWarn(message string) {
	if e.Logger != nil {
		e.Logger.LogWarn(message)
	}
}

func (e *Engine) logError(message string) {
	if e.Logger != nil {
		e.Logger.LogError(message)
	}
}
