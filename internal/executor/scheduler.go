package executor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/harrison/bucketsort/internal/bucket"
	"github.com/harrison/bucketsort/internal/logger"
	"github.com/harrison/bucketsort/internal/models"
)

// CopyRunner runs the retry-wrapped copy of one file into a resolved destination.
type CopyRunner interface {
	Run(ctx context.Context, task models.FileTask, dst string) models.Outcome
}

// Namer reserves collision-free destination paths.
type Namer interface {
	Reserve(ctx context.Context, dir, filename string) (string, error)
	Release(path string) error
}

// Scheduler processes FileTasks with a fixed pool of workers.
//
// Each worker prepares a task (bucket directory, reserved destination name)
// without holding a copy permit, then acquires one of maxCopies permits for
// the copy and its retries. At most maxCopies copies are in flight at any
// time, while preparation for other files continues.
type Scheduler struct {
	runner     CopyRunner
	namer      Namer
	outputRoot string
	workers    int
	copySlots  *semaphore.Weighted
	limiter    *rate.Limiter
	logger     Logger
}

// NewScheduler creates a Scheduler. maxCopies below 1 is treated as 1; a
// worker count below maxCopies is raised to 2*maxCopies. log may be nil.
func NewScheduler(runner CopyRunner, namer Namer, outputRoot string, maxCopies, workers int, log Logger) *Scheduler {
	if maxCopies < 1 {
		maxCopies = 1
	}
	if workers < maxCopies {
		workers = 2 * maxCopies
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Scheduler{
		runner:     runner,
		namer:      namer,
		outputRoot: outputRoot,
		workers:    workers,
		copySlots:  semaphore.NewWeighted(int64(maxCopies)),
		logger:     log,
	}
}

// SetRateLimit throttles copy starts to perSecond. Zero or less disables it.
func (s *Scheduler) SetRateLimit(perSecond float64) {
	if perSecond <= 0 {
		s.limiter = nil
		return
	}
	burst := int(math.Ceil(perSecond))
	s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Workers returns the size of the worker pool.
func (s *Scheduler) Workers() int {
	return s.workers
}

// Run drains tasks and sends exactly one outcome per task to results. It
// returns once tasks is closed and every worker has finished; results is
// left open. Tasks received after ctx is done are reported as Failed
// without being copied, so the caller must keep draining results.
func (s *Scheduler) Run(ctx context.Context, tasks <-chan models.FileTask, results chan<- models.Outcome) {
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				results <- s.process(ctx, task)
			}
		}()
	}
	wg.Wait()
}

// process runs one task through mkdir, naming and the copy. Directory
// creation happens before naming, naming before the copy.
func (s *Scheduler) process(ctx context.Context, task models.FileTask) (outcome models.Outcome) {
	start := time.Now()
	var dst string

	defer func() {
		if r := recover(); r != nil {
			s.release(dst)
			err := NewTaskError(task.SourcePath, PhaseCopy, "unexpected panic", fmt.Errorf("%v", r))
			s.logger.LogError(err.Error())
			outcome = models.Failed(task, dst, outcome.Attempts, err)
		}
		if outcome.Duration == 0 {
			outcome.Duration = time.Since(start)
		}
	}()

	if err := ctx.Err(); err != nil {
		return models.Failed(task, "", 0, err)
	}

	dir, err := bucket.EnsureDir(s.outputRoot, bucket.Classify(task.SourcePath))
	if err != nil {
		return s.prepareFailed(task, "failed to create bucket directory", err)
	}
	dst, err = s.namer.Reserve(ctx, dir, task.Name())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.Failed(task, "", 0, ctxErr)
		}
		return s.prepareFailed(task, "failed to reserve destination", err)
	}
	s.logger.LogDebug(fmt.Sprintf("Resolved %s -> %s", task.SourcePath, dst))

	if err := s.acquire(ctx); err != nil {
		s.release(dst)
		return models.Failed(task, dst, 0, NewTaskError(task.SourcePath, PhaseSchedule, "failed to acquire copy permit", err))
	}
	outcome = s.copy(ctx, task, dst)

	if outcome.Kind != models.OutcomeSuccess {
		s.release(dst)
	}
	return outcome
}

func (s *Scheduler) copy(ctx context.Context, task models.FileTask, dst string) models.Outcome {
	defer s.copySlots.Release(1)
	return s.runner.Run(ctx, task, dst)
}

// acquire waits for the throttle, then for a copy permit.
func (s *Scheduler) acquire(ctx context.Context) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return s.copySlots.Acquire(ctx, 1)
}

func (s *Scheduler) prepareFailed(task models.FileTask, msg string, err error) models.Outcome {
	taskErr := NewTaskError(task.SourcePath, PhasePrepare, msg, err)
	s.logger.LogError(taskErr.Error())
	return models.Failed(task, "", 0, taskErr)
}

// release removes a reservation that did not receive a complete copy.
func (s *Scheduler) release(dst string) {
	if dst == "" {
		return
	}
	if err := s.namer.Release(dst); err != nil {
		s.logger.LogWarn(err.Error())
	}
}
