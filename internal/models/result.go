package models

import (
	"fmt"
	"time"
)

// OutcomeKind tags the variant of an Outcome.
type OutcomeKind int

const (
	OutcomeSuccess       OutcomeKind = iota // File copied
	OutcomeSkippedLocked                    // File held open by another process, skipped by policy
	OutcomeFailed                           // Copy or preparation failed
)

// String returns the string representation of OutcomeKind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeSkippedLocked:
		return "skipped_locked"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of processing one FileTask. It is produced exactly
// once per task and never mutated afterwards.
type Outcome struct {
	Task        FileTask
	Kind        OutcomeKind
	Destination string        // Resolved target path, empty if naming failed
	Attempts    int           // Copy attempts performed
	Err         error         // Triggering error for Failed and SkippedLocked
	Duration    time.Duration // Time spent on this file
}

// Success builds a Success outcome.
func Success(task FileTask, dst string, attempts int) Outcome {
	return Outcome{Task: task, Kind: OutcomeSuccess, Destination: dst, Attempts: attempts}
}

// SkippedLocked builds a SkippedLocked outcome.
func SkippedLocked(task FileTask, dst string, attempts int, err error) Outcome {
	return Outcome{Task: task, Kind: OutcomeSkippedLocked, Destination: dst, Attempts: attempts, Err: err}
}

// Failed builds a Failed outcome carrying the reason.
func Failed(task FileTask, dst string, attempts int, err error) Outcome {
	return Outcome{Task: task, Kind: OutcomeFailed, Destination: dst, Attempts: attempts, Err: err}
}

// Reason returns the failure reason, or an empty string for successes.
func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// String renders the outcome for log lines.
func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s -> %s: %s (%v)", o.Task.SourcePath, o.Destination, o.Kind, o.Err)
	}
	return fmt.Sprintf("%s -> %s: %s", o.Task.SourcePath, o.Destination, o.Kind)
}

// RunSummary aggregates the outcomes of a run.
type RunSummary struct {
	RunID         string
	SourceRoot    string
	OutputRoot    string
	Discovered    int       // Files walked, excluded ones included
	Excluded      int       // Files removed by exclusion globs
	Succeeded     int
	SkippedLocked int
	Failed        int
	StartedAt     time.Time
	Duration      time.Duration
	FailedFiles   []Outcome // Details of failed files
	SkippedFiles  []Outcome // Details of locked files that were skipped
}

// Record folds one outcome into the summary.
func (s *RunSummary) Record(o Outcome) {
	switch o.Kind {
	case OutcomeSuccess:
		s.Succeeded++
	case OutcomeSkippedLocked:
		s.SkippedLocked++
		s.SkippedFiles = append(s.SkippedFiles, o)
	default:
		s.Failed++
		s.FailedFiles = append(s.FailedFiles, o)
	}
}

// Total returns the number of outcomes recorded.
func (s *RunSummary) Total() int {
	return s.Succeeded + s.SkippedLocked + s.Failed
}

// Clean reports whether every scheduled file was copied.
func (s *RunSummary) Clean() bool {
	return s.SkippedLocked == 0 && s.Failed == 0
}
