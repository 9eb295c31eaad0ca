package executor

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ExecutionPhase represents the phase of per-file processing where an error occurred.
type ExecutionPhase int

const (
	// PhasePrepare covers bucket directory creation and destination naming.
	PhasePrepare ExecutionPhase = iota
	// PhaseSchedule covers waiting for a copy permit or the throttle.
	PhaseSchedule
	// PhaseCopy covers the retry-wrapped copy itself.
	PhaseCopy
)

// String returns the string representation of ExecutionPhase.
func (p ExecutionPhase) String() string {
	switch p {
	case PhasePrepare:
		return "prepare"
	case PhaseSchedule:
		return "schedule"
	case PhaseCopy:
		return "copy"
	default:
		return "unknown"
	}
}

// PreflightError is returned when a run cannot start: the source root is
// missing or not a directory, or the output root cannot be created.
type PreflightError struct {
	Path    string // Offending path
	Message string // Human-readable error message
	Err     error  // Underlying error (optional)
}

// NewPreflightError creates a new PreflightError.
func NewPreflightError(path, msg string, err error) *PreflightError {
	return &PreflightError{Path: path, Message: msg, Err: err}
}

// Error implements the error interface for PreflightError.
func (e *PreflightError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("preflight failed for %s: %s", e.Path, e.Message))
	if e.Err != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Err))
	}
	return sb.String()
}

// Unwrap returns the underlying error for error wrapping support.
func (e *PreflightError) Unwrap() error {
	return e.Err
}

// TaskError represents an unexpected failure while processing one file.
// It ends up as the reason of a Failed outcome and is never propagated
// past the file boundary.
type TaskError struct {
	Path      string         // Source file that failed
	Phase     ExecutionPhase // Processing phase where it failed
	Message   string         // Human-readable error message
	Err       error          // Underlying error (optional)
	Timestamp time.Time      // When the error occurred
}

// NewTaskError creates a new TaskError with the current timestamp.
func NewTaskError(path string, phase ExecutionPhase, msg string, err error) *TaskError {
	return &TaskError{
		Path:      path,
		Phase:     phase,
		Message:   msg,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface for TaskError.
func (e *TaskError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s %s: %s", e.Phase, e.Path, e.Message))
	if e.Err != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Err))
	}
	return sb.String()
}

// Unwrap returns the underlying error for error wrapping support.
func (e *TaskError) Unwrap() error {
	return e.Err
}

// IsPreflightError checks if the error is or wraps a PreflightError.
func IsPreflightError(err error) bool {
	if err == nil {
		return false
	}
	var pe *PreflightError
	return errors.As(err, &pe)
}
