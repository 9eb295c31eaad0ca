package executor

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
)

// TestNewTaskError verifies TaskError creation and Error() formatting.
func TestNewTaskError(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		phase       ExecutionPhase
		message     string
		err         error
		wantContain []string
	}{
		{
			name:    "simple task error",
			path:    "/src/a.txt",
			phase:   PhasePrepare,
			message: "failed to reserve destination",
			err:     nil,
			wantContain: []string{
				"prepare",
				"/src/a.txt",
				"failed to reserve destination",
			},
		},
		{
			name:    "task error with wrapped error",
			path:    "/src/b.log",
			phase:   PhaseSchedule,
			message: "failed to acquire copy permit",
			err:     errors.New("context canceled"),
			wantContain: []string{
				"schedule",
				"/src/b.log",
				"context canceled",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			taskErr := NewTaskError(tt.path, tt.phase, tt.message, tt.err)

			if taskErr.Path != tt.path {
				t.Errorf("Path = %q, want %q", taskErr.Path, tt.path)
			}
			if taskErr.Phase != tt.phase {
				t.Errorf("Phase = %v, want %v", taskErr.Phase, tt.phase)
			}
			if taskErr.Timestamp.IsZero() {
				t.Error("expected non-zero Timestamp")
			}

			errString := taskErr.Error()
			for _, want := range tt.wantContain {
				if !strings.Contains(errString, want) {
					t.Errorf("Error() = %q, want to contain %q", errString, want)
				}
			}
		})
	}
}

// TestTaskErrorWrapping verifies error wrapping with errors.Is and errors.As.
func TestTaskErrorWrapping(t *testing.T) {
	taskErr := NewTaskError("/src/a.txt", PhasePrepare, "mkdir failed", fs.ErrPermission)
	wrapped := fmt.Errorf("worker: %w", taskErr)

	if !errors.Is(wrapped, fs.ErrPermission) {
		t.Error("errors.Is should find the underlying error")
	}
	var te *TaskError
	if !errors.As(wrapped, &te) {
		t.Fatal("errors.As should find the TaskError")
	}
	if te.Phase != PhasePrepare {
		t.Errorf("Phase = %v, want %v", te.Phase, PhasePrepare)
	}
}

func TestPreflightError(t *testing.T) {
	err := NewPreflightError("/missing", "source directory does not exist", fs.ErrNotExist)

	if !strings.Contains(err.Error(), "/missing") || !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("Error() = %q, missing path or message", err.Error())
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("errors.Is should find the underlying error")
	}
	if !IsPreflightError(fmt.Errorf("run: %w", err)) {
		t.Error("IsPreflightError should detect a wrapped PreflightError")
	}
	if IsPreflightError(nil) || IsPreflightError(errors.New("plain")) {
		t.Error("IsPreflightError should be false for nil and plain errors")
	}
}

func TestExecutionPhaseString(t *testing.T) {
	tests := map[ExecutionPhase]string{
		PhasePrepare:       "prepare",
		PhaseSchedule:      "schedule",
		PhaseCopy:          "copy",
		ExecutionPhase(42): "unknown",
	}
	for phase, want := range tests {
		if got := phase.String(); got != want {
			t.Errorf("ExecutionPhase(%d).String() = %q, want %q", int(phase), got, want)
		}
	}
}
