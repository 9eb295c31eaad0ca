package models

import (
	"errors"
	"path/filepath"
)

// FileTask identifies one source file discovered under the source root.
// It is created once during traversal and consumed by exactly one worker.
type FileTask struct {
	SourcePath string // Absolute path of the source file
	RelPath    string // Path relative to the source root, slash separated
}

// NewFileTask builds a FileTask for path under root.
func NewFileTask(root, path string) (FileTask, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return FileTask{}, err
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return FileTask{}, err
	}
	return FileTask{SourcePath: abs, RelPath: filepath.ToSlash(rel)}, nil
}

// Validate checks if the task has all required fields
func (t FileTask) Validate() error {
	if t.SourcePath == "" {
		return errors.New("source path is required")
	}
	if t.RelPath == "" {
		return errors.New("relative path is required")
	}
	return nil
}

// Name returns the base filename of the source.
func (t FileTask) Name() string {
	return filepath.Base(t.SourcePath)
}
