package fileutil

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/harrison/bucketsort/internal/models"
)

// DebugLogger receives exclusion diagnostics.
type DebugLogger interface {
	LogDebug(message string)
}

// WalkOptions configures the directory walk
type WalkOptions struct {
	// Exclude removes matching files before they are emitted (optional)
	Exclude *ExcludeFilter
	// Logger receives one debug line per excluded file (optional)
	Logger DebugLogger
	// SkipDirs are directories that are not descended into, such as an
	// output tree nested inside the source root (optional)
	SkipDirs []string
}

// WalkResult contains the counters of a completed walk
type WalkResult struct {
	// Walked is the number of regular files encountered, excluded ones included
	Walked int
	// Excluded is the number of files removed by the exclusion filter
	Excluded int
	// Emitted is the number of FileTasks handed to the callback
	Emitted int
	// Errors contains non-fatal errors encountered during the walk
	Errors []error
}

// ValidateRoot checks that root exists and is a directory.
func ValidateRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", root)
	}
	return nil
}

// Walk recursively visits every regular file under root, applies the
// exclusion filter and calls emit once per retained file. Symbolic links are
// not followed into directories; a link that resolves to a regular file is
// treated as that file.
//
// Walk stops early when ctx is cancelled or emit returns an error; both are
// returned to the caller. Unreadable subdirectories are recorded in
// WalkResult.Errors and skipped.
func Walk(ctx context.Context, root string, opts WalkOptions, emit func(models.FileTask) error) (*WalkResult, error) {
	if err := ValidateRoot(root); err != nil {
		return nil, err
	}

	result := &WalkResult{Errors: make([]error, 0)}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			result.Errors = append(result.Errors, fmt.Errorf("error accessing %s: %w", path, err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && skipped(path, opts.SkipDirs) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isRegular(path, d) {
			return nil
		}

		result.Walked++

		task, err := models.NewFileTask(root, path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to resolve path %s: %w", path, err))
			return nil
		}

		if pattern, excluded := opts.Exclude.Match(task.RelPath); excluded {
			result.Excluded++
			if opts.Logger != nil {
				opts.Logger.LogDebug(fmt.Sprintf("Excluded by glob %q: %s", pattern, task.SourcePath))
			}
			return nil
		}

		if err := emit(task); err != nil {
			return err
		}
		result.Emitted++
		return nil
	})

	if err != nil {
		return result, err
	}
	return result, nil
}

func skipped(path string, dirs []string) bool {
	if len(dirs) == 0 {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, dir := range dirs {
		if abs == filepath.Clean(dir) {
			return true
		}
	}
	return false
}

// isRegular reports whether the entry is a regular file, resolving symlinks
// that point at regular files.
func isRegular(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
