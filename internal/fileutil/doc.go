// Package fileutil discovers the files a run will classify.
//
// It offers two pieces that are used together by the executor:
//
//   - ExcludeFilter: an immutable, concurrency-safe list of glob patterns
//     matched against each file's path relative to the source root.
//   - Walk: a streaming, error-tolerant recursive walk that hands one
//     models.FileTask per retained regular file to a callback.
//
// # Glob dialect
//
// Patterns follow github.com/bmatcuk/doublestar/v4 on "/"-separated relative
// paths. "*" stays within one path segment, "**" spans segments. A pattern
// without a leading "/" is matched against the trailing segments of the path,
// so "*.tmp" excludes temporary files at any depth and "skip/*" excludes the
// direct children of any directory named skip. A leading "/" anchors the
// pattern at the source root ("/skip/*" only excludes <root>/skip/<file>).
//
// # Usage
//
//	filter, err := fileutil.NewExcludeFilter([]string{"*/Unity/*", "*.vdf"})
//	if err != nil {
//	    return err
//	}
//	res, err := fileutil.Walk(ctx, "/data/in", fileutil.WalkOptions{Exclude: filter},
//	    func(task models.FileTask) error {
//	        queue <- task
//	        return nil
//	    })
//
// # Error Tolerance
//
// A missing or non-directory root is fatal and reported before anything is
// emitted. Unreadable subdirectories are collected in WalkResult.Errors and the
// walk continues.
package fileutil
