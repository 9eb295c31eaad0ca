package fileutil

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ExcludeFilter decides whether a file under the source root is out of scope.
//
// Patterns use the doublestar dialect and are matched against the path
// relative to the source root with "/" separators:
//   - "*" and "?" never cross a "/"; "**" matches any number of segments
//   - a pattern starting with "/" is anchored at the source root
//   - any other pattern is anchored at the right, so it may match the trailing
//     segments of a deeper path ("*.log" matches "a/b/c.log", "skip/*" matches
//     "x/skip/d.log")
//
// The filter is immutable once built and safe for concurrent use.
type ExcludeFilter struct {
	patterns []string
	compiled []string
}

// NewExcludeFilter validates patterns and builds a filter. A nil or empty
// pattern list yields a filter that excludes nothing.
func NewExcludeFilter(patterns []string) (*ExcludeFilter, error) {
	f := &ExcludeFilter{
		patterns: make([]string, 0, len(patterns)),
		compiled: make([]string, 0, len(patterns)),
	}

	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		compiled := compilePattern(p)
		if !doublestar.ValidatePattern(compiled) {
			return nil, fmt.Errorf("invalid exclude glob %q", p)
		}
		f.patterns = append(f.patterns, p)
		f.compiled = append(f.compiled, compiled)
	}

	return f, nil
}

// compilePattern rewrites a user pattern into the form matched against the
// relative path.
func compilePattern(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	if strings.HasPrefix(p, "/") {
		return strings.TrimLeft(p, "/")
	}
	if strings.HasPrefix(p, "**/") || p == "**" {
		return p
	}
	return "**/" + p
}

// Patterns returns the original patterns in evaluation order.
func (f *ExcludeFilter) Patterns() []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f.patterns))
	copy(out, f.patterns)
	return out
}

// Match reports whether relPath matches any pattern and returns the first
// pattern that matched.
func (f *ExcludeFilter) Match(relPath string) (string, bool) {
	if f == nil || len(f.compiled) == 0 {
		return "", false
	}

	rel := filepath.ToSlash(relPath)
	for i, compiled := range f.compiled {
		// Patterns were validated in NewExcludeFilter, so MatchUnvalidated is safe.
		if doublestar.MatchUnvalidated(compiled, rel) {
			return f.patterns[i], true
		}
	}
	return "", false
}
