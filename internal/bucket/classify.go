// Package bucket maps files to extension buckets and picks collision-free
// names inside them.
package bucket

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// NoExtension is the bucket for files without a usable suffix.
const NoExtension = "no_extension"

// Classify returns the bucket name for path: the text after the last "." of
// the filename, lower-cased. A filename with no "." or ending in "." maps to
// NoExtension. A leading-dot name such as ".gitignore" maps to "gitignore".
func Classify(path string) string {
	name := filepath.Base(path)
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return NoExtension
	}
	return strings.ToLower(name[idx+1:])
}

// EnsureDir creates the bucket directory under outputRoot if needed and
// returns its path. It is safe to call concurrently for the same bucket.
func EnsureDir(outputRoot, bucket string) (string, error) {
	dir := filepath.Join(outputRoot, bucket)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create bucket directory %s: %w", dir, err)
	}
	return dir, nil
}
