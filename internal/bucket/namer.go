package bucket

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/bucketsort/internal/filelock"
)

// UniquePath returns dir/filename if it does not exist, otherwise the first
// free "stem (i)suffix" for i = 1, 2, ...
//
// UniquePath only probes. Two callers racing on the same directory and name
// can both receive the same answer; use Namer.Reserve when the result is going
// to be written.
func UniquePath(dir, filename string) (string, error) {
	candidate := filepath.Join(dir, filename)
	free, err := isFree(candidate)
	if err != nil {
		return "", err
	}
	if free {
		return candidate, nil
	}

	stem, suffix := splitName(filename)
	for i := 1; ; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, i, suffix))
		free, err := isFree(candidate)
		if err != nil {
			return "", err
		}
		if free {
			return candidate, nil
		}
	}
}

func isFree(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	return false, fmt.Errorf("failed to probe %s: %w", path, err)
}

// splitName splits a filename into stem and suffix. The suffix includes the
// dot; leading-dot names and names ending in "." have no suffix.
func splitName(filename string) (string, string) {
	idx := strings.LastIndex(filename, ".")
	if idx <= 0 || idx == len(filename)-1 {
		return filename, ""
	}
	return filename[:idx], filename[idx:]
}

// Namer hands out destination paths that are unique at the time they are
// returned and stay unique afterwards: each name is reserved by creating an
// empty file with O_EXCL while naming in that directory is serialised.
//
// Serialisation is per directory. Within the process a one-slot channel per
// directory is used; when a lock directory is configured, a flock per
// directory extends it to other processes writing into the same output tree.
// Both waits end when the caller's context is done.
type Namer struct {
	lockDir   string
	lockRetry time.Duration
	logger    WarnLogger

	mu      sync.Mutex
	dirs    map[string]chan struct{}
	locks   map[string]dirLock
	newLock func(path string) dirLock
}

// dirLock is the cross-process half of a directory's naming lock.
type dirLock interface {
	LockContext(ctx context.Context, retryDelay time.Duration) error
	Unlock() error
	Path() string
}

// WarnLogger receives naming lock release failures.
type WarnLogger interface {
	LogWarn(message string)
}

// DefaultLockRetry is how often a held naming flock is polled.
const DefaultLockRetry = 50 * time.Millisecond

// NewNamer creates a Namer. lockDir may be empty to disable cross-process
// locking.
func NewNamer(lockDir string) *Namer {
	return &Namer{
		lockDir:   lockDir,
		lockRetry: DefaultLockRetry,
		dirs:      make(map[string]chan struct{}),
		locks:     make(map[string]dirLock),
		newLock:   newFileLock,
	}
}

func newFileLock(path string) dirLock {
	return filelock.NewFileLock(path)
}

// SetLogger sets the logger for lock release warnings. nil disables them.
func (n *Namer) SetLogger(l WarnLogger) {
	n.logger = l
}

// Reserve picks a free name for filename in dir and creates it empty. The
// caller owns the returned path and must either overwrite it with the final
// content or Release it. Reserve returns ctx's error if ctx is done while it
// waits for another writer naming in dir.
func (n *Namer) Reserve(ctx context.Context, dir, filename string) (string, error) {
	unlock, err := n.lock(ctx, dir)
	if err != nil {
		return "", err
	}
	defer unlock()

	for {
		candidate, err := UniquePath(dir, filename)
		if err != nil {
			return "", err
		}

		f, err := os.OpenFile(candidate, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			if err := f.Close(); err != nil {
				os.Remove(candidate)
				return "", fmt.Errorf("failed to close reservation %s: %w", candidate, err)
			}
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("failed to reserve %s: %w", candidate, err)
		}
		// Created by a writer outside our locks between probe and create; probe again.
	}
}

// Release removes a reservation that will not receive content.
func (n *Namer) Release(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to release %s: %w", path, err)
	}
	return nil
}

func (n *Namer) lock(ctx context.Context, dir string) (func(), error) {
	key := filepath.Clean(dir)

	n.mu.Lock()
	slot, ok := n.dirs[key]
	if !ok {
		slot = make(chan struct{}, 1)
		n.dirs[key] = slot
	}
	var fl dirLock
	if n.lockDir != "" {
		fl, ok = n.locks[key]
		if !ok {
			fl = n.newLock(filepath.Join(n.lockDir, lockName(key)))
			n.locks[key] = fl
		}
	}
	n.mu.Unlock()

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	release := func() { <-slot }

	if fl == nil {
		return release, nil
	}

	if err := os.MkdirAll(n.lockDir, 0755); err != nil {
		release()
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	if err := fl.LockContext(ctx, n.lockRetry); err != nil {
		release()
		return nil, err
	}
	return func() {
		if err := fl.Unlock(); err != nil && n.logger != nil {
			n.logger.LogWarn(fmt.Sprintf("Naming lock %s not released: %v", fl.Path(), err))
		}
		release()
	}, nil
}

// lockName derives the lock file name for a bucket directory.
func lockName(dir string) string {
	return filepath.Base(dir) + ".lock"
}
