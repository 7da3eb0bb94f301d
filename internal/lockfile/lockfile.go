// Package lockfile provides cross-process advisory file locking used to
// serialize background index rebuilds and progress-file writes. A lock
// is a single file on disk; holding it is advisory only, honored by
// other cidx processes through the same gofrs/flock handle.
package lockfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/jsbattig/code-indexer-sub023/internal/ierr"
)

// Lock wraps an exclusive file lock at a fixed path.
type Lock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// New creates a Lock for the given path. The containing directory is
// created lazily on the first acquire attempt.
func New(path string) *Lock {
	return &Lock{
		path:  path,
		flock: flock.New(path),
	}
}

// Path returns the filesystem path backing the lock.
func (l *Lock) Path() string {
	return l.path
}

// IsLocked reports whether this handle currently holds the lock.
func (l *Lock) IsLocked() bool {
	return l.locked
}

// Lock blocks until the exclusive lock is acquired or ctx is done.
func (l *Lock) Lock(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return ierr.New(ierr.StorageIOFailed, "failed to create lock directory", err)
	}

	acquired, err := l.flock.TryLockContext(ctx, 50*time.Millisecond)
	// TryLockContext reports an expired ctx as an error; that case is
	// LockUnavailable below, not an I/O failure.
	if err != nil && ctx.Err() == nil {
		return ierr.New(ierr.StorageIOFailed, fmt.Sprintf("failed to acquire lock %s", l.path), err)
	}
	if !acquired {
		return ierr.New(ierr.LockUnavailable, fmt.Sprintf("timed out waiting for lock %s", l.path), ctx.Err())
	}
	l.locked = true
	return nil
}

// TryLockWithDeadline attempts to acquire the lock, giving up with
// LockUnavailable if the deadline elapses first. A zero deadline means
// try once, non-blocking.
func (l *Lock) TryLockWithDeadline(deadline time.Duration) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, ierr.New(ierr.StorageIOFailed, "failed to create lock directory", err)
	}

	if deadline <= 0 {
		acquired, err := l.flock.TryLock()
		if err != nil {
			return false, ierr.New(ierr.StorageIOFailed, fmt.Sprintf("failed to acquire lock %s", l.path), err)
		}
		l.locked = acquired
		return acquired, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), deadline)
	defer cancel()
	acquired, err := l.flock.TryLockContext(ctx, 20*time.Millisecond)
	if err != nil && ctx.Err() != nil {
		return false, ierr.New(ierr.LockUnavailable, fmt.Sprintf("timed out waiting for lock %s", l.path), ctx.Err())
	}
	if err != nil {
		return false, ierr.New(ierr.StorageIOFailed, fmt.Sprintf("failed to acquire lock %s", l.path), err)
	}
	l.locked = acquired
	return acquired, nil
}

// Unlock releases the lock. Safe to call multiple times.
func (l *Lock) Unlock() error {
	if !l.locked {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return ierr.New(ierr.StorageIOFailed, fmt.Sprintf("failed to release lock %s", l.path), err)
	}
	l.locked = false
	return nil
}

// ForPath derives the lock file path for a given resource directory and
// name, e.g. ForPath("/data/myproj", "rebuild") -> "/data/myproj/.rebuild.lock".
func ForPath(dir, name string) string {
	return filepath.Join(dir, "."+name+".lock")
}
