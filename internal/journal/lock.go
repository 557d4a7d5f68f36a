package journal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// LockFilename is the default leader lock filename
const LockFilename = "reindex.lock"

// ErrLockTimeout indicates the lock acquisition timed out
var ErrLockTimeout = errors.New("lock acquisition timed out")

// pollInterval is how often a blocked Lock retries.
const pollInterval = 50 * time.Millisecond

// FileLock is an exclusive cross-process lock backed by flock(2).
// The lock is released when the process exits or crashes.
type FileLock struct {
	lock *flock.Flock
}

// NewFileLock creates a lock at path. Parent directories are created on first use.
func NewFileLock(path string) *FileLock {
	return &FileLock{lock: flock.New(path)}
}

// TryLock attempts to acquire the lock without blocking. Contention is not an
// error: it returns false.
func (l *FileLock) TryLock() (bool, error) {
	if err := l.ensureDir(); err != nil {
		return false, err
	}
	ok, err := l.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("flock failed: %w", err)
	}
	return ok, nil
}

// LockWithContext blocks until the lock is acquired, timeout expires or ctx is done.
func (l *FileLock) LockWithContext(ctx context.Context, timeout time.Duration) error {
	if err := l.ensureDir(); err != nil {
		return err
	}

	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ok, err := l.lock.TryLockContext(lockCtx, pollInterval)
	if ok {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		return ErrLockTimeout
	}
	return fmt.Errorf("flock failed: %w", err)
}

// Unlock releases the lock. Unlocking an unlocked FileLock is a no-op.
func (l *FileLock) Unlock() error {
	if !l.lock.Locked() {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("flock unlock failed: %w", err)
	}
	return nil
}

// IsLocked returns true if the lock is currently held by this instance.
func (l *FileLock) IsLocked() bool {
	return l.lock.Locked()
}

// Path returns the path to the lock file.
func (l *FileLock) Path() string {
	return l.lock.Path()
}

func (l *FileLock) ensureDir() error {
	if err := os.MkdirAll(filepath.Dir(l.lock.Path()), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	return nil
}
