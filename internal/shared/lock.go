package shared

import (
	"fmt"

	"github.com/gofrs/flock"
)

// RunLock guards against two syncs writing to the same Immich instance at once.
//
// Album creation is name-matched against a list fetched at the start of a run,
// so concurrent runs could each create the same album.
type RunLock struct {
	path string
	lock *flock.Flock
}

// NewRunLock returns an unlocked [RunLock] backed by the file at path.
func NewRunLock(path string) *RunLock {
	return &RunLock{path: path, lock: flock.New(path)}
}

// Acquire takes the lock without blocking. Returns [ErrLocked] when another process holds it.
func (l *RunLock) Acquire() error {
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", l.path, err)
	}
	if !ok {
		return fmt.Errorf("%w (lock file %s)", ErrLocked, l.path)
	}
	return nil
}

// Release unlocks the file. Safe to call when not locked.
func (l *RunLock) Release() error {
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}

// Path returns the lock file location.
func (l *RunLock) Path() string {
	return l.path
}
