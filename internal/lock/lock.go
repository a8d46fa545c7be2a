// Package lock guards a run root against concurrent bootstrap runs.
package lock

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"

	"github.com/imamik/kubernix/internal/kerrors"
)

// ErrRootLocked is returned when another run holds the root.
var ErrRootLocked = errors.New("root is in use by another kubernix run")

// RootLock is an advisory file lock on a run root.
type RootLock struct {
	fl *flock.Flock
}

// Acquire takes the lock at path without blocking.
func Acquire(path string) (*RootLock, error) {
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, kerrors.IOErr("lock root", err)
	}
	if !ok {
		return nil, kerrors.IOErr("lock root", fmt.Errorf("%w: %s", ErrRootLocked, path))
	}
	return &RootLock{fl: fl}, nil
}

// Path returns the lock file path.
func (l *RootLock) Path() string {
	return l.fl.Path()
}

// Release drops the lock. It is safe to call more than once.
func (l *RootLock) Release() error {
	if l == nil || !l.fl.Locked() {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return kerrors.IOErr("unlock root", err)
	}
	return nil
}
