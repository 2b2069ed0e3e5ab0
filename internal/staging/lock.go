package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockFileName = ".medialog.lock"

// ErrBusy reports that another run holds the staging root.
var ErrBusy = errors.New("staging directory is in use by another run")

// RootLock is an exclusive advisory lock on a staging root.
type RootLock struct {
	lock *flock.Flock
}

// Lock acquires the staging root without blocking.
func Lock(root string) (*RootLock, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	lock := flock.New(filepath.Join(root, lockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire staging lock: %w", err)
	}
	if !ok {
		return nil, ErrBusy
	}
	return &RootLock{lock: lock}, nil
}

// Path returns the lock file path.
func (l *RootLock) Path() string { return l.lock.Path() }

func (l *RootLock) Unlock() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
