// Package runlock keeps two pipelines from working on the same input at once.
package runlock

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrBusy is returned when another process holds the lock for an input.
var ErrBusy = errors.New("input is already being processed")

// Lock is an exclusive advisory lock on one pipeline input.
type Lock struct {
	path  string
	input string
	lock  *flock.Flock
}

// PathFor returns the lock file used for input inside stateDir.
func PathFor(stateDir, input string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(input)))
	return filepath.Join(stateDir, "run-"+hex.EncodeToString(sum[:8])+".lock")
}

// Acquire takes the lock for input without blocking.
func Acquire(stateDir, input string) (*Lock, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	l := &Lock{path: PathFor(stateDir, input), input: input}
	l.lock = flock.New(l.path)
	ok, err := l.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s (lock %s)", ErrBusy, input, l.path)
	}
	return l, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release drops the lock. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}
