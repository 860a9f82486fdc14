// Package buildlock guards a workspace root against two concurrent forge
// invocations racing on the same history database and local cache
// directory. The local cache itself needs no inter-process lock (§5: it is
// content-addressed and the last rename wins), but the history store's
// single SQLite connection and a build's own output directories are not
// safe for two simultaneous writers.
package buildlock

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/nightlyone/lockfile"
)

// FileName is the lock file created under a workspace root's .forge directory.
const FileName = "build.lock"

// ErrHeld is returned by Acquire when another process already holds the lock.
var ErrHeld = errors.New("another forge build is already running in this workspace")

// Lock represents an acquired, exclusive hold on one workspace root.
type Lock struct {
	l lockfile.Lockfile
}

// Acquire takes an exclusive lock on stateDir (a workspace root's .forge
// directory). It returns ErrHeld if a live process already holds it; a
// lock file left behind by a dead process is detected and reclaimed
// transparently by the underlying library.
func Acquire(stateDir string) (*Lock, error) {
	path := filepath.Join(stateDir, FileName)
	lf, err := lockfile.New(path)
	if err != nil {
		return nil, fmt.Errorf("constructing lock handle: %w", err)
	}

	switch err := lf.TryLock(); {
	case err == nil:
		return &Lock{l: lf}, nil
	case errors.Is(err, lockfile.ErrBusy):
		return nil, ErrHeld
	case errors.Is(err, lockfile.ErrDeadOwner), errors.Is(err, lockfile.ErrInvalidPid):
		// The library already cleaned up the stale lock file; retry once.
		if err := lf.TryLock(); err != nil {
			return nil, fmt.Errorf("reclaiming stale lock: %w", err)
		}
		return &Lock{l: lf}, nil
	default:
		return nil, fmt.Errorf("acquiring build lock: %w", err)
	}
}

// Release unlocks and removes the lock file.
func (l *Lock) Release() error {
	return l.l.Unlock()
}
