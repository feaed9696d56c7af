package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// Workspace is a per-run scratch directory under a lock-guarded root. The
// lock enforces the one-episode-at-a-time contract; the directory holds
// downloaded audio, the normalized asset, and segment files, and is removed
// unconditionally on Release.
type Workspace struct {
	Dir  string
	lock *flock.Flock
}

// Acquire creates the workspace root if needed, takes the run lock, and
// allocates a fresh run directory. It fails fast when another run holds the
// lock rather than queueing behind it.
func Acquire(root string) (*Workspace, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}

	lock := flock.New(filepath.Join(root, ".lettercast.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another lettercast run is already in progress (lock: %s)", lock.Path())
	}

	dir := filepath.Join(root, "run-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("create run directory: %w", err)
	}

	return &Workspace{Dir: dir, lock: lock}, nil
}

// Path returns the absolute path for a file inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Release removes the run directory and drops the run lock. Safe to call
// more than once.
func (w *Workspace) Release() error {
	if w == nil {
		return nil
	}
	var firstErr error
	if w.Dir != "" {
		if err := os.RemoveAll(w.Dir); err != nil {
			firstErr = fmt.Errorf("remove run directory: %w", err)
		}
		w.Dir = ""
	}
	if w.lock != nil {
		if err := w.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("release run lock: %w", err)
		}
		w.lock = nil
	}
	return firstErr
}
