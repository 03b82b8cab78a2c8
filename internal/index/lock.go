package index

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/Aman-CERP/ragmcp/internal/errors"
)

// lockFileName lives in the data dir; one index run per project.
const lockFileName = "index.lock"

// acquireRunLock takes the project's index lock without blocking. A
// second concurrent run fails fast with a clear error instead of
// racing the first one's diff.
func acquireRunLock(dataDir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, errors.Validation("create data dir %s: %s", dataDir, err)
	}

	lock := flock.New(filepath.Join(dataDir, lockFileName))
	held, err := lock.TryLock()
	if err != nil {
		return nil, errors.Validation("acquire index lock: %s", err)
	}
	if !held {
		return nil, errors.Validation("another index run is in progress (lock held at %s)", lock.Path()).
			WithSuggestion("wait for the running index command to finish, or remove the stale lock file if no indexer is running")
	}
	return lock, nil
}
