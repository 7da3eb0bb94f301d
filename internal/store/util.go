package store

import (
	"os"
	"path/filepath"
	"time"

	"github.com/jsbattig/code-indexer-sub023/internal/ierr"
)

// nowUTC returns the current time in UTC. Isolated in one place so
// callers needing deterministic timestamps in tests have a single
// seam to work with.
func nowUTC() time.Time {
	return time.Now().UTC()
}

// filepathWalk walks root calling fn(path, isDir) for every entry,
// skipping a missing root silently (an empty collection has no
// vectors/ directory yet).
func filepathWalk(root string, fn func(path string, isDir bool) error) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return ierr.New(ierr.StorageIOFailed, "failed walking "+path, err)
		}
		return fn(path, info.IsDir())
	})
}
