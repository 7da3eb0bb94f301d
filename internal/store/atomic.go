package store

import (
	"os"
	"path/filepath"

	"github.com/jsbattig/code-indexer-sub023/internal/ierr"
)

// atomicWriteFile writes data to path via a temp file in the same
// directory, fsyncs it, then renames it into place. The rename is the
// linearization point: readers never observe a partially written file.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ierr.New(ierr.StorageIOFailed, "failed to create directory "+dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return ierr.New(ierr.StorageIOFailed, "failed to create temp file in "+dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return ierr.New(ierr.StorageIOFailed, "failed to write temp file "+tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return ierr.New(ierr.StorageIOFailed, "failed to fsync temp file "+tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return ierr.New(ierr.StorageIOFailed, "failed to close temp file "+tmpPath, err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		_ = os.Remove(tmpPath)
		return ierr.New(ierr.StorageIOFailed, "failed to chmod temp file "+tmpPath, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return ierr.New(ierr.StorageIOFailed, "failed to rename into "+path, err)
	}
	return nil
}
