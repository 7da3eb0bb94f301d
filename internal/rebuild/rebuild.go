// Package rebuild drives background reconstruction of the auxiliary
// indexes (HNSW, ID, FTS) that sit alongside the chunk store, swapping
// each one into place atomically so concurrent queries never observe a
// partially-written index.
package rebuild

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jsbattig/code-indexer-sub023/internal/ierr"
	"github.com/jsbattig/code-indexer-sub023/internal/lockfile"
)

// Builder is the contract shared by the three auxiliary index managers
// (HNSWIndexManager, IDIndexManager, FTSIndexManager). Build scans
// vectorsDir and writes a complete index to stagingPath, which the
// rebuilder atomically renames into place; the managers never perform
// the rename themselves.
type Builder interface {
	FinalName() string
	IndexExists(indexesDir string) bool
	Build(vectorsDir, stagingPath string) error
}

// tmpSuffix marks staging files/directories as rebuild-in-progress;
// cleanup_orphaned_temp_files only ever touches paths with this suffix.
const tmpSuffix = ".tmp"

// Rebuilder rebuilds a single auxiliary index under its own exclusive
// lock, serializing concurrent rebuild requests for that index across
// processes.
type Rebuilder struct {
	Builder Builder
}

// NewRebuilder wraps a Builder with the lock-build-swap protocol.
func NewRebuilder(b Builder) *Rebuilder {
	return &Rebuilder{Builder: b}
}

// SwapReport records the observed duration of the rename step, so
// callers (and tests) can assert against the swap budget independently
// of how long the build phase took.
type SwapReport struct {
	SwapDuration time.Duration
}

// Rebuild acquires the per-index lock, builds a fresh copy of the index
// into a staging file/directory, and renames it into place. Queries
// reading the prior final file continue to succeed throughout steps
// 1-3; only the rename (step 4) is the linearization point.
func (r *Rebuilder) Rebuild(ctx context.Context, vectorsDir, indexesDir string) (SwapReport, error) {
	if err := os.MkdirAll(indexesDir, 0o755); err != nil {
		return SwapReport{}, ierr.New(ierr.StorageIOFailed, "failed to create indexes dir", err)
	}

	finalName := r.Builder.FinalName()
	lockPath := lockfile.ForPath(indexesDir, finalName)
	lock := lockfile.New(lockPath)
	if err := lock.Lock(ctx); err != nil {
		return SwapReport{}, err
	}
	defer func() { _ = lock.Unlock() }()

	stagingPath := filepath.Join(indexesDir, finalName+tmpSuffix)
	_ = os.RemoveAll(stagingPath) // clear any orphan from a prior crash before rebuilding

	if err := r.Builder.Build(vectorsDir, stagingPath); err != nil {
		_ = os.RemoveAll(stagingPath)
		return SwapReport{}, err
	}

	finalPath := filepath.Join(indexesDir, finalName)
	swapStart := time.Now()
	if err := os.Rename(stagingPath, finalPath); err != nil {
		return SwapReport{}, ierr.New(ierr.StorageIOFailed, "failed to swap rebuilt index into place", err)
	}
	return SwapReport{SwapDuration: time.Since(swapStart)}, nil
}

// RebuildAll rebuilds every given index concurrently, one worker per
// index, via an errgroup. A failure in one index's rebuild does not
// cancel the others; all results are collected and the first error (in
// builder order) is returned once every worker has finished.
func RebuildAll(ctx context.Context, vectorsDir, indexesDir string, builders []Builder) error {
	g, ctx := errgroup.WithContext(ctx)
	errs := make([]error, len(builders))

	for i, b := range builders {
		i, b := i, b
		g.Go(func() error {
			_, err := NewRebuilder(b).Rebuild(ctx, vectorsDir, indexesDir)
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// CleanupOrphanedTempFiles removes *.tmp entries under indexesDir whose
// modification time is older than ageThreshold, returning the count
// removed. Intended to run once at process start with a threshold
// around one hour, to reclaim staging files left behind by a crash
// between the build and swap steps.
func CleanupOrphanedTempFiles(indexesDir string, ageThreshold time.Duration) (int, error) {
	entries, err := os.ReadDir(indexesDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, ierr.New(ierr.StorageIOFailed, "failed to read indexes dir", err)
	}

	cutoff := time.Now().Add(-ageThreshold)
	removed := 0
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), tmpSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(indexesDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			return removed, ierr.New(ierr.StorageIOFailed, "failed to remove orphaned temp file "+path, err)
		}
		removed++
	}
	return removed, nil
}
