package staleness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func TestDetector_FreshWhenWithinThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	now := time.Now().UTC()
	touch(t, path, now)

	mtime := unixSeconds(now)
	d := New(ModeLocal, 5*time.Second, 0)
	result := d.Evaluate(path, Record{FileLastModified: &mtime, IndexedTimestamp: mtime})

	assert.False(t, result.IsStale)
	assert.Equal(t, TierFresh, result.Tier)
}

func TestDetector_MinorStaleness(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	now := time.Now().UTC()
	touch(t, path, now)

	old := unixSeconds(now.Add(-30 * time.Minute))
	d := New(ModeLocal, time.Second, 0)
	result := d.Evaluate(path, Record{FileLastModified: &old, IndexedTimestamp: old})

	assert.True(t, result.IsStale)
	assert.Equal(t, TierMinor, result.Tier)
}

func TestDetector_ModerateStaleness(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	now := time.Now().UTC()
	touch(t, path, now)

	old := unixSeconds(now.Add(-5 * time.Hour))
	d := New(ModeLocal, time.Second, 0)
	result := d.Evaluate(path, Record{FileLastModified: &old, IndexedTimestamp: old})

	assert.Equal(t, TierModerate, result.Tier)
}

func TestDetector_MajorStaleness(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	now := time.Now().UTC()
	touch(t, path, now)

	old := unixSeconds(now.Add(-48 * time.Hour))
	d := New(ModeLocal, time.Second, 0)
	result := d.Evaluate(path, Record{FileLastModified: &old, IndexedTimestamp: old})

	assert.Equal(t, TierMajor, result.Tier)
}

func TestDetector_LocalModePrefersFileLastModified(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	now := time.Now().UTC()
	touch(t, path, now)

	fresh := unixSeconds(now)
	stale := unixSeconds(now.Add(-48 * time.Hour))
	d := New(ModeLocal, time.Second, 0)
	result := d.Evaluate(path, Record{FileLastModified: &fresh, IndexedTimestamp: stale})

	assert.False(t, result.IsStale)
}

func TestDetector_RemoteModePrefersIndexedTimestamp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	now := time.Now().UTC()
	touch(t, path, now)

	fresh := unixSeconds(now)
	stale := unixSeconds(now.Add(-48 * time.Hour))
	d := New(ModeRemote, time.Second, 0)
	result := d.Evaluate(path, Record{FileLastModified: &fresh, IndexedTimestamp: stale})

	assert.True(t, result.IsStale)
	assert.Equal(t, TierMajor, result.Tier)
}

func TestDetector_MissingFileLastModifiedFallsBackToIndexedTimestamp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	now := time.Now().UTC()
	touch(t, path, now)

	stale := unixSeconds(now.Add(-48 * time.Hour))
	d := New(ModeLocal, time.Second, 0)
	result := d.Evaluate(path, Record{FileLastModified: nil, IndexedTimestamp: stale})

	assert.True(t, result.IsStale)
}

func TestDetector_CacheHitsOnRepeatedLookup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	now := time.Now().UTC()
	touch(t, path, now)

	mtime := unixSeconds(now)
	d := New(ModeLocal, 5*time.Second, 0)

	d.Evaluate(path, Record{FileLastModified: &mtime, IndexedTimestamp: mtime})
	d.Evaluate(path, Record{FileLastModified: &mtime, IndexedTimestamp: mtime})

	assert.Equal(t, 1, d.CacheHits())
}

func TestDetector_MissingFileReportsFresh(t *testing.T) {
	d := New(ModeLocal, time.Second, 0)
	mtime := 0.0
	result := d.Evaluate(filepath.Join(t.TempDir(), "missing.go"), Record{FileLastModified: &mtime})
	assert.False(t, result.IsStale)
	assert.Equal(t, TierFresh, result.Tier)
}

func TestSortResults_FreshSortsBeforeStaleRegardlessOfScore(t *testing.T) {
	results := []Scored{
		{Staleness: Result{IsStale: true}, Score: 0.99, Index: 0},
		{Staleness: Result{IsStale: false}, Score: 0.10, Index: 1},
	}
	sorted := SortResults(results)
	assert.False(t, sorted[0].Staleness.IsStale)
	assert.Equal(t, 1, sorted[0].Index)
}

func TestSortResults_WithinGroupSortsByScoreDescending(t *testing.T) {
	results := []Scored{
		{Staleness: Result{IsStale: false}, Score: 0.2, Index: 0},
		{Staleness: Result{IsStale: false}, Score: 0.8, Index: 1},
	}
	sorted := SortResults(results)
	assert.Equal(t, 1, sorted[0].Index)
	assert.Equal(t, 0, sorted[1].Index)
}
