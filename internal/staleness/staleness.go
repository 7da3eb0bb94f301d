// Package staleness decides whether a query result reflects an
// outdated index entry relative to the file currently on disk.
package staleness

import (
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Mode selects which timestamp is authoritative for comparison.
type Mode string

const (
	// ModeLocal prefers the file's own last-modified time: the common
	// case when indexing a local working tree.
	ModeLocal Mode = "local"
	// ModeRemote prefers the indexed_timestamp: appropriate when the
	// filesystem mtime isn't a trustworthy signal (e.g. a checkout that
	// was just cloned, resetting every mtime to checkout time).
	ModeRemote Mode = "remote"
)

// Tier is a human-facing staleness bucket.
type Tier string

const (
	TierFresh    Tier = "Fresh"
	TierMinor    Tier = "minor"
	TierModerate Tier = "moderate"
	TierMajor    Tier = "major"
)

const (
	minorThreshold    = time.Hour
	moderateThreshold = 24 * time.Hour
)

// Result is what the detector reports for one ChunkRecord.
type Result struct {
	IsStale bool
	Tier    Tier
	Delta   time.Duration
	Label   string // e.g. "30m stale"
}

// Record is the subset of a ChunkRecord's payload the detector needs.
type Record struct {
	FileLastModified *float64 // UTC seconds, nullable
	IndexedTimestamp float64  // UTC seconds
}

// cacheKey identifies one (path, mtime) pair whose on-disk stat result
// is memoized.
type cacheKey struct {
	path  string
	mtime int64
}

// Detector evaluates staleness against the live filesystem, with a
// bounded LRU cache keyed by (path, mtime). Every lookup still stats the
// file; the cache records whether that (path, mtime) pair was seen before.
type Detector struct {
	Mode               Mode
	StalenessThreshold time.Duration
	cache              *lru.Cache[cacheKey, time.Time]
	hits, misses       int
}

// New creates a Detector. cacheSize <= 0 uses a default of 1024.
func New(mode Mode, threshold time.Duration, cacheSize int) *Detector {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, _ := lru.New[cacheKey, time.Time](cacheSize)
	return &Detector{Mode: mode, StalenessThreshold: threshold, cache: cache}
}

// fileMTime stats path, returning its mtime in UTC. Cached by
// (path, mtime-at-last-lookup) so a churn-free file is a cache hit.
func (d *Detector) fileMTime(path string) (time.Time, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	mtime := info.ModTime().UTC()

	key := cacheKey{path: path, mtime: mtime.Unix()}
	if cached, ok := d.cache.Get(key); ok {
		d.hits++
		return cached, true
	}
	d.misses++
	d.cache.Add(key, mtime)
	return mtime, true
}

// CacheHits returns the number of cache hits observed so far, exposed
// for tests.
func (d *Detector) CacheHits() int { return d.hits }

// Evaluate compares rec against the file at path currently on disk.
// If the file can't be stat'd, the result is reported Fresh (no basis
// for declaring staleness).
func (d *Detector) Evaluate(path string, rec Record) Result {
	fileMTime, ok := d.fileMTime(path)
	if !ok {
		return Result{Tier: TierFresh}
	}

	indexTimestamp := d.selectTimestamp(rec)
	delta := fileMTime.Sub(time.Unix(0, int64(indexTimestamp*float64(time.Second))).UTC())
	if delta < 0 {
		delta = 0
	}

	isStale := delta > d.StalenessThreshold
	tier := TierFresh
	switch {
	case !isStale:
		tier = TierFresh
	case delta < minorThreshold:
		tier = TierMinor
	case delta < moderateThreshold:
		tier = TierModerate
	default:
		tier = TierMajor
	}

	return Result{
		IsStale: isStale,
		Tier:    tier,
		Delta:   delta,
		Label:   formatDelta(delta, isStale),
	}
}

// selectTimestamp applies the mode-aware fallback rule: local mode
// prefers file_last_modified, remote mode prefers indexed_timestamp,
// each falling back to the other when its preferred field is absent.
func (d *Detector) selectTimestamp(rec Record) float64 {
	switch d.Mode {
	case ModeRemote:
		if rec.IndexedTimestamp == 0 && rec.FileLastModified != nil {
			return *rec.FileLastModified
		}
		return rec.IndexedTimestamp
	default: // ModeLocal and unset
		if rec.FileLastModified != nil {
			return *rec.FileLastModified
		}
		return rec.IndexedTimestamp
	}
}

func formatDelta(d time.Duration, isStale bool) string {
	if !isStale {
		return "fresh"
	}
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm stale", int(math.Round(d.Minutes())))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh stale", int(math.Round(d.Hours())))
	default:
		return fmt.Sprintf("%dd stale", int(math.Round(d.Hours()/24)))
	}
}

// Scored is a result paired with its similarity score, for SortResults.
type Scored struct {
	Staleness Result
	Score     float32
	Index     int // original position, for a stable sort
}

// SortResults orders results by freshness first (fresh before stale,
// regardless of score), then by score descending within each group.
// This differs from a pure score sort and is part of the public
// contract: a highly-relevant stale hit still ranks behind a
// less-relevant fresh one.
func SortResults(results []Scored) []Scored {
	out := make([]Scored, len(results))
	copy(out, results)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Staleness.IsStale != out[j].Staleness.IsStale {
			return !out[i].Staleness.IsStale // fresh (false) sorts first
		}
		return out[i].Score > out[j].Score
	})
	return out
}
