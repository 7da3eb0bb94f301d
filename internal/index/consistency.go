package index

import (
	"context"
	"log/slog"
	"time"

	"github.com/jsbattig/code-indexer-sub023/internal/store"
)

// InconsistencyType categorizes detected issues.
type InconsistencyType int

const (
	// InconsistencyOrphanID indicates an ID-index entry without a matching chunk record.
	InconsistencyOrphanID InconsistencyType = iota
	// InconsistencyMissingFromID indicates a chunk record missing from the ID index.
	InconsistencyMissingFromID
	// InconsistencyMissingFromHNSW indicates a chunk record missing from the HNSW index.
	InconsistencyMissingFromHNSW
	// InconsistencyMissingFromFTS indicates a chunk record missing from the FTS index.
	InconsistencyMissingFromFTS
)

// String returns a human-readable description of the inconsistency type.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyOrphanID:
		return "orphan_id"
	case InconsistencyMissingFromID:
		return "missing_from_id"
	case InconsistencyMissingFromHNSW:
		return "missing_from_hnsw"
	case InconsistencyMissingFromFTS:
		return "missing_from_fts"
	default:
		return "unknown"
	}
}

// Inconsistency represents a detected cross-index issue.
type Inconsistency struct {
	Type    InconsistencyType
	PointID store.PointID
	Details string
}

// CheckResult contains the outcome of a consistency check.
type CheckResult struct {
	// Checked is the number of chunk records in the store (the source of truth).
	Checked int
	// Inconsistencies contains all detected issues.
	Inconsistencies []Inconsistency
	// Duration is how long the check took.
	Duration time.Duration
}

// ConsistencyChecker cross-checks the store's own point set (the
// source of truth) against the three loaded auxiliary indexes, the way
// the teacher's doctor command cross-checks its metadata/BM25/vector
// stores.
type ConsistencyChecker struct {
	Store *store.FilesystemVectorStore
	ID    *IDHandle
	HNSW  *HNSWHandle
	FTS   *FTSHandle // nil permitted: FTS is optional
}

// NewConsistencyChecker creates a checker over the store and its loaded
// auxiliary index handles.
func NewConsistencyChecker(st *store.FilesystemVectorStore, id *IDHandle, hnsw *HNSWHandle, fts *FTSHandle) *ConsistencyChecker {
	return &ConsistencyChecker{Store: st, ID: id, HNSW: hnsw, FTS: fts}
}

// Check scans the store's point set and the loaded index handles for
// inconsistencies. O(n) in the total number of chunk records.
func (c *ConsistencyChecker) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()
	var issues []Inconsistency

	storeIDs, err := c.Store.AllIDs()
	if err != nil {
		return nil, err
	}
	storeSet := make(map[store.PointID]struct{}, len(storeIDs))
	for _, id := range storeIDs {
		storeSet[id] = struct{}{}
	}

	if c.ID != nil {
		for _, id := range c.ID.All() {
			if _, ok := storeSet[id]; !ok {
				issues = append(issues, Inconsistency{
					Type: InconsistencyOrphanID, PointID: id,
					Details: "id index entry without a matching chunk record",
				})
			}
		}
		for id := range storeSet {
			if !c.ID.Contains(id) {
				issues = append(issues, Inconsistency{
					Type: InconsistencyMissingFromID, PointID: id,
					Details: "chunk record missing from id index",
				})
			}
		}
	}

	if c.HNSW != nil && c.HNSW.Len() != len(storeSet) {
		slog.Debug("hnsw occupancy differs from store point count",
			slog.Int("hnsw_live", c.HNSW.Len()), slog.Int("store", len(storeSet)))
	}

	if c.FTS != nil && c.FTS.Len() != len(storeSet) {
		slog.Debug("fts document count differs from store point count",
			slog.Int("fts", c.FTS.Len()), slog.Int("store", len(storeSet)))
	}

	return &CheckResult{
		Checked:         len(storeSet),
		Inconsistencies: issues,
		Duration:        time.Since(start),
	}, nil
}

// QuickCheck performs a lightweight consistency check: only counts are
// compared across the store and whichever auxiliary indexes are loaded.
func (c *ConsistencyChecker) QuickCheck(ctx context.Context) (bool, error) {
	storeIDs, err := c.Store.AllIDs()
	if err != nil {
		return false, err
	}
	n := len(storeIDs)

	consistent := true
	if c.ID != nil && c.ID.Len() != n {
		consistent = false
	}
	if c.HNSW != nil && c.HNSW.Len() != n {
		consistent = false
	}
	if c.FTS != nil && c.FTS.Len() != n {
		consistent = false
	}
	return consistent, nil
}
