// Package query orchestrates vector search, payload filtering, result
// enrichment, and staleness classification into a single query path.
package query

import (
	"strings"
	"time"

	"github.com/jsbattig/code-indexer-sub023/internal/staleness"
	"github.com/jsbattig/code-indexer-sub023/internal/store"
)

// Mode selects the staleness-comparison mode for a query, forwarded
// straight to staleness.Detector.
type Mode = staleness.Mode

// Request describes one query to the engine.
type Request struct {
	Text     string
	Filter   *store.Filter
	K        int
	Mode     Mode
	Deadline time.Duration // bounds the provider call; checked again before the vector search; 0 = no deadline

	// Temporal extensions, all optional. Validation errors surface as
	// ierr.InvalidQueryParameters.
	TimeRange string // "2024-01-01..2024-06-01"
	AtCommit  string
	// IncludeRemoved requests soft-deleted records back in results. The
	// store only ever hard-deletes, so this is currently a documented
	// no-op that surfaces a warning instead of filtering anything.
	IncludeRemoved bool
	ShowEvolution  bool
	EvolutionLimit int
}

// TimeRange is a parsed Request.TimeRange.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// parseTimeRange parses "YYYY-MM-DD..YYYY-MM-DD" into UTC bounds.
func parseTimeRange(s string) (TimeRange, error) {
	parts := strings.SplitN(s, "..", 2)
	if len(parts) != 2 {
		return TimeRange{}, errInvalidTimeRange(s)
	}
	from, err := time.Parse("2006-01-02", strings.TrimSpace(parts[0]))
	if err != nil {
		return TimeRange{}, errInvalidTimeRange(s)
	}
	to, err := time.Parse("2006-01-02", strings.TrimSpace(parts[1]))
	if err != nil {
		return TimeRange{}, errInvalidTimeRange(s)
	}
	if to.Before(from) {
		return TimeRange{}, errInvalidTimeRange(s)
	}
	return TimeRange{From: from.UTC(), To: to.UTC()}, nil
}

// EnhancedResult is one query hit after fusion, payload load, and
// staleness enrichment.
type EnhancedResult struct {
	ID        store.PointID
	Record    store.ChunkRecord
	Score     float32
	Staleness staleness.Result
}

// Response is the full result of Query, including any non-fatal
// warnings (e.g. a requested temporal index that isn't present).
type Response struct {
	Results  []EnhancedResult
	Warnings []string
}
