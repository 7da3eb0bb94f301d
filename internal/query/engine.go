package query

import (
	"context"
	"time"

	"github.com/jsbattig/code-indexer-sub023/internal/ierr"
	"github.com/jsbattig/code-indexer-sub023/internal/staleness"
	"github.com/jsbattig/code-indexer-sub023/internal/store"
	"github.com/jsbattig/code-indexer-sub023/pkg/embedder"
)

// FTSSearcher is the subset of index.FTSHandle the engine needs, kept
// as an interface so callers can wire a loaded handle (or omit it:
// nil is a legal "no FTS index present" value).
type FTSSearcher interface {
	Search(queryText string, limit int) ([]store.PointID, error)
}

// Engine runs the query pipeline: embed, search, filter, enrich,
// stale-sort.
type Engine struct {
	Provider  embedder.Provider
	Store     *store.FilesystemVectorStore
	FTS       FTSSearcher // nil permitted: pure-vector search only
	Staleness *staleness.Detector
	ProjectRoot string
	RRFConstant int
}

// Query runs the full pipeline described by req and returns enriched,
// staleness-sorted results.
func (e *Engine) Query(ctx context.Context, req Request) (Response, error) {
	if req.K <= 0 {
		return Response{}, ierr.New(ierr.InvalidQueryParameters, "k must be positive", nil)
	}

	warnings, err := e.validateTemporal(req)
	if err != nil {
		return Response{}, err
	}

	deadlineCtx, cancel := queryDeadline(ctx, req.Deadline)
	defer cancel()

	if err := deadlineCtx.Err(); err != nil {
		return Response{}, ierr.New(ierr.Timeout, "query deadline expired before embedding", err)
	}

	result, err := e.Provider.Embed(deadlineCtx, []string{req.Text})
	if err != nil {
		if deadlineCtx.Err() != nil {
			return Response{}, ierr.New(ierr.Timeout, "query deadline expired during embedding", err)
		}
		return Response{}, ierr.New(ierr.EmbeddingFailed, "failed to embed query text", err)
	}
	if result.Error != "" {
		return Response{}, ierr.New(ierr.EmbeddingFailed, result.Error, nil)
	}
	if len(result.Embeddings) == 0 {
		return Response{}, ierr.New(ierr.EmbeddingFailed, "provider returned no embedding for query", nil)
	}
	queryVector := result.Embeddings[0]

	if deadlineCtx.Err() != nil {
		return Response{}, ierr.New(ierr.Timeout, "query deadline expired before vector search", deadlineCtx.Err())
	}

	searchResults, err := e.Store.Search(queryVector, req.K, req.Filter)
	if err != nil {
		return Response{}, err
	}

	ids := make([]store.PointID, len(searchResults))
	scoreByID := make(map[store.PointID]float32, len(searchResults))
	for i, r := range searchResults {
		ids[i] = r.ID
		scoreByID[r.ID] = 1.0 / (1.0 + r.Distance)
	}

	if e.FTS != nil {
		ftsIDs, err := e.FTS.Search(req.Text, req.K)
		if err == nil && len(ftsIDs) > 0 {
			ids = rrfFuse(ids, ftsIDs, e.RRFConstant)
			if len(ids) > req.K {
				ids = ids[:req.K]
			}
		}
	}

	results := make([]EnhancedResult, 0, len(ids))
	for _, id := range ids {
		rec, err := e.Store.GetPoint(id)
		if err != nil {
			continue // dropped between search and enrichment (OQ3 lossy tolerance)
		}

		score := scoreByID[id] // zero if this ID came from FTS-only fusion
		staleResult := e.evaluateStaleness(rec)
		results = append(results, EnhancedResult{ID: id, Record: *rec, Score: score, Staleness: staleResult})
	}

	scored := make([]staleness.Scored, len(results))
	for i, r := range results {
		scored[i] = staleness.Scored{Staleness: r.Staleness, Score: r.Score, Index: i}
	}
	sorted := staleness.SortResults(scored)

	final := make([]EnhancedResult, len(sorted))
	for i, s := range sorted {
		final[i] = results[s.Index]
	}

	return Response{Results: final, Warnings: warnings}, nil
}

func (e *Engine) evaluateStaleness(rec *store.ChunkRecord) staleness.Result {
	if e.Staleness == nil || e.ProjectRoot == "" {
		return staleness.Result{Tier: staleness.TierFresh}
	}
	path := e.ProjectRoot + string('/') + rec.Payload.FilePath
	return e.Staleness.Evaluate(path, staleness.Record{
		FileLastModified: rec.Payload.FileLastModified,
		IndexedTimestamp: rec.Payload.IndexedTimestamp,
	})
}

// validateTemporal checks the optional temporal extension fields and
// returns any non-fatal warnings (e.g. a requested feature that has no
// backing index yet). Malformed parameters are a hard error.
func (e *Engine) validateTemporal(req Request) ([]string, error) {
	var warnings []string

	if req.TimeRange != "" {
		if _, err := parseTimeRange(req.TimeRange); err != nil {
			return nil, err
		}
		warnings = append(warnings, "time_range filtering requires a commit-history index that is not present; returning current-code results")
	}

	if req.EvolutionLimit != 0 && !req.ShowEvolution {
		return nil, errEvolutionWithoutShowEvolution()
	}
	if req.ShowEvolution {
		if req.EvolutionLimit < 0 {
			return nil, errInvalidEvolutionLimit(req.EvolutionLimit)
		}
		warnings = append(warnings, "show_evolution requires a commit-history index that is not present; returning current-code results")
	}

	if req.AtCommit != "" {
		warnings = append(warnings, "at_commit requires a commit-history index that is not present; returning current-code results")
	}

	if req.IncludeRemoved {
		warnings = append(warnings, "include_removed requires a soft-delete index that is not present; the store only ever hard-deletes, so this has no effect")
	}

	return warnings, nil
}

// queryDeadline bounds the provider call; Query checks it once more
// before the vector search, which then runs to completion. An expired
// deadline surfaces as ierr.Timeout.
func queryDeadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
