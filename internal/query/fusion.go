package query

import (
	"sort"

	"github.com/jsbattig/code-indexer-sub023/internal/store"
)

// DefaultRRFConstant is the standard RRF smoothing parameter (k=60 is
// empirically validated across domains: Azure AI Search, OpenSearch).
const DefaultRRFConstant = 60

// fusedCandidate tracks a PointID's rank in each ranked list it
// appeared in, accumulating a combined RRF score.
type fusedCandidate struct {
	id       store.PointID
	rrfScore float64
	vecRank  int // 1-indexed, 0 if absent
	ftsRank  int // 1-indexed, 0 if absent
}

// rrfFuse combines the HNSW top-k ranking with FTS candidate ranking
// via Reciprocal Rank Fusion: score(d) = sum(1 / (k + rank_i)).
// Documents present in only one list are not penalized further beyond
// the missing contribution; this mirrors the teacher's two-list fusion
// without per-source weighting (vector and text carry equal weight
// here, since there's no BM25 score to preserve separately).
func rrfFuse(vecIDs []store.PointID, ftsIDs []store.PointID, k int) []store.PointID {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	if len(vecIDs) == 0 && len(ftsIDs) == 0 {
		return nil
	}

	candidates := make(map[store.PointID]*fusedCandidate)
	getOrCreate := func(id store.PointID) *fusedCandidate {
		if c, ok := candidates[id]; ok {
			return c
		}
		c := &fusedCandidate{id: id}
		candidates[id] = c
		return c
	}

	for rank, id := range vecIDs {
		c := getOrCreate(id)
		c.vecRank = rank + 1
		c.rrfScore += 1.0 / float64(k+rank+1)
	}
	for rank, id := range ftsIDs {
		c := getOrCreate(id)
		c.ftsRank = rank + 1
		c.rrfScore += 1.0 / float64(k+rank+1)
	}

	results := make([]*fusedCandidate, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, c)
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.rrfScore != b.rrfScore {
			return a.rrfScore > b.rrfScore
		}
		bothA := a.vecRank > 0 && a.ftsRank > 0
		bothB := b.vecRank > 0 && b.ftsRank > 0
		if bothA != bothB {
			return bothA
		}
		return a.id < b.id
	})

	ids := make([]store.PointID, len(results))
	for i, c := range results {
		ids[i] = c.id
	}
	return ids
}
