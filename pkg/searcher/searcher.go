// Package searcher is the public API facade over the query engine: it
// wraps internal/query.Engine so callers outside this module can run
// a search without wiring the provider/store/staleness detector
// themselves.
package searcher

import (
	"context"

	"github.com/jsbattig/code-indexer-sub023/internal/index"
	"github.com/jsbattig/code-indexer-sub023/internal/query"
	"github.com/jsbattig/code-indexer-sub023/internal/staleness"
	"github.com/jsbattig/code-indexer-sub023/internal/store"
	"github.com/jsbattig/code-indexer-sub023/pkg/embedder"
)

// Request and Response are re-exported from internal/query so callers
// never import an internal package.
type Request = query.Request
type Response = query.Response

// Searcher runs queries against a loaded collection. A loaded HNSW
// handle enables ANN search; a loaded FTS handle additionally enables
// the RRF-fused hybrid result described in the query engine.
type Searcher struct {
	engine *query.Engine
}

// New builds a Searcher over st, wiring the loaded HNSW and FTS
// handles (either may be nil) into the underlying query engine.
func New(projectRoot string, st *store.FilesystemVectorStore, provider embedder.Provider, hnsw *index.HNSWHandle, fts *index.FTSHandle) *Searcher {
	if hnsw != nil {
		st.SetANN(hnsw)
	}

	det := staleness.New(staleness.ModeLocal, 0, 512)
	e := &query.Engine{
		Provider:    provider,
		Store:       st,
		Staleness:   det,
		ProjectRoot: projectRoot,
		RRFConstant: 60,
	}
	if fts != nil {
		e.FTS = fts
	}
	return &Searcher{engine: e}
}

// Search runs req against the collection.
func (s *Searcher) Search(ctx context.Context, req Request) (Response, error) {
	return s.engine.Query(ctx, req)
}
