package searcher_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsbattig/code-indexer-sub023/internal/store"
	"github.com/jsbattig/code-indexer-sub023/pkg/embedder"
	"github.com/jsbattig/code-indexer-sub023/pkg/searcher"
)

func TestSearcher_Search_PureVectorNoAuxIndexes(t *testing.T) {
	dir := t.TempDir()
	provider := embedder.NewStaticProvider()
	st := store.New(filepath.Join(dir, ".cidx"))
	require.NoError(t, st.CreateCollection(provider.Dimensions(), provider.Model()))

	result, err := provider.Embed(context.Background(), []string{"func greet"})
	require.NoError(t, err)

	require.NoError(t, st.UpsertPoints([]store.ChunkRecord{{
		ID:     store.NewPointID(),
		Vector: result.Embeddings[0],
		Payload: store.Payload{
			FilePath:  "greet.go",
			LineStart: 1,
			LineEnd:   1,
		},
	}}))

	s := searcher.New(dir, st, provider, nil, nil)
	resp, err := s.Search(context.Background(), searcher.Request{Text: "func greet", K: 5})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Results)
}
