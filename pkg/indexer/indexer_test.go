package indexer_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsbattig/code-indexer-sub023/internal/config"
	"github.com/jsbattig/code-indexer-sub023/internal/ingest"
	"github.com/jsbattig/code-indexer-sub023/internal/store"
	"github.com/jsbattig/code-indexer-sub023/pkg/embedder"
	"github.com/jsbattig/code-indexer-sub023/pkg/indexer"
)

func TestIndexer_Run_IndexesDiscoveredFiles(t *testing.T) {
	projectDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "main.go"), []byte("package main\n"), 0o644))

	cfg := config.NewConfig()
	st := store.New(filepath.Join(projectDir, ".cidx"))
	provider := embedder.NewStaticProvider()

	ix, err := indexer.New(filepath.Join(projectDir, ".cidx"), cfg, st, provider)
	require.NoError(t, err)
	defer ix.Close()

	results, err := ix.Run(context.Background(), projectDir, nil, ingest.Metadata{ProjectID: "proj"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, 0, ix.Slots().OccupiedCount())
}
