package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsbattig/code-indexer-sub023/internal/store"
)

func TestIDIndexManager_BuildLoadContains(t *testing.T) {
	vectorsDir := t.TempDir()
	a := store.ChunkRecord{ID: store.NewPointID(), Vector: []float32{1}}
	b := store.ChunkRecord{ID: store.NewPointID(), Vector: []float32{1}}
	writeChunkRecordJSON(t, vectorsDir, a)
	writeChunkRecordJSON(t, vectorsDir, b)

	mgr := NewIDIndexManager()
	indexesDir := t.TempDir()
	staging := filepath.Join(indexesDir, IDFileName+".staging")
	require.NoError(t, mgr.Build(vectorsDir, staging))
	require.NoError(t, os.Rename(staging, filepath.Join(indexesDir, IDFileName)))
	assert.True(t, mgr.IndexExists(indexesDir))

	handle, err := mgr.Load(indexesDir)
	require.NoError(t, err)
	assert.True(t, handle.Contains(a.ID))
	assert.True(t, handle.Contains(b.ID))
	assert.False(t, handle.Contains(store.PointID("missing")))
	assert.Equal(t, 2, handle.Len())

	all := handle.All()
	require.Len(t, all, 2)
	assert.True(t, all[0] < all[1] || all[0] > all[1]) // distinct
}

func TestIDIndexManager_IndexExists_FalseWhenAbsent(t *testing.T) {
	mgr := NewIDIndexManager()
	assert.False(t, mgr.IndexExists(t.TempDir()))
}

func TestIDIndexManager_Load_ErrorsWhenMissing(t *testing.T) {
	mgr := NewIDIndexManager()
	_, err := mgr.Load(t.TempDir())
	assert.Error(t, err)
}
