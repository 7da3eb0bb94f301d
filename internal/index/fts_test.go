package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsbattig/code-indexer-sub023/internal/store"
)

func writeChunkRecordJSON(t *testing.T, vectorsDir string, rec store.ChunkRecord) {
	t.Helper()
	require.NoError(t, os.MkdirAll(vectorsDir, 0o755))
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(vectorsDir, string(rec.ID)+".json"), data, 0o644))
}

func TestFTSIndexManager_BuildLoadSearch(t *testing.T) {
	projectRoot := t.TempDir()
	src := "package demo\n\nfunc GetUserById(id int) string {\n\treturn \"\"\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(projectRoot, "demo.go"), []byte(src), 0o644))

	vectorsDir := t.TempDir()
	rec := store.ChunkRecord{
		ID:     store.NewPointID(),
		Vector: []float32{1, 0},
		Payload: store.Payload{
			FilePath:  "demo.go",
			LineStart: 3,
			LineEnd:   5,
			Type:      "content",
		},
	}
	writeChunkRecordJSON(t, vectorsDir, rec)

	mgr := NewFTSIndexManager(projectRoot)
	indexesDir := t.TempDir()
	staging := filepath.Join(indexesDir, FTSDirName+".staging")

	require.NoError(t, mgr.Build(vectorsDir, staging))
	require.NoError(t, os.Rename(staging, filepath.Join(indexesDir, FTSDirName)))

	assert.True(t, mgr.IndexExists(indexesDir))

	handle, err := mgr.Load(indexesDir)
	require.NoError(t, err)
	defer func() { _ = handle.Close() }()

	ids, err := handle.Search("getUser", 10)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, rec.ID, ids[0])

	assert.Equal(t, 1, handle.Len())
}

func TestFTSIndexManager_IndexExists_FalseWhenAbsent(t *testing.T) {
	mgr := NewFTSIndexManager("")
	assert.False(t, mgr.IndexExists(t.TempDir()))
}

func TestFTSIndexManager_MissingSourceFileDegradesToPathOnly(t *testing.T) {
	projectRoot := t.TempDir() // demo.go intentionally absent

	vectorsDir := t.TempDir()
	rec := store.ChunkRecord{
		ID:     store.NewPointID(),
		Vector: []float32{1, 0},
		Payload: store.Payload{
			FilePath:  "widgets/userHandler.go",
			LineStart: 1,
			LineEnd:   3,
			Type:      "content",
		},
	}
	writeChunkRecordJSON(t, vectorsDir, rec)

	mgr := NewFTSIndexManager(projectRoot)
	indexesDir := t.TempDir()
	staging := filepath.Join(indexesDir, FTSDirName+".staging")
	require.NoError(t, mgr.Build(vectorsDir, staging))
	require.NoError(t, os.Rename(staging, filepath.Join(indexesDir, FTSDirName)))

	handle, err := mgr.Load(indexesDir)
	require.NoError(t, err)
	defer func() { _ = handle.Close() }()

	ids, err := handle.Search("user handler", 10)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, rec.ID, ids[0])
}

func TestCodeAwareTokens_SplitsIdentifierBoundaries(t *testing.T) {
	tokens := codeAwareTokens("GetUserById get_user_by_id")
	assert.Contains(t, tokens, "get")
	assert.Contains(t, tokens, "user")
	assert.Contains(t, tokens, "by")
	assert.Contains(t, tokens, "id")
}
