package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsbattig/code-indexer-sub023/internal/store"
)

func buildLoadedIndexes(t *testing.T, st *store.FilesystemVectorStore) (*IDHandle, *HNSWHandle, *FTSHandle) {
	t.Helper()
	indexesDir := st.IndexesDir()
	require.NoError(t, os.MkdirAll(indexesDir, 0o755))

	idMgr := NewIDIndexManager()
	idStaging := filepath.Join(indexesDir, IDFileName+".staging")
	require.NoError(t, idMgr.Build(st.VectorsDir(), idStaging))
	require.NoError(t, os.Rename(idStaging, filepath.Join(indexesDir, IDFileName)))
	idHandle, err := idMgr.Load(indexesDir)
	require.NoError(t, err)

	hnswMgr := NewHNSWIndexManager()
	hnswStaging := filepath.Join(indexesDir, HNSWFileName+".staging")
	require.NoError(t, hnswMgr.Build(st.VectorsDir(), hnswStaging))
	require.NoError(t, os.Rename(hnswStaging, filepath.Join(indexesDir, HNSWFileName)))
	hnswHandle, err := hnswMgr.Load(indexesDir)
	require.NoError(t, err)

	ftsMgr := NewFTSIndexManager(t.TempDir())
	ftsStaging := filepath.Join(indexesDir, FTSDirName+".staging")
	require.NoError(t, ftsMgr.Build(st.VectorsDir(), ftsStaging))
	require.NoError(t, os.Rename(ftsStaging, filepath.Join(indexesDir, FTSDirName)))
	ftsHandle, err := ftsMgr.Load(indexesDir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ftsHandle.Close() })

	return idHandle, hnswHandle, ftsHandle
}

func newStoreWithPoints(t *testing.T, n int) *store.FilesystemVectorStore {
	t.Helper()
	st := store.New(t.TempDir())
	require.NoError(t, st.CreateCollection(4, "test-model"))

	records := make([]store.ChunkRecord, n)
	for i := 0; i < n; i++ {
		records[i] = store.ChunkRecord{
			ID:     store.NewPointID(),
			Vector: []float32{1, 0, 0, 0},
			Payload: store.Payload{
				FilePath:  "a.go",
				LineStart: 1,
				LineEnd:   1,
			},
		}
	}
	require.NoError(t, st.UpsertPoints(records))
	return st
}

func TestConsistencyChecker_Check_FreshlyBuiltIndexesAreConsistent(t *testing.T) {
	st := newStoreWithPoints(t, 5)
	idHandle, hnswHandle, ftsHandle := buildLoadedIndexes(t, st)

	checker := NewConsistencyChecker(st, idHandle, hnswHandle, ftsHandle)
	result, err := checker.Check(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, result.Checked)
	assert.Empty(t, result.Inconsistencies)
}

func TestConsistencyChecker_Check_DetectsMissingFromID(t *testing.T) {
	st := newStoreWithPoints(t, 2)
	idHandle, hnswHandle, ftsHandle := buildLoadedIndexes(t, st)

	extra := store.ChunkRecord{
		ID:      store.NewPointID(),
		Vector:  []float32{1, 0, 0, 0},
		Payload: store.Payload{FilePath: "b.go"},
	}
	require.NoError(t, st.UpsertPoints([]store.ChunkRecord{extra}))

	checker := NewConsistencyChecker(st, idHandle, hnswHandle, ftsHandle)
	result, err := checker.Check(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Checked)
	require.Len(t, result.Inconsistencies, 1)
	assert.Equal(t, InconsistencyMissingFromID, result.Inconsistencies[0].Type)
	assert.Equal(t, extra.ID, result.Inconsistencies[0].PointID)
}

func TestConsistencyChecker_Check_DetectsOrphanID(t *testing.T) {
	st := newStoreWithPoints(t, 2)
	idHandle, hnswHandle, ftsHandle := buildLoadedIndexes(t, st)

	all, err := st.AllIDs()
	require.NoError(t, err)
	require.NoError(t, st.DeletePoints(all[:1]))

	checker := NewConsistencyChecker(st, idHandle, hnswHandle, ftsHandle)
	result, err := checker.Check(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Inconsistencies, 1)
	assert.Equal(t, InconsistencyOrphanID, result.Inconsistencies[0].Type)
	assert.Equal(t, all[0], result.Inconsistencies[0].PointID)
}

func TestConsistencyChecker_QuickCheck(t *testing.T) {
	st := newStoreWithPoints(t, 3)
	idHandle, hnswHandle, ftsHandle := buildLoadedIndexes(t, st)

	checker := NewConsistencyChecker(st, idHandle, hnswHandle, ftsHandle)
	ok, err := checker.QuickCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	extra := store.ChunkRecord{ID: store.NewPointID(), Vector: []float32{1, 0, 0, 0}}
	require.NoError(t, st.UpsertPoints([]store.ChunkRecord{extra}))

	ok, err = checker.QuickCheck(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConsistencyChecker_NilHandlesAreSkipped(t *testing.T) {
	st := newStoreWithPoints(t, 1)
	checker := NewConsistencyChecker(st, nil, nil, nil)

	result, err := checker.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Checked)
	assert.Empty(t, result.Inconsistencies)

	ok, err := checker.QuickCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}
