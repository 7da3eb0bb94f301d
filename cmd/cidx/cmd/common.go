package cmd

import (
	"os"
	"path/filepath"

	"github.com/jsbattig/code-indexer-sub023/internal/config"
	"github.com/jsbattig/code-indexer-sub023/internal/index"
	"github.com/jsbattig/code-indexer-sub023/internal/store"
)

// dataDir resolves the directory that holds the vectors/ and indexes/
// subtrees: the shared parent of the configured vectors and indexes
// paths, rooted at the project root.
func dataDir(root string, cfg *config.Config) string {
	return filepath.Join(root, filepath.Dir(cfg.Paths.VectorsDir))
}

func progressDir(root string, cfg *config.Config) string {
	return filepath.Join(root, filepath.Dir(cfg.Paths.ProgressFile))
}

func resolveProjectRoot(path string) (string, error) {
	if path == "" {
		path = "."
	}
	return config.FindProjectRoot(path)
}

func openStore(root string, cfg *config.Config) *store.FilesystemVectorStore {
	return store.New(dataDir(root, cfg))
}

// loadedIndexes are the three auxiliary index handles, each nil if the
// corresponding final index file is not yet present on disk.
type loadedIndexes struct {
	ID   *index.IDHandle
	HNSW *index.HNSWHandle
	FTS  *index.FTSHandle
}

func loadAuxIndexes(st *store.FilesystemVectorStore, projectRoot string) (*loadedIndexes, error) {
	indexesDir := st.IndexesDir()
	var out loadedIndexes

	idMgr := index.NewIDIndexManager()
	if idMgr.IndexExists(indexesDir) {
		h, err := idMgr.Load(indexesDir)
		if err != nil {
			return nil, err
		}
		out.ID = h
	}

	hnswMgr := index.NewHNSWIndexManager()
	if hnswMgr.IndexExists(indexesDir) {
		h, err := hnswMgr.Load(indexesDir)
		if err != nil {
			return nil, err
		}
		out.HNSW = h
	}

	ftsMgr := index.NewFTSIndexManager(projectRoot)
	if ftsMgr.IndexExists(indexesDir) {
		h, err := ftsMgr.Load(indexesDir)
		if err != nil {
			return nil, err
		}
		out.FTS = h
	}

	return &out, nil
}

func ensureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}
