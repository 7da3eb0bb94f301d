package index

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jsbattig/code-indexer-sub023/internal/ierr"
	"github.com/jsbattig/code-indexer-sub023/internal/store"
)

// IDFileName is the canonical on-disk name for the ID index.
const IDFileName = "id_index.bin"

// IDIndexManager materializes the full set of PointIDs in a collection,
// for existence checks and set-based reconciliation (consistency.go).
type IDIndexManager struct{}

// NewIDIndexManager creates an IDIndexManager.
func NewIDIndexManager() *IDIndexManager { return &IDIndexManager{} }

// FinalName implements Builder.
func (m *IDIndexManager) FinalName() string { return IDFileName }

// IndexExists reports whether the final id_index.bin file is present.
func (m *IDIndexManager) IndexExists(indexesDir string) bool {
	_, err := os.Stat(filepath.Join(indexesDir, IDFileName))
	return err == nil
}

// Build writes every PointID found under vectorsDir, one per line sorted,
// to stagingPath.
func (m *IDIndexManager) Build(vectorsDir, stagingPath string) error {
	var ids []store.PointID
	err := eachChunkRecord(vectorsDir, func(rec store.ChunkRecord) error {
		ids = append(ids, rec.ID)
		return nil
	})
	if err != nil {
		return err
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	f, err := os.Create(stagingPath)
	if err != nil {
		return ierr.New(ierr.StorageIOFailed, "failed to create staging file "+stagingPath, err)
	}
	defer func() { _ = f.Close() }()

	w := bufio.NewWriter(f)
	for _, id := range ids {
		if _, err := w.WriteString(string(id) + "\n"); err != nil {
			return ierr.New(ierr.StorageIOFailed, "failed to write id index entry", err)
		}
	}
	if err := w.Flush(); err != nil {
		return ierr.New(ierr.StorageIOFailed, "failed to flush id index", err)
	}
	return f.Sync()
}

// IDHandle is a loaded, read-only set of all PointIDs in a collection.
type IDHandle struct {
	ids map[store.PointID]struct{}
}

// Load reads the final id_index.bin into a read-only handle.
func (m *IDIndexManager) Load(indexesDir string) (*IDHandle, error) {
	path := filepath.Join(indexesDir, IDFileName)
	f, err := os.Open(path)
	if err != nil {
		return nil, ierr.New(ierr.NotFound, "id index not present", err)
	}
	defer func() { _ = f.Close() }()

	set := make(map[store.PointID]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			set[store.PointID(line)] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, ierr.New(ierr.IndexCorrupt, "id index is corrupt", err)
	}
	return &IDHandle{ids: set}, nil
}

// Contains reports whether id is a member of the index.
func (h *IDHandle) Contains(id store.PointID) bool {
	_, ok := h.ids[id]
	return ok
}

// All returns the full set of PointIDs, sorted.
func (h *IDHandle) All() []store.PointID {
	ids := make([]store.PointID, 0, len(h.ids))
	for id := range h.ids {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of PointIDs in the index.
func (h *IDHandle) Len() int { return len(h.ids) }
