package index

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	"github.com/jsbattig/code-indexer-sub023/internal/ierr"
	"github.com/jsbattig/code-indexer-sub023/internal/store"
)

// HNSWFileName is the canonical on-disk name for the HNSW index.
const HNSWFileName = "hnsw_index.bin"

// DefaultHNSWM and DefaultHNSWEfSearch calibrate the graph for
// collections of up to roughly one million vectors (Open Question 2).
const (
	DefaultHNSWM        = 16
	DefaultHNSWEfSearch = 64
)

// hnswSidecar is the label<->PointID map persisted alongside the graph
// inside the single hnsw_index.bin file.
type hnswSidecar struct {
	KeyToID map[uint64]store.PointID
	NextKey uint64
}

// HNSWIndexManager builds and loads the HNSW auxiliary index.
type HNSWIndexManager struct {
	M        int
	EfSearch int
}

// NewHNSWIndexManager creates a manager with the calibrated defaults.
func NewHNSWIndexManager() *HNSWIndexManager {
	return &HNSWIndexManager{M: DefaultHNSWM, EfSearch: DefaultHNSWEfSearch}
}

// HNSWHandle is a loaded, read-only HNSW index ready for queries. It
// implements store.ANNSearcher so it can be wired directly into a
// FilesystemVectorStore.
type HNSWHandle struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[uint64]
	keyToID map[uint64]store.PointID
}

// FinalName implements Builder.
func (m *HNSWIndexManager) FinalName() string { return HNSWFileName }

// IndexExists reports whether the final hnsw_index.bin file is present.
func (m *HNSWIndexManager) IndexExists(indexesDir string) bool {
	_, err := os.Stat(filepath.Join(indexesDir, HNSWFileName))
	return err == nil
}

// Build scans every ChunkRecord under vectorsDir and writes a fresh HNSW
// graph to stagingPath. It never touches the final file name directly;
// the caller (BackgroundIndexRebuilder) owns the atomic rename.
func (m *HNSWIndexManager) Build(vectorsDir, stagingPath string) error {
	graph := m.newGraph()

	sidecar := hnswSidecar{KeyToID: make(map[uint64]store.PointID)}
	var nextKey uint64

	err := eachChunkRecord(vectorsDir, func(rec store.ChunkRecord) error {
		key := nextKey
		nextKey++
		node := hnsw.MakeNode(key, rec.Vector)
		graph.Add(node)
		sidecar.KeyToID[key] = rec.ID
		return nil
	})
	if err != nil {
		return err
	}
	sidecar.NextKey = nextKey

	var graphBuf bytes.Buffer
	if err := graph.Export(&graphBuf); err != nil {
		return ierr.New(ierr.StorageIOFailed, "failed to export hnsw graph", err)
	}

	var sidecarBuf bytes.Buffer
	if err := gob.NewEncoder(&sidecarBuf).Encode(sidecar); err != nil {
		return ierr.New(ierr.StorageIOFailed, "failed to encode hnsw sidecar", err)
	}

	f, err := os.Create(stagingPath)
	if err != nil {
		return ierr.New(ierr.StorageIOFailed, "failed to create staging file "+stagingPath, err)
	}
	defer func() { _ = f.Close() }()

	var lenPrefix [8]byte
	binary.BigEndian.PutUint64(lenPrefix[:], uint64(graphBuf.Len()))
	if _, err := f.Write(lenPrefix[:]); err != nil {
		return ierr.New(ierr.StorageIOFailed, "failed to write hnsw length prefix", err)
	}
	if _, err := f.Write(graphBuf.Bytes()); err != nil {
		return ierr.New(ierr.StorageIOFailed, "failed to write hnsw graph segment", err)
	}
	if _, err := f.Write(sidecarBuf.Bytes()); err != nil {
		return ierr.New(ierr.StorageIOFailed, "failed to write hnsw sidecar segment", err)
	}
	return f.Sync()
}

func (m *HNSWIndexManager) newGraph() *hnsw.Graph[uint64] {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = m.M
	graph.EfSearch = m.EfSearch
	graph.Ml = 0.25
	return graph
}

// Load reads the final hnsw_index.bin into a read-only handle.
func (m *HNSWIndexManager) Load(indexesDir string) (*HNSWHandle, error) {
	path := filepath.Join(indexesDir, HNSWFileName)
	f, err := os.Open(path)
	if err != nil {
		return nil, ierr.New(ierr.NotFound, "hnsw index not present", err)
	}
	defer func() { _ = f.Close() }()

	var lenPrefix [8]byte
	if _, err := io.ReadFull(f, lenPrefix[:]); err != nil {
		return nil, ierr.New(ierr.IndexCorrupt, "hnsw index truncated (length prefix)", err)
	}
	graphLen := binary.BigEndian.Uint64(lenPrefix[:])

	graphBuf := make([]byte, graphLen)
	if _, err := io.ReadFull(f, graphBuf); err != nil {
		return nil, ierr.New(ierr.IndexCorrupt, "hnsw index truncated (graph segment)", err)
	}

	graph := m.newGraph()
	if err := graph.Import(bufio.NewReader(bytes.NewReader(graphBuf))); err != nil {
		return nil, ierr.New(ierr.IndexCorrupt, "failed to import hnsw graph", err)
	}

	var sidecar hnswSidecar
	if err := gob.NewDecoder(f).Decode(&sidecar); err != nil {
		return nil, ierr.New(ierr.IndexCorrupt, "failed to decode hnsw sidecar", err)
	}

	return &HNSWHandle{graph: graph, keyToID: sidecar.KeyToID}, nil
}

// Search implements store.ANNSearcher.
func (h *HNSWHandle) Search(vector []float32, k int) ([]store.PointID, []float32, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph.Len() == 0 {
		return nil, nil, nil
	}

	nodes := h.graph.Search(vector, k)
	ids := make([]store.PointID, 0, len(nodes))
	distances := make([]float32, 0, len(nodes))
	for _, node := range nodes {
		id, ok := h.keyToID[node.Key]
		if !ok {
			continue // orphaned (lazily deleted) node
		}
		ids = append(ids, id)
		distances = append(distances, h.graph.Distance(vector, node.Value))
	}
	return ids, distances, nil
}

// Len returns the number of live (non-orphaned) graph nodes.
func (h *HNSWHandle) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.keyToID)
}

// Stats reports graph occupancy for rebuild-scheduling decisions.
// Orphans accumulate from lazy deletion (deleting the last node in the
// underlying graph is unsafe, so deleted PointIDs are dropped from
// keyToID but left in the graph until the next rebuild).
type Stats struct {
	ValidIDs   int
	GraphNodes int
	Orphans    int
}

// Stats returns the current occupancy snapshot.
func (h *HNSWHandle) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	validIDs := len(h.keyToID)
	graphNodes := h.graph.Len()
	return Stats{
		ValidIDs:   validIDs,
		GraphNodes: graphNodes,
		Orphans:    graphNodes - validIDs,
	}
}

// Delete lazily removes id from the handle's label map without
// mutating the underlying graph (coder/hnsw has a known bug deleting
// the last node in a graph). The orphaned graph node is dropped on the
// next rebuild.
func (h *HNSWHandle) Delete(id store.PointID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, candidate := range h.keyToID {
		if candidate == id {
			delete(h.keyToID, key)
			return
		}
	}
}

// eachChunkRecord walks vectorsDir reading every ChunkRecord JSON file.
// Unreadable or corrupt records are skipped rather than failing the
// whole rebuild, matching the rebuild's "whatever is visible" contract.
func eachChunkRecord(vectorsDir string, fn func(store.ChunkRecord) error) error {
	if _, err := os.Stat(vectorsDir); os.IsNotExist(err) {
		return nil
	}
	return filepath.Walk(vectorsDir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		var rec store.ChunkRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil
		}
		return fn(rec)
	})
}
