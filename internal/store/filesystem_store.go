package store

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/jsbattig/code-indexer-sub023/internal/ierr"
)

// ANNSearcher is implemented by a loaded HNSW index handle. The store
// consults it when present and falls back to a linear scan otherwise,
// per the search contract in the component design.
type ANNSearcher interface {
	Search(vector []float32, k int) (ids []PointID, distances []float32, err error)
}

// FilesystemVectorStore is the on-disk chunk store: content-addressed
// paths, atomic writes, payload indexes, and scroll/search primitives.
type FilesystemVectorStore struct {
	root string // <project>/.code-indexer/index

	mu  sync.RWMutex
	ann ANNSearcher
}

// New creates a FilesystemVectorStore rooted at dir (the collection's
// index directory, e.g. "<project>/.code-indexer/index").
func New(dir string) *FilesystemVectorStore {
	return &FilesystemVectorStore{root: dir}
}

// SetANN wires an ANN searcher (typically the loaded HNSW handle from
// C6) to be consulted by Search. A nil searcher forces linear scan.
func (s *FilesystemVectorStore) SetANN(ann ANNSearcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ann = ann
}

func (s *FilesystemVectorStore) vectorsDir() string { return filepath.Join(s.root, "vectors") }
func (s *FilesystemVectorStore) indexesDir() string { return filepath.Join(s.root, "indexes") }
func (s *FilesystemVectorStore) metaPath() string   { return filepath.Join(s.root, "collection_meta.json") }

func (s *FilesystemVectorStore) payloadIndex() *payloadIndex {
	return newPayloadIndex(s.indexesDir())
}

// CreateCollection writes collection_meta.json atomically. Idempotent:
// calling it again for an existing collection with the same dim succeeds.
func (s *FilesystemVectorStore) CreateCollection(dim int, model string) error {
	meta := CollectionMeta{VectorDim: dim, Model: model, CreatedAt: nowUTC()}

	if existing, err := s.loadMeta(); err == nil && existing != nil {
		meta.CreatedAt = existing.CreatedAt
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return ierr.New(ierr.StorageIOFailed, "failed to marshal collection_meta.json", err)
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return ierr.New(ierr.StorageIOFailed, "failed to create collection root", err)
	}
	if err := atomicWriteFile(s.metaPath(), data, 0o644); err != nil {
		return err
	}
	return s.EnsurePayloadIndexes()
}

// CollectionExists is a pure filesystem check.
func (s *FilesystemVectorStore) CollectionExists() bool {
	_, err := os.Stat(s.metaPath())
	return err == nil
}

func (s *FilesystemVectorStore) loadMeta() (*CollectionMeta, error) {
	data, err := os.ReadFile(s.metaPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, ierr.New(ierr.StorageIOFailed, "failed to read collection_meta.json", err)
	}
	var meta CollectionMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, ierr.New(ierr.IndexCorrupt, "collection_meta.json is corrupt", err)
	}
	return &meta, nil
}

// Meta returns the collection's metadata.
func (s *FilesystemVectorStore) Meta() (*CollectionMeta, error) {
	meta, err := s.loadMeta()
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, ierr.New(ierr.NotFound, "collection_meta.json not found", nil)
	}
	return meta, nil
}

// EnsurePayloadIndexes creates the five required payload index
// directories if missing, idempotently.
func (s *FilesystemVectorStore) EnsurePayloadIndexes() error {
	return s.payloadIndex().ensure()
}

// UpsertPoints writes each point via temp+rename into its shard path and
// updates payload index postings. Ordering within the call is preserved
// for observers reading the chunk store sequentially.
func (s *FilesystemVectorStore) UpsertPoints(points []ChunkRecord) error {
	meta, err := s.Meta()
	if err != nil {
		return err
	}

	pidx := s.payloadIndex()
	for _, point := range points {
		if len(point.Vector) != meta.VectorDim {
			return ierr.New(ierr.StorageIOFailed,
				fmt.Sprintf("vector dimension mismatch for %s: got %d want %d", point.ID, len(point.Vector), meta.VectorDim), nil).
				WithDetail("point_id", string(point.ID))
		}

		// If the point already exists, remove its stale postings first
		// so re-ingestion doesn't leave it indexed under its old values.
		if old, err := s.readRecord(point.ID); err == nil && old != nil {
			if err := pidx.remove(point.ID, old.Payload); err != nil {
				return err
			}
		}

		data, err := json.Marshal(point)
		if err != nil {
			return ierr.New(ierr.StorageIOFailed, "failed to marshal chunk record "+string(point.ID), err)
		}
		if err := atomicWriteFile(ShardPath(s.vectorsDir(), point.ID), data, 0o644); err != nil {
			return err
		}
		if err := pidx.add(point.ID, point.Payload); err != nil {
			return err
		}
	}
	return nil
}

// DeletePoints removes shard files and payload postings referencing ids.
func (s *FilesystemVectorStore) DeletePoints(ids []PointID) error {
	pidx := s.payloadIndex()
	for _, id := range ids {
		rec, err := s.readRecord(id)
		if err != nil {
			return err
		}
		if rec == nil {
			continue
		}
		if err := pidx.remove(id, rec.Payload); err != nil {
			return err
		}
		path := ShardPath(s.vectorsDir(), id)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return ierr.New(ierr.StorageIOFailed, "failed to remove "+path, err)
		}
	}
	return nil
}

func (s *FilesystemVectorStore) readRecord(id PointID) (*ChunkRecord, error) {
	path := ShardPath(s.vectorsDir(), id)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, ierr.New(ierr.StorageIOFailed, "failed to read "+path, err)
	}
	var rec ChunkRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, ierr.New(ierr.IndexCorrupt, "chunk record is corrupt: "+path, err)
	}
	return &rec, nil
}

// GetPoint returns the ChunkRecord for id, or NotFound if absent.
func (s *FilesystemVectorStore) GetPoint(id PointID) (*ChunkRecord, error) {
	rec, err := s.readRecord(id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ierr.New(ierr.NotFound, "point not found: "+string(id), nil)
	}
	return rec, nil
}

// AllIDs returns every PointID currently persisted in the collection,
// sorted. Used by doctor-style consistency checks to compare the
// store's own point set against the auxiliary indexes.
func (s *FilesystemVectorStore) AllIDs() ([]PointID, error) {
	return s.allIDs()
}

// allIDs walks the vectors/ tree and returns every PointID present,
// sorted, by parsing shard filenames (the stable iteration order used
// by ScrollPoints).
func (s *FilesystemVectorStore) allIDs() ([]PointID, error) {
	var ids []PointID
	root := s.vectorsDir()
	err := filepathWalk(root, func(path string, isDir bool) error {
		if isDir || filepath.Ext(path) != ".json" {
			return nil
		}
		base := filepath.Base(path)
		ids = append(ids, PointID(base[:len(base)-len(".json")]))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// ScrollPoints returns points matching filter in stable PointID order,
// paginated by an opaque cursor (the last PointID returned).
func (s *FilesystemVectorStore) ScrollPoints(filter *Filter, limit int, cursor PointID) ([]ChunkRecord, PointID, error) {
	candidates, err := s.candidateIDs(filter)
	if err != nil {
		return nil, "", err
	}

	var page []ChunkRecord
	var next PointID
	for _, id := range candidates {
		if cursor != "" && id <= cursor {
			continue
		}
		rec, err := s.readRecord(id)
		if err != nil || rec == nil {
			continue
		}
		if filter != nil && !matchesAll(filter.Must, rec.Payload) {
			continue
		}
		page = append(page, *rec)
		if len(page) == limit {
			next = id
			break
		}
	}
	return page, next, nil
}

// candidateIDs narrows the search space using PayloadIndex postings for
// any indexed predicate in filter; falls back to a full scan otherwise.
func (s *FilesystemVectorStore) candidateIDs(filter *Filter) ([]PointID, error) {
	if filter == nil || len(filter.Must) == 0 {
		return s.allIDs()
	}

	pidx := s.payloadIndex()
	var narrowed map[PointID]struct{}
	usedIndex := false

	for _, pr := range filter.Must {
		if pr.Field == FieldFileMtime || pr.Op == OpMatchText {
			continue // not postings-indexed; applied as post-filter
		}
		if pr.Op != OpMatchValue && pr.Op != OpArrayMember {
			continue
		}
		set, err := pidx.Lookup(pr.Field, pr.Value)
		if err != nil {
			return nil, err
		}
		if !usedIndex {
			narrowed = set
			usedIndex = true
			continue
		}
		for id := range narrowed {
			if _, ok := set[id]; !ok {
				delete(narrowed, id)
			}
		}
	}

	if !usedIndex {
		return s.allIDs()
	}

	ids := make([]PointID, 0, len(narrowed))
	for id := range narrowed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func matchesAll(preds []Predicate, payload Payload) bool {
	for _, pr := range preds {
		if !pr.Matches(payload) {
			return false
		}
	}
	return true
}

// SearchResult is one scored hit from Search.
type SearchResult struct {
	ID       PointID
	Distance float32
	Record   ChunkRecord
}

// Search returns the k nearest points to vector, using the wired ANN
// searcher when present and falling back to a brute-force linear scan
// over every vector in the collection otherwise.
func (s *FilesystemVectorStore) Search(vector []float32, k int, filter *Filter) ([]SearchResult, error) {
	s.mu.RLock()
	ann := s.ann
	s.mu.RUnlock()

	if ann != nil {
		ids, distances, err := ann.Search(vector, k)
		if err != nil {
			return nil, err
		}
		var results []SearchResult
		for i, id := range ids {
			rec, err := s.readRecord(id)
			if err != nil || rec == nil {
				continue // tolerate missing records (lossy rebuild/delete race)
			}
			if filter != nil && !matchesAll(filter.Must, rec.Payload) {
				continue
			}
			results = append(results, SearchResult{ID: id, Distance: distances[i], Record: *rec})
		}
		return results, nil
	}

	return s.linearSearch(vector, k, filter)
}

func (s *FilesystemVectorStore) linearSearch(vector []float32, k int, filter *Filter) ([]SearchResult, error) {
	ids, err := s.candidateIDs(filter)
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	for _, id := range ids {
		rec, err := s.readRecord(id)
		if err != nil || rec == nil {
			continue
		}
		if filter != nil && !matchesAll(filter.Must, rec.Payload) {
			continue
		}
		results = append(results, SearchResult{ID: id, Distance: cosineDistance(vector, rec.Vector), Record: *rec})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func cosineDistance(a, b []float32) float32 {
	if len(a) != len(b) {
		return math.MaxFloat32
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(na)*math.Sqrt(nb)))
}

// HealthCheck reports true iff the index root is writable.
func (s *FilesystemVectorStore) HealthCheck() bool {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return false
	}
	probe := filepath.Join(s.root, ".health_check_probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return false
	}
	_ = os.Remove(probe)
	return true
}

// Root returns the collection's index root directory.
func (s *FilesystemVectorStore) Root() string { return s.root }

// VectorsDir returns the vectors/ subdirectory, exported for index
// managers (C6) that need to scan it at rebuild time.
func (s *FilesystemVectorStore) VectorsDir() string { return s.vectorsDir() }

// IndexesDir returns the indexes/ subdirectory.
func (s *FilesystemVectorStore) IndexesDir() string { return s.indexesDir() }
