package index

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/jsbattig/code-indexer-sub023/internal/ierr"
	"github.com/jsbattig/code-indexer-sub023/internal/store"
)

// FTSDirName is the canonical on-disk name for the full-text index.
// Unlike the HNSW and ID indexes, bleve indexes are directories, not
// single files.
const FTSDirName = "fts_index"

// ftsDoc is the document shape indexed into bleve: the chunk's source
// text (pre-split on identifier boundaries, see codeAwareText) and its
// file path, both free-text searchable.
type ftsDoc struct {
	Text string `json:"text"`
	Path string `json:"path"`
}

// FTSIndexManager builds and loads the full-text auxiliary index. Chunk
// records on disk carry line ranges and a file path but not the source
// text itself (see the ChunkRecord schema), so the manager re-reads the
// indicated line range from ProjectRoot at build time.
type FTSIndexManager struct {
	ProjectRoot string
}

// NewFTSIndexManager creates an FTSIndexManager that resolves chunk
// text against projectRoot.
func NewFTSIndexManager(projectRoot string) *FTSIndexManager {
	return &FTSIndexManager{ProjectRoot: projectRoot}
}

// FinalName implements Builder. Reported as a directory name; the
// rebuilder's rename step works the same for directories as files.
func (m *FTSIndexManager) FinalName() string { return FTSDirName }

// IndexExists reports whether the final fts_index directory is present.
func (m *FTSIndexManager) IndexExists(indexesDir string) bool {
	fi, err := os.Stat(filepath.Join(indexesDir, FTSDirName))
	return err == nil && fi.IsDir()
}

func buildMapping() *mapping.IndexMappingImpl {
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = "standard"

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("text", textField)
	docMapping.AddFieldMappingsAt("path", textField)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = docMapping
	im.DefaultAnalyzer = "standard"
	return im
}

// Build scans every ChunkRecord under vectorsDir and writes a fresh
// bleve full-text index to stagingPath (a directory path that must not
// yet exist). Chunk text and file path are pre-tokenized on code
// identifier boundaries (camelCase/snake_case) before being handed to
// bleve's standard analyzer, so searching "getUser" finds "GetUserById".
func (m *FTSIndexManager) Build(vectorsDir, stagingPath string) error {
	idx, err := bleve.New(stagingPath, buildMapping())
	if err != nil {
		return ierr.New(ierr.StorageIOFailed, "failed to create fts staging index", err)
	}
	defer func() { _ = idx.Close() }()

	batch := idx.NewBatch()
	const batchSize = 500
	count := 0

	err = eachChunkRecord(vectorsDir, func(rec store.ChunkRecord) error {
		body := m.readChunkText(rec.Payload)
		doc := ftsDoc{
			Text: codeAwareText(body) + " " + codeAwareText(rec.Payload.FilePath),
			Path: codeAwareText(rec.Payload.FilePath),
		}
		if err := batch.Index(string(rec.ID), doc); err != nil {
			return ierr.New(ierr.StorageIOFailed, "failed to stage fts document", err)
		}
		count++
		if count%batchSize == 0 {
			if err := idx.Batch(batch); err != nil {
				return ierr.New(ierr.StorageIOFailed, "failed to flush fts batch", err)
			}
			batch = idx.NewBatch()
		}
		return nil
	})
	if err != nil {
		return err
	}
	if batch.Size() > 0 {
		if err := idx.Batch(batch); err != nil {
			return ierr.New(ierr.StorageIOFailed, "failed to flush final fts batch", err)
		}
	}
	return nil
}

// readChunkText re-reads the LineStart..LineEnd range of the chunk's
// source file from ProjectRoot. A missing or unreadable file (deleted,
// moved, outside root) degrades to an empty body; the chunk still
// indexes by path alone.
func (m *FTSIndexManager) readChunkText(p store.Payload) string {
	if m.ProjectRoot == "" {
		return ""
	}
	f, err := os.Open(filepath.Join(m.ProjectRoot, filepath.FromSlash(p.FilePath)))
	if err != nil {
		return ""
	}
	defer func() { _ = f.Close() }()

	var b strings.Builder
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if line < p.LineStart {
			continue
		}
		if line > p.LineEnd {
			break
		}
		b.WriteString(scanner.Text())
		b.WriteByte('\n')
	}
	return b.String()
}

// FTSHandle is a loaded, read-only full-text index ready for queries.
type FTSHandle struct {
	idx bleve.Index
}

// Load opens the final fts_index directory read-only.
func (m *FTSIndexManager) Load(indexesDir string) (*FTSHandle, error) {
	path := filepath.Join(indexesDir, FTSDirName)
	idx, err := bleve.Open(path)
	if err != nil {
		return nil, ierr.New(ierr.IndexCorrupt, "failed to open fts index", err)
	}
	return &FTSHandle{idx: idx}, nil
}

// Close releases the underlying bleve index's file handles.
func (h *FTSHandle) Close() error {
	return h.idx.Close()
}

// Search runs a full-text query over the index, returning matching
// PointIDs ranked by bleve's relevance score (highest first).
func (h *FTSHandle) Search(queryText string, limit int) ([]store.PointID, error) {
	q := bleve.NewMatchQuery(codeAwareText(queryText))
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)

	result, err := h.idx.Search(req)
	if err != nil {
		return nil, ierr.New(ierr.StorageIOFailed, "fts search failed", err)
	}

	ids := make([]store.PointID, 0, len(result.Hits))
	for _, hit := range result.Hits {
		ids = append(ids, store.PointID(hit.ID))
	}
	return ids, nil
}

// Len returns the number of documents in the index.
func (h *FTSHandle) Len() int {
	count, err := h.idx.DocCount()
	if err != nil {
		return 0
	}
	return int(count)
}
