// Package ingest drives the per-file clean lifecycle: acquire a
// concurrency slot, chunk a file's text, embed the chunks as one batch,
// upsert the resulting records, and record the outcome in the
// resumable progress log. It is the orchestration layer gluing
// scanner, chunk, embedqueue, store, slots, and progress together.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jsbattig/code-indexer-sub023/internal/chunk"
	"github.com/jsbattig/code-indexer-sub023/internal/embedqueue"
	"github.com/jsbattig/code-indexer-sub023/internal/ierr"
	"github.com/jsbattig/code-indexer-sub023/internal/progress"
	"github.com/jsbattig/code-indexer-sub023/internal/scanner"
	"github.com/jsbattig/code-indexer-sub023/internal/slots"
	"github.com/jsbattig/code-indexer-sub023/internal/store"
)

// Metadata carries the fields a caller attaches to every ChunkRecord
// produced for one file: the logical collection tag plus whatever git
// context the caller already resolved for this indexing run.
type Metadata struct {
	ProjectID      string
	GitCommitHash  string
	GitBranch      string
	GitHash        string
	HiddenBranches []string
}

// FileResult is process_file's return contract: success plus the
// PointIDs written, or an error with no further rollback obligation.
type FileResult struct {
	Path          string
	Success       bool
	ChunksCreated int
	PointIDs      []store.PointID
	Error         error
}

// Manager wires together the components a FileChunkingManager needs to
// carry a single file from disk to the vector store. All fields are
// required; Manager is safe for concurrent use by multiple goroutines
// calling ProcessFile.
type Manager struct {
	Chunker  *chunk.Chunker
	Embedder *embedqueue.Manager
	Store    *store.FilesystemVectorStore
	Slots    *slots.Tracker
	Progress *progress.Log
}

// NewManager constructs a Manager from its component parts.
func NewManager(chunker *chunk.Chunker, embedder *embedqueue.Manager, st *store.FilesystemVectorStore, tracker *slots.Tracker, log *progress.Log) *Manager {
	return &Manager{Chunker: chunker, Embedder: embedder, Store: st, Slots: tracker, Progress: log}
}

// ProcessFile carries relPath (relative to the project root, used as
// the payload's file_path and the progress log key) through the clean
// lifecycle: stat, chunk, embed, upsert, record. Any step's failure
// marks the file failed in the progress log, releases the slot, and
// returns a non-nil Error; chunks already upserted for this file in
// this attempt are not rolled back.
func (m *Manager) ProcessFile(ctx context.Context, absPath, relPath string, meta Metadata) FileResult {
	size, lastModified := statSizeAndMtime(absPath)

	slotID := m.Slots.AcquireSlot(relPath, size)
	defer func() { _ = m.Slots.ReleaseSlot(slotID) }()

	content, err := os.ReadFile(absPath)
	if err != nil {
		return m.fail(relPath, ierr.New(ierr.StorageIOFailed, "failed to read "+relPath, err))
	}

	m.Slots.UpdateStatus(slotID, slots.StatusChunking)
	ext := strings.TrimPrefix(filepath.Ext(relPath), ".")
	chunks, err := m.Chunker.ChunkFile(string(content), ext)
	if err != nil {
		return m.fail(relPath, err)
	}
	if len(chunks) == 0 {
		m.Progress.MarkCompleted(relPath, 0, nil)
		return FileResult{Path: relPath, Success: true}
	}

	m.Slots.UpdateStatus(slotID, slots.StatusVectorizing)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	future := m.Embedder.SubmitBatchTask(ctx, texts)
	result, err := future.Wait(ctx)
	if err != nil {
		return m.fail(relPath, classifyWaitErr(err))
	}
	if result.Error != "" {
		return m.fail(relPath, ierr.New(ierr.EmbeddingFailed, result.Error, nil))
	}
	if len(result.Embeddings) != len(chunks) {
		return m.fail(relPath, ierr.New(ierr.EmbeddingFailed, "embedding count does not match chunk count", nil))
	}

	m.Slots.UpdateStatus(slotID, slots.StatusFinalizing)
	fileHash := hashContent(content)
	language, _ := chunk.DetectLanguage(ext)

	records := make([]store.ChunkRecord, len(chunks))
	for i, c := range chunks {
		records[i] = store.ChunkRecord{
			ID:     store.NewPointID(),
			Vector: result.Embeddings[i],
			Payload: store.Payload{
				ProjectID:        meta.ProjectID,
				FilePath:         relPath,
				FileHash:         fileHash,
				ChunkIndex:       c.ChunkIndex,
				TotalChunks:      c.TotalChunks,
				LineStart:        c.LineStart,
				LineEnd:          c.LineEnd,
				FileExtension:    ext,
				FileLastModified: lastModified,
				IndexedTimestamp: nowUnix(),
				Type:             "content",
				Language:         language,
				GitCommitHash:    meta.GitCommitHash,
				GitBranch:        meta.GitBranch,
				GitHash:          meta.GitHash,
				HiddenBranches:   meta.HiddenBranches,
			},
		}
	}

	if err := m.Store.UpsertPoints(records); err != nil {
		return m.fail(relPath, err)
	}

	pointIDs := make([]store.PointID, len(records))
	pointIDStrs := make([]string, len(records))
	for i, r := range records {
		pointIDs[i] = r.ID
		pointIDStrs[i] = string(r.ID)
	}
	m.Progress.MarkCompleted(relPath, len(records), pointIDStrs)

	return FileResult{Path: relPath, Success: true, ChunksCreated: len(records), PointIDs: pointIDs}
}

func (m *Manager) fail(relPath string, err error) FileResult {
	m.Progress.MarkFailed(relPath, err.Error())
	return FileResult{Path: relPath, Success: false, Error: err}
}

// classifyWaitErr distinguishes a context deadline from an embedding
// provider failure so callers can tell a slow provider from a broken one.
func classifyWaitErr(err error) error {
	if err == context.DeadlineExceeded || err == context.Canceled {
		return ierr.New(ierr.Timeout, "embedding batch wait timed out", err)
	}
	return ierr.New(ierr.EmbeddingFailed, "embedding batch wait failed", err)
}

// statSizeAndMtime stats absPath once. A stat failure (permission
// denied, dangling symlink) yields size 0 and a nil file_last_modified,
// per the universal timestamp rule's null-on-error clause; it does not
// abort the file's processing, since the subsequent read may still
// succeed or fail independently.
func statSizeAndMtime(absPath string) (size int64, lastModified *float64) {
	info, err := os.Stat(absPath)
	if err != nil {
		return 0, nil
	}
	secs := float64(info.ModTime().UTC().UnixNano()) / 1e9
	return info.Size(), &secs
}

func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func nowUnix() float64 {
	return float64(time.Now().UTC().UnixNano()) / 1e9
}

// RunOptions configures a full-project indexing pass.
type RunOptions struct {
	ProjectRoot string
	ScanOptions *scanner.ScanOptions
	Metadata    Metadata
}

// Run scans ProjectRoot and drives every discovered file through
// ProcessFile, bounded by the Manager's slot capacity. It returns one
// FileResult per file (scan errors surface as a FileResult with an empty
// Path and the scan error attached). Individual file failures never
// stop the run; only ctx cancellation does.
func (m *Manager) Run(ctx context.Context, opts RunOptions) ([]FileResult, error) {
	sc, err := scanner.New()
	if err != nil {
		return nil, err
	}

	scanOpts := opts.ScanOptions
	if scanOpts == nil {
		scanOpts = &scanner.ScanOptions{RootDir: opts.ProjectRoot, RespectGitignore: true}
	} else if scanOpts.RootDir == "" {
		scanOpts.RootDir = opts.ProjectRoot
	}

	results, err := sc.Scan(ctx, scanOpts)
	if err != nil {
		return nil, err
	}

	capacity := m.Slots.Capacity()
	sem := make(chan struct{}, capacity)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var fileResults []FileResult

	for r := range results {
		if r.Error != nil {
			mu.Lock()
			fileResults = append(fileResults, FileResult{Error: r.Error})
			mu.Unlock()
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(f *scanner.FileInfo) {
			defer wg.Done()
			defer func() { <-sem }()

			fr := m.ProcessFile(ctx, f.AbsPath, f.Path, opts.Metadata)
			mu.Lock()
			fileResults = append(fileResults, fr)
			mu.Unlock()
		}(r.File)
	}
	wg.Wait()

	return fileResults, ctx.Err()
}
