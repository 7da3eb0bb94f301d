// Package progress tracks resumable, per-file indexing state across
// runs: which files have been chunked and embedded, what PointIDs each
// produced, and which git branch the current session is indexing.
package progress

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jsbattig/code-indexer-sub023/internal/ierr"
	"github.com/jsbattig/code-indexer-sub023/internal/lockfile"
)

// FileName is the canonical on-disk name for the progress file.
const FileName = "indexing_progress.json"

// CurrentChunkIDScheme identifies the point-ID generation scheme this
// build uses. It is stamped into the progress file on every new session
// so a future switch (e.g. to content-addressed IDs) can tell, just by
// reading the file, that point IDs from an older session follow a
// different scheme than the one now running.
const CurrentChunkIDScheme = "uuid4-random-v1"

// FileIndexingStatus is the lifecycle stage of a single file's indexing.
type FileIndexingStatus string

const (
	StatusPending    FileIndexingStatus = "pending"
	StatusChunking   FileIndexingStatus = "chunking"
	StatusVectorizing FileIndexingStatus = "vectorizing"
	StatusFinalizing FileIndexingStatus = "finalizing"
	StatusCompleted  FileIndexingStatus = "completed"
	StatusFailed     FileIndexingStatus = "failed"
)

// FileIndexingRecord is the persisted per-file state. VectorPointIDs is
// the current field name; legacy files carry the same data under
// QdrantPointIDs, migrated on load (see migrateLegacyFields).
type FileIndexingRecord struct {
	FilePath       string             `json:"file_path"`
	Status         FileIndexingStatus `json:"status"`
	ChunksCreated  int                `json:"chunks_created"`
	VectorPointIDs []string           `json:"vector_point_ids"`
	QdrantPointIDs []string           `json:"qdrant_point_ids,omitempty"`
	ErrorMessage   string             `json:"error_message,omitempty"`
}

// migrateLegacyFields moves data out of the pre-v8 qdrant_point_ids
// field into vector_point_ids. Mixed files (some records migrated,
// some not) are tolerated; the rule applies per-record.
func (r *FileIndexingRecord) migrateLegacyFields() {
	if len(r.VectorPointIDs) == 0 && len(r.QdrantPointIDs) > 0 {
		r.VectorPointIDs = r.QdrantPointIDs
	}
	if r.VectorPointIDs == nil {
		r.VectorPointIDs = []string{}
	}
	r.QdrantPointIDs = nil
}

// Session describes the indexing run currently (or most recently) in
// progress.
type Session struct {
	SessionID        string  `json:"session_id"`
	OperationType    string  `json:"operation_type"`
	StartedAt        float64 `json:"started_at"`
	EmbeddingProvider string `json:"embedding_provider"`
	EmbeddingModel   string  `json:"embedding_model"`
	TotalFiles       int     `json:"total_files"`
}

// fileState is the on-disk document shape.
type fileState struct {
	CurrentSession *Session                       `json:"current_session,omitempty"`
	FileRecords    map[string]*FileIndexingRecord `json:"file_records"`
	CurrentBranch  string                         `json:"current_branch,omitempty"`
	ChunkIDScheme  string                         `json:"chunk_id_scheme,omitempty"`
	LastUpdated    float64                        `json:"last_updated"`
}

// Log is an in-memory, lock-guarded view of indexing_progress.json. One
// Log is meant to be shared by all goroutines ingesting into a single
// collection; Save serializes writers via an exclusive file lock so
// concurrent processes never interleave partial writes.
type Log struct {
	dir string

	mu             sync.Mutex
	currentSession *Session
	fileRecords    map[string]*FileIndexingRecord
	currentBranch  string
	chunkIDScheme  string

	// CorruptionWarned is set once a corrupted file has triggered the
	// discard-and-recreate recovery path, so the warning is emitted only
	// once per process lifetime for this Log.
	corruptionWarned bool
	lastWarning      string
}

// Open loads dir/indexing_progress.json if present, migrating any
// legacy qdrant_point_ids fields. A corrupted file is discarded (the
// Log starts empty) rather than failing the caller; the next Save
// recreates it in the current format.
func Open(dir string) *Log {
	l := &Log{dir: dir, fileRecords: make(map[string]*FileIndexingRecord)}
	l.load()
	return l
}

func (l *Log) path() string {
	return filepath.Join(l.dir, FileName)
}

func (l *Log) load() {
	data, err := os.ReadFile(l.path())
	if err != nil {
		return // no file yet; start empty
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		l.corruptionWarned = true
		l.lastWarning = "indexing progress file was corrupted and has been discarded: " + err.Error()
		_ = os.Remove(l.path())
		return
	}

	l.currentSession = state.CurrentSession
	l.currentBranch = state.CurrentBranch
	l.chunkIDScheme = state.ChunkIDScheme
	if state.FileRecords == nil {
		state.FileRecords = make(map[string]*FileIndexingRecord)
	}
	for path, rec := range state.FileRecords {
		rec.migrateLegacyFields()
		state.FileRecords[path] = rec
	}
	l.fileRecords = state.FileRecords
}

// LastWarning returns the most recent recovery warning, if any
// corruption was encountered on load. Empty when nothing was recovered.
func (l *Log) LastWarning() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastWarning
}

// StartIndexing begins a new session, recording the provider, model,
// and current git branch.
func (l *Log) StartIndexing(sessionID, operationType, provider, model, branch string, totalFiles int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.currentSession = &Session{
		SessionID:         sessionID,
		OperationType:     operationType,
		StartedAt:         nowUnix(),
		EmbeddingProvider: provider,
		EmbeddingModel:    model,
		TotalFiles:        totalFiles,
	}
	l.currentBranch = branch
	l.chunkIDScheme = CurrentChunkIDScheme
}

// ChunkIDScheme returns the point-ID generation scheme recorded in the
// progress file, or CurrentChunkIDScheme if no session has stamped one
// yet (a fresh or pre-scheme-tracking log).
func (l *Log) ChunkIDScheme() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.chunkIDScheme == "" {
		return CurrentChunkIDScheme
	}
	return l.chunkIDScheme
}

// RecordFile upserts the record for a single file path.
func (l *Log) RecordFile(rec FileIndexingRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rec.VectorPointIDs == nil {
		rec.VectorPointIDs = []string{}
	}
	l.fileRecords[rec.FilePath] = &rec
}

// MarkCompleted records chunksCreated and pointIDs for path as completed.
func (l *Log) MarkCompleted(path string, chunksCreated int, pointIDs []string) {
	l.RecordFile(FileIndexingRecord{
		FilePath:       path,
		Status:         StatusCompleted,
		ChunksCreated:  chunksCreated,
		VectorPointIDs: pointIDs,
	})
}

// MarkFailed records path as failed with the given error message.
func (l *Log) MarkFailed(path string, errMsg string) {
	l.RecordFile(FileIndexingRecord{
		FilePath:     path,
		Status:       StatusFailed,
		ErrorMessage: errMsg,
	})
}

// FileRecord returns the record for path, if any.
func (l *Log) FileRecord(path string) (FileIndexingRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.fileRecords[path]
	if !ok {
		return FileIndexingRecord{}, false
	}
	return *rec, true
}

// CurrentBranch returns the branch recorded by the last UpdateBranch or
// StartIndexing call.
func (l *Log) CurrentBranch() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentBranch
}

// UpdateCurrentBranch updates the tracked branch under the progress
// file's exclusive lock, so a concurrent reader never observes a
// half-written value.
func (l *Log) UpdateCurrentBranch(ctx context.Context, name string) error {
	lock := lockfile.New(lockfile.ForPath(l.dir, FileName))
	if err := lock.Lock(ctx); err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	l.mu.Lock()
	l.currentBranch = name
	l.mu.Unlock()
	return l.save()
}

// GetCurrentBranchWithRetry reads the current branch, retrying once on
// transient lock contention before falling back to fallback.
func (l *Log) GetCurrentBranchWithRetry(ctx context.Context, fallback string) string {
	lock := lockfile.New(lockfile.ForPath(l.dir, FileName))
	ok, err := lock.TryLockWithDeadline(50 * time.Millisecond)
	if err == nil && ok {
		defer func() { _ = lock.Unlock() }()
		branch := l.CurrentBranch()
		if branch != "" {
			return branch
		}
		return fallback
	}

	// One retry.
	ok, err = lock.TryLockWithDeadline(50 * time.Millisecond)
	if err == nil && ok {
		defer func() { _ = lock.Unlock() }()
		branch := l.CurrentBranch()
		if branch != "" {
			return branch
		}
	}
	return fallback
}

// Save persists the in-memory state to disk under an exclusive lock,
// via atomic temp-file-then-rename.
func (l *Log) Save(ctx context.Context) error {
	lock := lockfile.New(lockfile.ForPath(l.dir, FileName))
	if err := lock.Lock(ctx); err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()
	return l.save()
}

func (l *Log) save() error {
	l.mu.Lock()
	scheme := l.chunkIDScheme
	if scheme == "" {
		scheme = CurrentChunkIDScheme
	}
	state := fileState{
		CurrentSession: l.currentSession,
		FileRecords:    l.fileRecords,
		CurrentBranch:  l.currentBranch,
		ChunkIDScheme:  scheme,
		LastUpdated:    nowUnix(),
	}
	l.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return ierr.New(ierr.StorageIOFailed, "failed to marshal indexing progress", err)
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return ierr.New(ierr.StorageIOFailed, "failed to create progress dir", err)
	}

	tmp := l.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return ierr.New(ierr.StorageIOFailed, "failed to write progress temp file", err)
	}
	if err := os.Rename(tmp, l.path()); err != nil {
		return ierr.New(ierr.StorageIOFailed, "failed to swap progress file into place", err)
	}
	return nil
}

func nowUnix() float64 {
	return float64(time.Now().UTC().UnixNano()) / 1e9
}
