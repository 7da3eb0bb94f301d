// Package indexer is the public API facade over the indexing engine:
// chunk, embed, and upsert a project's files into its vector store.
// It wraps internal/ingest.Manager so callers outside this module
// don't need to wire the chunker/embedder/store/slots/progress
// components themselves.
package indexer

import (
	"context"

	"github.com/jsbattig/code-indexer-sub023/internal/chunk"
	"github.com/jsbattig/code-indexer-sub023/internal/config"
	"github.com/jsbattig/code-indexer-sub023/internal/embedqueue"
	"github.com/jsbattig/code-indexer-sub023/internal/ingest"
	"github.com/jsbattig/code-indexer-sub023/internal/progress"
	"github.com/jsbattig/code-indexer-sub023/internal/scanner"
	"github.com/jsbattig/code-indexer-sub023/internal/slots"
	"github.com/jsbattig/code-indexer-sub023/internal/store"
	"github.com/jsbattig/code-indexer-sub023/pkg/embedder"
)

// FileResult is one file's outcome from a Run, re-exported from
// internal/ingest so callers never import an internal package.
type FileResult = ingest.FileResult

// Indexer drives a full-project indexing pass against a
// FilesystemVectorStore, per the project's Config.
type Indexer struct {
	manager *ingest.Manager
	chunker *chunk.Chunker
	embed   *embedqueue.Manager
}

// New builds an Indexer over st and cfg, keeping its progress log under
// progressDir. provider
// selects the embedding backend (pass embedder.NewStaticProvider() for
// offline/deterministic operation). Close must be called to release
// the chunker's tree-sitter parser and the embed queue's workers.
func New(progressDir string, cfg *config.Config, st *store.FilesystemVectorStore, provider embedder.Provider) (*Indexer, error) {
	if !st.CollectionExists() {
		if err := st.CreateCollection(provider.Dimensions(), provider.Model()); err != nil {
			return nil, err
		}
	}

	chunker := chunk.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	embedMgr := embedqueue.NewManager(provider, cfg.Embeddings.MaxWorkers)
	tracker := slots.NewTracker(cfg.Embeddings.MaxWorkers)
	progLog := progress.Open(progressDir)

	return &Indexer{
		manager: ingest.NewManager(chunker, embedMgr, st, tracker, progLog),
		chunker: chunker,
		embed:   embedMgr,
	}, nil
}

// Close releases the chunker and embed queue resources.
func (ix *Indexer) Close() {
	ix.chunker.Close()
	ix.embed.Stop()
}

// Run scans projectRoot and indexes every discovered file.
func (ix *Indexer) Run(ctx context.Context, projectRoot string, scanOpts *scanner.ScanOptions, meta ingest.Metadata) ([]FileResult, error) {
	return ix.manager.Run(ctx, ingest.RunOptions{ProjectRoot: projectRoot, ScanOptions: scanOpts, Metadata: meta})
}

// Slots exposes the underlying SlotTracker for progress reporting
// (e.g. internal/ui's terminal progress view).
func (ix *Indexer) Slots() *slots.Tracker {
	return ix.manager.Slots
}
