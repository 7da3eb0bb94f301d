package watcher

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/jsbattig/code-indexer-sub023/internal/ingest"
)

// FileProcessor is the subset of internal/ingest.Manager's surface the
// bridge needs: re-chunk, re-embed, and upsert one changed file.
type FileProcessor interface {
	ProcessFile(ctx context.Context, absPath, relPath string, meta ingest.Metadata) ingest.FileResult
}

// Bridge drains a HybridWatcher's debounced event batches and replays
// each create/modify event through a FileProcessor, so a running
// `cidx watch` keeps a project's index current between explicit
// `cidx index` runs. Delete/rename events are not acted on here: chunks
// of a deleted file stay in the store until a rebuild, and the staleness
// detector reports a result whose source file is missing as Fresh.
type Bridge struct {
	root      string
	processor FileProcessor
	meta      ingest.Metadata
}

// NewBridge builds a Bridge that re-indexes files under root through
// processor whenever the watcher reports a create or modify event.
func NewBridge(root string, processor FileProcessor, meta ingest.Metadata) *Bridge {
	return &Bridge{root: root, processor: processor, meta: meta}
}

// Run drains events until the channel closes or ctx is cancelled.
func (b *Bridge) Run(ctx context.Context, events <-chan []FileEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-events:
			if !ok {
				return
			}
			b.handleBatch(ctx, batch)
		}
	}
}

func (b *Bridge) handleBatch(ctx context.Context, batch []FileEvent) {
	for _, ev := range batch {
		if ev.IsDir || (ev.Operation != OpCreate && ev.Operation != OpModify) {
			continue
		}
		absPath := filepath.Join(b.root, ev.Path)
		result := b.processor.ProcessFile(ctx, absPath, ev.Path, b.meta)
		if !result.Success {
			slog.Warn("watch re-index failed", slog.String("path", ev.Path), slog.Any("error", result.Error))
		}
	}
}
