package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jsbattig/code-indexer-sub023/internal/chunk"
	"github.com/jsbattig/code-indexer-sub023/internal/config"
	"github.com/jsbattig/code-indexer-sub023/internal/embedqueue"
	"github.com/jsbattig/code-indexer-sub023/internal/index"
	"github.com/jsbattig/code-indexer-sub023/internal/ingest"
	"github.com/jsbattig/code-indexer-sub023/internal/progress"
	"github.com/jsbattig/code-indexer-sub023/internal/rebuild"
	"github.com/jsbattig/code-indexer-sub023/internal/scanner"
	"github.com/jsbattig/code-indexer-sub023/internal/slots"
	"github.com/jsbattig/code-indexer-sub023/internal/store"
	"github.com/jsbattig/code-indexer-sub023/internal/ui"
	"github.com/jsbattig/code-indexer-sub023/pkg/embedder"
)

func newIndexCmd() *cobra.Command {
	var (
		path        string
		noGitignore bool
		noRebuild   bool
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Chunk, embed, and index a project's source files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), cmd, path, noGitignore, noRebuild)
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "Project directory to index")
	cmd.Flags().BoolVar(&noGitignore, "no-gitignore", false, "Do not respect .gitignore during the scan")
	cmd.Flags().BoolVar(&noRebuild, "no-rebuild", false, "Skip rebuilding the HNSW/ID/FTS auxiliary indexes after indexing")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, path string, noGitignore, noRebuild bool) error {
	root, err := resolveProjectRoot(path)
	if err != nil {
		return err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	provider := embedder.NewStaticProvider()

	st := openStore(root, cfg)
	if !st.CollectionExists() {
		if err := st.CreateCollection(provider.Dimensions(), provider.Model()); err != nil {
			return err
		}
	}

	if err := ensureDir(progressDir(root, cfg)); err != nil {
		return err
	}
	progLog := progress.Open(progressDir(root, cfg))

	chunker := chunk.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	defer chunker.Close()

	embedMgr := embedqueue.NewManager(provider, cfg.Embeddings.MaxWorkers)
	defer embedMgr.Stop()

	tracker := slots.NewTracker(cfg.Embeddings.MaxWorkers)
	mgr := ingest.NewManager(chunker, embedMgr, st, tracker, progLog)

	progLog.StartIndexing("", "index", "static", provider.Model(), "", 0)

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(), ui.WithProjectDir(root)))
	if err := renderer.Start(ctx); err != nil {
		return err
	}
	stopProgress := streamSlotProgress(ctx, renderer, tracker)

	started := time.Now()
	results, err := mgr.Run(ctx, ingest.RunOptions{
		ProjectRoot: root,
		ScanOptions: &scanner.ScanOptions{RootDir: root, RespectGitignore: !noGitignore},
		Metadata:    ingest.Metadata{ProjectID: root},
	})
	stopProgress()
	if err != nil {
		_ = renderer.Stop()
		return err
	}

	succeeded, failed, chunks := 0, 0, 0
	for _, r := range results {
		if r.Success {
			succeeded++
			chunks += r.ChunksCreated
		} else {
			failed++
			renderer.AddError(ui.ErrorEvent{File: r.Path, Err: r.Error})
		}
	}
	if err := progLog.Save(ctx); err != nil {
		_ = renderer.Stop()
		return err
	}

	renderer.Complete(ui.CompletionStats{
		Files:    succeeded,
		Chunks:   chunks,
		Duration: time.Since(started),
		Errors:   failed,
	})
	_ = renderer.Stop()

	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d files (%d chunks), %d failed\n", succeeded, chunks, failed)

	if noRebuild {
		return nil
	}
	return rebuildAuxIndexes(ctx, cmd, st, root)
}

// streamSlotProgress polls the slot tracker's snapshot at a fixed interval
// and feeds it to renderer as embedding-stage progress events, so a live
// TUI or plain-text view can show which files are currently in flight. It
// returns a stop function that blocks until the poll loop has exited.
func streamSlotProgress(ctx context.Context, renderer ui.Renderer, tracker *slots.Tracker) func() {
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(150 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				snapshot := tracker.Snapshot()
				event := ui.ProgressEvent{
					Stage:   ui.StageEmbedding,
					Current: len(snapshot),
					Total:   tracker.Capacity(),
				}
				for _, s := range snapshot {
					event.CurrentFile = s.Filename
					break
				}
				renderer.UpdateProgress(event)
			}
		}
	}()

	return func() {
		close(stop)
		<-done
	}
}

func rebuildAuxIndexes(ctx context.Context, cmd *cobra.Command, st *store.FilesystemVectorStore, projectRoot string) error {
	builders := []rebuild.Builder{
		index.NewIDIndexManager(),
		index.NewHNSWIndexManager(),
		index.NewFTSIndexManager(projectRoot),
	}
	if err := rebuild.RebuildAll(ctx, st.VectorsDir(), st.IndexesDir(), builders); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "rebuilt id, hnsw, and fts indexes")
	return nil
}
