package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jsbattig/code-indexer-sub023/internal/chunk"
	"github.com/jsbattig/code-indexer-sub023/internal/config"
	"github.com/jsbattig/code-indexer-sub023/internal/embedqueue"
	"github.com/jsbattig/code-indexer-sub023/internal/ingest"
	"github.com/jsbattig/code-indexer-sub023/internal/progress"
	"github.com/jsbattig/code-indexer-sub023/internal/slots"
	"github.com/jsbattig/code-indexer-sub023/internal/watcher"
	"github.com/jsbattig/code-indexer-sub023/pkg/embedder"
)

func newWatchCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a project for changes and keep its index current",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, path)
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "Project directory to watch")

	return cmd
}

func runWatch(cmd *cobra.Command, path string) error {
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

	chunker := chunk.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	defer chunker.Close()
	embedMgr := embedqueue.NewManager(provider, cfg.Embeddings.MaxWorkers)
	defer embedMgr.Stop()
	tracker := slots.NewTracker(cfg.Embeddings.MaxWorkers)
	progLog := progress.Open(progressDir(root, cfg))
	mgr := ingest.NewManager(chunker, embedMgr, st, tracker, progLog)

	w, err := watcher.NewHybridWatcher(watcher.DefaultOptions())
	if err != nil {
		return err
	}
	defer w.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Start(ctx, root); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "watching %s for changes, press ctrl-c to stop\n", root)

	bridge := watcher.NewBridge(root, mgr, ingest.Metadata{ProjectID: root})
	bridge.Run(ctx, w.Events())

	return nil
}
