package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jsbattig/code-indexer-sub023/internal/config"
	"github.com/jsbattig/code-indexer-sub023/internal/index"
	"github.com/jsbattig/code-indexer-sub023/internal/rebuild"
)

func newRebuildCmd() *cobra.Command {
	var (
		path        string
		which       string
		cleanupOnly bool
	)

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the HNSW, ID, and/or FTS auxiliary indexes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRebuild(cmd, path, which, cleanupOnly)
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "Project directory")
	cmd.Flags().StringVar(&which, "index", "all", "Which index to rebuild: hnsw, id, fts, or all")
	cmd.Flags().BoolVar(&cleanupOnly, "cleanup-orphans", false, "Only remove orphaned .tmp staging files, don't rebuild")

	return cmd
}

func runRebuild(cmd *cobra.Command, path, which string, cleanupOnly bool) error {
	root, err := resolveProjectRoot(path)
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	st := openStore(root, cfg)

	if cleanupOnly {
		n, err := rebuild.CleanupOrphanedTempFiles(st.IndexesDir(), time.Hour)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d orphaned staging file(s)\n", n)
		return nil
	}

	var builders []rebuild.Builder
	switch which {
	case "hnsw":
		builders = []rebuild.Builder{index.NewHNSWIndexManager()}
	case "id":
		builders = []rebuild.Builder{index.NewIDIndexManager()}
	case "fts":
		builders = []rebuild.Builder{index.NewFTSIndexManager(root)}
	case "all", "":
		builders = []rebuild.Builder{
			index.NewIDIndexManager(),
			index.NewHNSWIndexManager(),
			index.NewFTSIndexManager(root),
		}
	default:
		return fmt.Errorf("unknown index %q: expected hnsw, id, fts, or all", which)
	}

	if err := rebuild.RebuildAll(cmd.Context(), st.VectorsDir(), st.IndexesDir(), builders); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "rebuilt %s\n", which)
	return nil
}
