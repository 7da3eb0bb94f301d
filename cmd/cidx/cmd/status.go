package cmd

import (
	"io/fs"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jsbattig/code-indexer-sub023/internal/config"
	"github.com/jsbattig/code-indexer-sub023/internal/index"
	"github.com/jsbattig/code-indexer-sub023/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var (
		path string
		json bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index statistics and storage sizes for a project",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, path, json)
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "Project directory")
	cmd.Flags().BoolVar(&json, "json", false, "Print status as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, path string, asJSON bool) error {
	root, err := resolveProjectRoot(path)
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	st := openStore(root, cfg)

	info := ui.StatusInfo{
		ProjectName:   filepath.Base(root),
		EmbedderType:  "static",
		EmbedderModel: "",
	}

	if st.CollectionExists() {
		meta, err := st.Meta()
		if err == nil {
			info.LastIndexed = meta.CreatedAt
			info.EmbedderModel = meta.Model
		}
		info.EmbedderStatus = "ready"

		storeIDs, err := st.AllIDs()
		if err == nil {
			info.TotalChunks = len(storeIDs)
		}

		info.VectorSize = dirSize(st.VectorsDir())
		info.MetadataSize = dirSize(st.IndexesDir()) - ftsSubdirSize(st.IndexesDir())
		info.FTSSize = ftsSubdirSize(st.IndexesDir())
		info.TotalSize = info.VectorSize + info.MetadataSize + info.FTSSize
	} else {
		info.EmbedderStatus = "offline"
	}

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), false)
	if asJSON {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}

func dirSize(dir string) int64 {
	var total int64
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			total += fi.Size()
		}
		return nil
	})
	return total
}

func ftsSubdirSize(indexesDir string) int64 {
	return dirSize(filepath.Join(indexesDir, index.FTSDirName))
}
