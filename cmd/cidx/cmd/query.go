package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jsbattig/code-indexer-sub023/internal/config"
	"github.com/jsbattig/code-indexer-sub023/internal/query"
	"github.com/jsbattig/code-indexer-sub023/internal/staleness"
	"github.com/jsbattig/code-indexer-sub023/pkg/embedder"
)

func newQueryCmd() *cobra.Command {
	var (
		path           string
		k              int
		mode           string
		timeRange      string
		atCommit       string
		includeRemoved bool
		showEvolution  bool
		evolutionLimit int
		deadline       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Run a search query against an indexed project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), cmd, path, args[0], queryFlags{
				k: k, mode: mode, timeRange: timeRange, atCommit: atCommit,
				includeRemoved: includeRemoved, showEvolution: showEvolution,
				evolutionLimit: evolutionLimit, deadline: deadline,
			})
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "Project directory to query")
	cmd.Flags().IntVar(&k, "k", 10, "Number of results to return")
	cmd.Flags().StringVar(&mode, "mode", "local", "Staleness comparison mode: local or remote")
	cmd.Flags().StringVar(&timeRange, "time-range", "", "Restrict results to chunks indexed within YYYY-MM-DD..YYYY-MM-DD")
	cmd.Flags().StringVar(&atCommit, "at-commit", "", "Restrict results to a specific git commit hash")
	cmd.Flags().BoolVar(&includeRemoved, "include-removed", false, "Include chunks whose source file no longer exists")
	cmd.Flags().BoolVar(&showEvolution, "show-evolution", false, "Show how a result's chunk evolved across commits")
	cmd.Flags().IntVar(&evolutionLimit, "evolution-limit", 5, "Maximum evolution entries per result")
	cmd.Flags().DurationVar(&deadline, "deadline", 0, "Bound the embedding and search calls; 0 disables the deadline")

	return cmd
}

type queryFlags struct {
	k              int
	mode           string
	timeRange      string
	atCommit       string
	includeRemoved bool
	showEvolution  bool
	evolutionLimit int
	deadline       time.Duration
}

func runQuery(ctx context.Context, cmd *cobra.Command, path, text string, f queryFlags) error {
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
		return fmt.Errorf("no index found at %s: run 'cidx index' first", dataDir(root, cfg))
	}

	aux, err := loadAuxIndexes(st, root)
	if err != nil {
		return err
	}
	if aux.HNSW != nil {
		st.SetANN(aux.HNSW)
	}

	det := staleness.New(staleness.Mode(f.mode), 0, 512)

	engine := &query.Engine{
		Provider:    provider,
		Store:       st,
		Staleness:   det,
		ProjectRoot: root,
		RRFConstant: 60,
	}
	if aux.FTS != nil {
		engine.FTS = aux.FTS
	}

	resp, err := engine.Query(ctx, query.Request{
		Text:           text,
		K:              f.k,
		Mode:           query.Mode(f.mode),
		Deadline:       f.deadline,
		TimeRange:      f.timeRange,
		AtCommit:       f.atCommit,
		IncludeRemoved: f.includeRemoved,
		ShowEvolution:  f.showEvolution,
		EvolutionLimit: f.evolutionLimit,
	})
	if err != nil {
		return err
	}

	for _, w := range resp.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
	for _, r := range resp.Results {
		fmt.Fprintf(cmd.OutOrStdout(), "%.4f  %s:%d-%d  [%s]\n",
			r.Score, r.Record.Payload.FilePath, r.Record.Payload.LineStart, r.Record.Payload.LineEnd,
			r.Staleness.Tier)
	}
	return nil
}
