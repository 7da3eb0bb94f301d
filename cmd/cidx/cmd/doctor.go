package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jsbattig/code-indexer-sub023/internal/config"
	"github.com/jsbattig/code-indexer-sub023/internal/index"
)

func newDoctorCmd() *cobra.Command {
	var (
		path  string
		quick bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the store and auxiliary indexes for consistency",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, path, quick)
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "Project directory")
	cmd.Flags().BoolVar(&quick, "quick", false, "Only compare index counts, skip the full ID diff")

	return cmd
}

func runDoctor(cmd *cobra.Command, path string, quick bool) error {
	root, err := resolveProjectRoot(path)
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	st := openStore(root, cfg)
	if !st.CollectionExists() {
		return fmt.Errorf("no index found at %s: run 'cidx index' first", dataDir(root, cfg))
	}

	aux, err := loadAuxIndexes(st, root)
	if err != nil {
		return err
	}

	checker := index.NewConsistencyChecker(st, aux.ID, aux.HNSW, aux.FTS)

	if quick {
		ok, err := checker.QuickCheck(cmd.Context())
		if err != nil {
			return err
		}
		if ok {
			fmt.Fprintln(cmd.OutOrStdout(), "consistent")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), "inconsistent: index counts disagree, run without --quick for detail")
		return nil
	}

	result, err := checker.Check(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "checked %d points in %s\n", result.Checked, result.Duration)
	if len(result.Inconsistencies) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "consistent")
		return nil
	}
	for _, issue := range result.Inconsistencies {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", issue.Type, issue.PointID, issue.Details)
	}
	return nil
}
