package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jsbattig/code-indexer-sub023/configs"
)

func newInitCmd() *cobra.Command {
	var (
		path  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a .cidx.yaml configuration file from the default template",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, path, force)
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "Project directory")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing .cidx.yaml")

	return cmd
}

func runInit(cmd *cobra.Command, path string, force bool) error {
	root, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	target := filepath.Join(root, ".cidx.yaml")
	if _, err := os.Stat(target); err == nil && !force {
		return fmt.Errorf("%s already exists, pass --force to overwrite", target)
	} else if err != nil && !os.IsNotExist(err) {
		return err
	}

	if err := os.WriteFile(target, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", target)
	return nil
}
