package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/relic-scm/relic/pkg/config"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var legacy bool
	var compression int

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create an empty relic repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}

			repoDir := filepath.Join(abs, repoDirName)
			for _, dir := range []string{
				repoDir,
				filepath.Join(repoDir, "objects"),
				filepath.Join(repoDir, "objects", "pack"),
			} {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create %s: %w", dir, err)
				}
			}

			cfg := config.Default()
			cfg.Core.Compression = compression
			cfg.Core.LegacyHeaders = legacy
			if err := config.Save(filepath.Join(repoDir, "config.toml"), cfg); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "initialized empty relic repository in %s%c\n", repoDir, filepath.Separator)
			return nil
		},
	}

	cmd.Flags().BoolVar(&legacy, "legacy-headers", false, "write loose objects in the legacy layout")
	cmd.Flags().IntVar(&compression, "compression", config.Default().Core.Compression, "zlib level for loose writes (-1..9)")
	return cmd
}
