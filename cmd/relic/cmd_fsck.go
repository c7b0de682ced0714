package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFsckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fsck",
		Short: "Verify the integrity of every stored object",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			summary, err := db.Fsck(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "verified %d loose objects, %d packed objects in %d packs\n",
				summary.LooseObjects, summary.PackedObjects, summary.Packs)
			return nil
		},
	}
}
