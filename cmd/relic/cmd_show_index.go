package main

import (
	"fmt"

	"github.com/relic-scm/relic/pkg/objects"
	"github.com/spf13/cobra"
)

func newShowIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show-index <pack.idx>",
		Short: "List the entries of a pack index file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := objects.OpenPackIndex(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "version %d, %d objects, pack checksum %s\n",
				idx.Version(), idx.ObjectCount(), idx.PackChecksum())

			it := idx.Iterator()
			for it.Next() {
				e := it.Entry()
				if idx.Version() >= 2 {
					fmt.Fprintf(out, "%d %s (%08x)\n", e.Offset, e.ID.String(), e.CRC)
				} else {
					fmt.Fprintf(out, "%d %s\n", e.Offset, e.ID.String())
				}
			}
			return nil
		},
	}
}
