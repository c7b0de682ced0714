package main

import (
	"fmt"

	"github.com/relic-scm/relic/pkg/objects"
	"github.com/spf13/cobra"
)

func newCatFileCmd() *cobra.Command {
	var (
		showType bool
		showSize bool
		pretty   bool
	)

	cmd := &cobra.Command{
		Use:   "cat-file (-t | -s | -p) <object>",
		Short: "Show the type, size, or content of a stored object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modes := 0
			for _, on := range []bool{showType, showSize, pretty} {
				if on {
					modes++
				}
			}
			if modes != 1 {
				return fmt.Errorf("exactly one of -t, -s, -p is required")
			}

			db, _, err := openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			id, err := resolveObjectID(db, args[0])
			if err != nil {
				return err
			}
			t, data, err := db.ReadObject(id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case showType:
				fmt.Fprintln(out, t.Name())
			case showSize:
				fmt.Fprintln(out, len(data))
			case pretty:
				return prettyPrint(cmd, t, data)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&showType, "type", "t", false, "print the object type")
	cmd.Flags().BoolVarP(&showSize, "size", "s", false, "print the payload size")
	cmd.Flags().BoolVarP(&pretty, "pretty", "p", false, "pretty-print the payload")
	return cmd
}

func prettyPrint(cmd *cobra.Command, t objects.Type, data []byte) error {
	out := cmd.OutOrStdout()
	switch t {
	case objects.TypeTree:
		entries, err := objects.ParseTree(data)
		if err != nil {
			return err
		}
		for _, e := range entries {
			kind := "blob"
			if e.Mode.IsTree() {
				kind = "tree"
			}
			fmt.Fprintf(out, "%06o %s %s\t%s\n", uint32(e.Mode), kind, e.ID, e.Name)
		}
		return nil
	default:
		_, err := out.Write(data)
		return err
	}
}
