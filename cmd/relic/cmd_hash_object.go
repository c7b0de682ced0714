package main

import (
	"fmt"
	"io"
	"os"

	"github.com/relic-scm/relic/pkg/objects"
	"github.com/spf13/cobra"
)

func newHashObjectCmd() *cobra.Command {
	var (
		typeName string
		write    bool
		useStdin bool
	)

	cmd := &cobra.Command{
		Use:   "hash-object [flags] [path...]",
		Short: "Compute object ids, optionally storing the objects",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := objects.TypeFromName(typeName)
			if err != nil {
				return err
			}
			db, _, err := openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			out := cmd.OutOrStdout()
			if useStdin {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				id, err := hashOrStore(db, t, data, write)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, id)
			}

			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				id, err := hashOrStore(db, t, data, write)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				fmt.Fprintln(out, id)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&typeName, "type", "t", "blob", "object type to hash as")
	cmd.Flags().BoolVarP(&write, "write", "w", false, "store the object, not just hash it")
	cmd.Flags().BoolVar(&useStdin, "stdin", false, "read the payload from standard input")
	return cmd
}

// hashOrStore computes the id, writing through the store only when
// asked. The dry-run path still goes through the canonical header so
// both paths agree byte for byte.
func hashOrStore(db *objects.Database, t objects.Type, data []byte, write bool) (objects.ObjectID, error) {
	if write {
		return db.WriteBytes(t, data)
	}
	return objects.HashObject(t, data), nil
}
