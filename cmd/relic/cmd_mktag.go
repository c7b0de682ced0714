package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/relic-scm/relic/pkg/config"
	"github.com/relic-scm/relic/pkg/objects"
	"github.com/spf13/cobra"
)

func newMkTagCmd() *cobra.Command {
	var (
		targetArg string
		tagName   string
		message   string
		tagger    string
		sign      bool
		keyPath   string
	)

	cmd := &cobra.Command{
		Use:   "mktag --object <id> --tag <name> -m <message>",
		Short: "Create an annotated tag object, optionally SSH-signed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if targetArg == "" || tagName == "" {
				return fmt.Errorf("--object and --tag are required")
			}

			db, repoDir, err := openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			target, err := resolveObjectID(db, targetArg)
			if err != nil {
				return err
			}
			targetType, _, err := db.ReadObject(target)
			if err != nil {
				return err
			}

			name, email := splitIdentity(tagger)
			now := time.Now()
			tag := &objects.Tag{
				Object: target,
				Type:   targetType,
				Name:   tagName,
				Tagger: objects.Signature{
					Name:  name,
					Email: email,
					When:  now.Unix(),
					Zone:  now.Format("-0700"),
				},
				Message: ensureTrailingNewline(message),
			}

			if sign {
				cfg, err := config.Load(filepath.Join(repoDir, "config.toml"))
				if err != nil {
					return err
				}
				signer, keyUsed, err := newSSHTagSigner(keyPath, cfg.User.SigningKey)
				if err != nil {
					return err
				}
				payload, err := objects.MarshalTag(tag)
				if err != nil {
					return err
				}
				sig, err := signer(payload)
				if err != nil {
					return fmt.Errorf("sign tag: %w", err)
				}
				tag.Message += sig + "\n"
				fmt.Fprintf(cmd.ErrOrStderr(), "signed with %s\n", keyUsed)
			}

			id, err := db.WriteTag(tag)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	cmd.Flags().StringVar(&targetArg, "object", "", "id of the object being tagged")
	cmd.Flags().StringVar(&tagName, "tag", "", "tag name")
	cmd.Flags().StringVarP(&message, "message", "m", "", "tag message")
	cmd.Flags().StringVar(&tagger, "tagger", "relic <relic@localhost>", "tagger identity as \"Name <email>\"")
	cmd.Flags().BoolVarP(&sign, "sign", "s", false, "append an SSH signature to the tag message")
	cmd.Flags().StringVar(&keyPath, "key", "", "SSH private key (overrides user.signing-key; defaults to ~/.ssh/id_*)")
	return cmd
}

func splitIdentity(s string) (string, string) {
	lt := strings.IndexByte(s, '<')
	gt := strings.IndexByte(s, '>')
	if lt < 0 || gt < lt {
		return strings.TrimSpace(s), ""
	}
	return strings.TrimSpace(s[:lt]), s[lt+1 : gt]
}

func ensureTrailingNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
