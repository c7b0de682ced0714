package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/relic-scm/relic/pkg/config"
	"github.com/relic-scm/relic/pkg/objects"
)

const repoDirName = ".relic"

// findRepoDir walks upward from start looking for the repository
// directory.
func findRepoDir(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	for {
		candidate := filepath.Join(dir, repoDirName)
		if st, err := os.Stat(candidate); err == nil && st.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not inside a relic repository (no %s directory found)", repoDirName)
		}
		dir = parent
	}
}

// openDatabase locates the enclosing repository and opens its object
// database with the configured options.
func openDatabase() (*objects.Database, string, error) {
	repoDir, err := findRepoDir(".")
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(filepath.Join(repoDir, "config.toml"))
	if err != nil {
		return nil, "", err
	}
	db, err := objects.Open(filepath.Join(repoDir, "objects"), objects.Options{
		Compression:   cfg.Core.Compression,
		LegacyHeaders: cfg.Core.LegacyHeaders,
	})
	if err != nil {
		return nil, "", err
	}
	return db, repoDir, nil
}

// resolveObjectID accepts a full id or a unique prefix.
func resolveObjectID(db *objects.Database, arg string) (objects.ObjectID, error) {
	if len(arg) == objects.HexLength {
		return objects.ParseObjectID(arg)
	}
	matches, err := db.ResolvePrefix(arg, 2)
	if err != nil {
		return objects.ZeroID, err
	}
	switch len(matches) {
	case 0:
		return objects.ZeroID, fmt.Errorf("no object matches %q", arg)
	case 1:
		return matches[0], nil
	default:
		return objects.ZeroID, fmt.Errorf("prefix %q is ambiguous", arg)
	}
}
