// Package config loads and stores repository-local settings.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Core holds the settings the object store consumes.
type Core struct {
	// Compression is the zlib level for loose object writes: 0-9, or
	// -1 for the library default.
	Compression int `toml:"compression"`

	// LegacyHeaders switches loose writes to the legacy layout where
	// the canonical header is part of the deflate stream.
	LegacyHeaders bool `toml:"legacy-headers"`
}

// User holds identity-adjacent settings consumed by the CLI.
type User struct {
	// SigningKey is the SSH private key used to sign tag objects.
	// Empty means fall back to the conventional ~/.ssh key files.
	SigningKey string `toml:"signing-key"`
}

// Config is the full repository configuration file.
type Config struct {
	Core Core `toml:"core"`
	User User `toml:"user"`
}

// Default returns the configuration used when no file exists:
// compression favors speed, and writes use the packed-style layout.
func Default() *Config {
	return &Config{Core: Core{Compression: 1}}
}

// Load reads a TOML config file. A missing file yields Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if cfg.Core.Compression < -1 || cfg.Core.Compression > 9 {
		return nil, fmt.Errorf("read config %s: compression level %d out of range", path, cfg.Core.Compression)
	}
	return cfg, nil
}

// Save atomically writes the config next to its final path.
func Save(path string, cfg *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("write config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: rename: %w", err)
	}
	return nil
}
