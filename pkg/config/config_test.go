package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Core.Compression != 1 {
		t.Errorf("default compression: got %d, want 1", cfg.Core.Compression)
	}
	if cfg.Core.LegacyHeaders {
		t.Error("default legacy-headers: got true")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Core.Compression = 6
	cfg.Core.LegacyHeaders = true
	cfg.User.SigningKey = "~/.ssh/id_ed25519"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Core.Compression != 6 || !got.Core.LegacyHeaders {
		t.Errorf("round trip: %+v", got.Core)
	}
	if got.User.SigningKey != "~/.ssh/id_ed25519" {
		t.Errorf("signing key: %q", got.User.SigningKey)
	}
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[core]\nlegacy-headers = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Core.Compression != 1 {
		t.Errorf("omitted compression should default to 1, got %d", cfg.Core.Compression)
	}
	if !cfg.Core.LegacyHeaders {
		t.Error("legacy-headers not read")
	}
}

func TestLoadRejectsBadLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[core]\ncompression = 12\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted compression = 12")
	}
}
