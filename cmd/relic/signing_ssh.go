package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

const tagSignaturePrefix = "sshsig-v1"

// tagSigner produces an armored signature line for a marshaled tag.
type tagSigner func(payload []byte) (string, error)

// newSSHTagSigner builds a signer from the first key source that is
// set: the --key flag, then the repository's user.signing-key setting,
// then the conventional ~/.ssh key files.
func newSSHTagSigner(flagPath, configuredPath string) (tagSigner, string, error) {
	keyPath, err := pickSigningKey(flagPath, configuredPath)
	if err != nil {
		return nil, "", err
	}

	raw, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, "", fmt.Errorf("read signing key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(raw)
	if err != nil {
		return nil, "", fmt.Errorf("parse signing key %s: %w", keyPath, err)
	}
	pubB64 := base64.StdEncoding.EncodeToString(signer.PublicKey().Marshal())

	sign := func(payload []byte) (string, error) {
		sig, err := signer.Sign(rand.Reader, payload)
		if err != nil {
			return "", fmt.Errorf("sign with %s: %w", keyPath, err)
		}
		parts := []string{
			tagSignaturePrefix,
			sig.Format,
			pubB64,
			base64.StdEncoding.EncodeToString(sig.Blob),
		}
		return strings.Join(parts, ":"), nil
	}
	return sign, keyPath, nil
}

// pickSigningKey resolves the key path by precedence. Explicit paths
// are taken as given (after ~ expansion); only the implicit fallback
// probes the filesystem.
func pickSigningKey(flagPath, configuredPath string) (string, error) {
	for _, explicit := range []string{flagPath, configuredPath} {
		if explicit = strings.TrimSpace(explicit); explicit != "" {
			return absSigningKeyPath(explicit)
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	for _, name := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
		candidate := filepath.Join(home, ".ssh", name)
		if st, err := os.Stat(candidate); err == nil && st.Mode().IsRegular() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no signing key: set user.signing-key in config.toml or pass --key")
}

func absSigningKeyPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand %q: %w", path, err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve signing key %q: %w", path, err)
	}
	return abs, nil
}
