package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// filePerms restricts config files to owner-only read/write — the file can
// contain a client ID and, once auth.go is extended, other identifying data.
const filePerms = 0o600

// dirPerms is used when creating the parent directory of a config file.
const dirPerms = 0o700

// Save validates cfg and writes it to path as TOML, creating parent
// directories as needed. Used by `odsync auth` to persist the sync root
// chosen on first login.
func Save(path string, cfg *Config) error {
	if err := Validate(cfg); err != nil {
		return fmt.Errorf("config: refusing to save invalid config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPerms); err != nil {
		return fmt.Errorf("config: creating config directory: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("config: encoding TOML: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), filePerms); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}

	return nil
}
