package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, fills in data-directory
// defaults for any path left empty, validates the result, and returns the
// Config. If path does not exist, Load returns DefaultConfig with data-dir
// defaults applied (first run, before `odsync auth` has ever written a
// config file).
func Load(path string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("no config file found, using defaults", "path", path)
			applyDataDirDefaults(cfg)

			return cfg, nil
		}

		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config: %s: unknown key %q", path, undecoded[0].String())
	}

	applyDataDirDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	logger.Debug("config file loaded", "path", path, "sync_root", cfg.Sync.SyncRoot)

	return cfg, nil
}
