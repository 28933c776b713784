package config

import "path/filepath"

// Default values for configuration options, used both as the starting
// point for TOML decoding (so unset fields retain defaults) and as the
// fallback when no config file exists yet.
const (
	defaultPollInterval = "5m"
	defaultLogLevel     = "info"
	defaultLogFormat    = "auto"
	defaultClientID     = "8efac532-bbe7-4bc5-919c-1443ccab860a"
	defaultDBFileName   = "odsync.db"
	defaultTokenName    = "token.json"
)

// DefaultConfig returns a Config populated with all default values. Paths
// that depend on the platform data directory are filled in by Load when
// the corresponding field is left empty in the TOML file.
func DefaultConfig() *Config {
	return &Config{
		Sync: SyncConfig{
			PollInterval: defaultPollInterval,
		},
		Auth: AuthConfig{
			ClientID: defaultClientID,
		},
		Logging: LoggingConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}

// applyDataDirDefaults fills in DBPath and TokenPath when left unset in the
// config file, using the platform data directory resolved by paths.go.
func applyDataDirDefaults(cfg *Config) {
	if cfg.Sync.DBPath == "" {
		cfg.Sync.DBPath = filepath.Join(DefaultDataDir(), defaultDBFileName)
	}

	if cfg.Auth.TokenPath == "" {
		cfg.Auth.TokenPath = filepath.Join(DefaultDataDir(), defaultTokenName)
	}
}
