// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for odsync.
package config

// Config is the top-level configuration structure for a single sync root
// against a single OneDrive personal drive. odsync has no multi-drive or
// multi-profile concept — one config file describes one sync relationship.
type Config struct {
	Sync    SyncConfig    `toml:"sync"`
	Auth    AuthConfig    `toml:"auth"`
	Logging LoggingConfig `toml:"logging"`
}

// SyncConfig controls where the engine reads and writes local/persisted state.
type SyncConfig struct {
	SyncRoot     string `toml:"sync_root"`     // absolute path to the local directory tree
	DBPath       string `toml:"db_path"`       // path to the SQLite index + cursor database
	PollInterval string `toml:"poll_interval"` // duration string, used by --monitor
	Monitor      bool   `toml:"monitor"`       // default for --monitor when the flag is not given
}

// AuthConfig controls OAuth2 device-code login and token storage.
type AuthConfig struct {
	TokenPath string `toml:"token_path"`
	ClientID  string `toml:"client_id"`
	// DriveID is the Graph API drive identifier discovered by `odsync auth`
	// and cached here so `odsync sync` never needs to call /me/drives.
	DriveID string `toml:"drive_id"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`  // slog level name: debug, info, warn, error
	Format string `toml:"format"` // "text", "json", or "auto"
}
