package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig   = "ODSYNC_CONFIG"
	EnvSyncRoot = "ODSYNC_SYNC_ROOT"
)

// EnvOverrides holds values derived from environment variables.
// These are resolved by ReadEnvOverrides and applied by callers.
type EnvOverrides struct {
	ConfigPath string // ODSYNC_CONFIG: override config file path
	SyncRoot   string // ODSYNC_SYNC_ROOT: sync root override
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify a Config; callers apply the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		SyncRoot:   os.Getenv(EnvSyncRoot),
	}
}

// Apply overrides non-empty fields of o onto cfg. Called after Load so
// environment variables win over the config file for the fields they cover.
func (o EnvOverrides) Apply(cfg *Config) {
	if o.SyncRoot != "" {
		cfg.Sync.SyncRoot = o.SyncRoot
	}
}
