package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadEnvOverrides_AllSet(t *testing.T) {
	t.Setenv(EnvConfig, "/custom/config.toml")
	t.Setenv(EnvSyncRoot, "/custom/sync")

	overrides := ReadEnvOverrides()
	assert.Equal(t, "/custom/config.toml", overrides.ConfigPath)
	assert.Equal(t, "/custom/sync", overrides.SyncRoot)
}

func TestReadEnvOverrides_NoneSet(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvSyncRoot, "")

	overrides := ReadEnvOverrides()
	assert.Empty(t, overrides.ConfigPath)
	assert.Empty(t, overrides.SyncRoot)
}

func TestEnvOverrides_Apply(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sync.SyncRoot = "/original"

	overrides := EnvOverrides{SyncRoot: "/override"}
	overrides.Apply(cfg)

	assert.Equal(t, "/override", cfg.Sync.SyncRoot)
}

func TestEnvOverrides_Apply_EmptyLeavesExisting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sync.SyncRoot = "/original"

	EnvOverrides{}.Apply(cfg)

	assert.Equal(t, "/original", cfg.Sync.SyncRoot)
}

func TestEnvVarConstants(t *testing.T) {
	assert.Equal(t, "ODSYNC_CONFIG", EnvConfig)
	assert.Equal(t, "ODSYNC_SYNC_ROOT", EnvSyncRoot)
}
