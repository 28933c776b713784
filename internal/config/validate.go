package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// Sentinel validation errors.
var (
	ErrSyncRootRequired  = errors.New("config: sync.sync_root is required")
	ErrSyncRootRelative  = errors.New("config: sync.sync_root must be an absolute path")
	ErrInvalidPollPeriod = errors.New("config: sync.poll_interval is not a valid duration")
	ErrInvalidLogLevel   = errors.New("config: logging.level must be one of debug, info, warn, error")
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks a loaded Config for internal consistency. It is run by
// Load after defaults are applied, and by the CLI before every sync so a
// hand-edited config file fails fast with a clear message.
func Validate(cfg *Config) error {
	if cfg.Sync.SyncRoot == "" {
		return ErrSyncRootRequired
	}

	if !filepath.IsAbs(cfg.Sync.SyncRoot) {
		return fmt.Errorf("%w: %q", ErrSyncRootRelative, cfg.Sync.SyncRoot)
	}

	if _, err := time.ParseDuration(cfg.Sync.PollInterval); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidPollPeriod, cfg.Sync.PollInterval)
	}

	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, cfg.Logging.Level)
	}

	return nil
}
