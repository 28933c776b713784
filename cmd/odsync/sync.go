package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mvail/odsync/internal/config"
	"github.com/mvail/odsync/internal/driveid"
	"github.com/mvail/odsync/internal/graph"
	"github.com/mvail/odsync/internal/syncengine"
)

func newSyncCmd() *cobra.Command {
	var flagMonitor, flagResync, flagDryRun bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the local directory with OneDrive",
		Long: `Run one reconciliation pass between the local sync root and OneDrive: download
remote changes, then upload local changes.

Use --monitor to run continuously, reconciling on a timer and reacting to
local filesystem events until interrupted. Use --resync to discard the
persisted delta cursor and re-enumerate the whole drive. Use --dry-run to
preview pending changes without touching the index, the filesystem, or
OneDrive.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, flagMonitor, flagResync, flagDryRun)
		},
	}

	cmd.Flags().BoolVar(&flagMonitor, "monitor", false, "run continuously instead of a single pass")
	cmd.Flags().BoolVar(&flagResync, "resync", false, "discard the persisted cursor and re-enumerate the whole drive")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "preview pending changes without making any changes")

	cmd.MarkFlagsMutuallyExclusive("resync", "dry-run")

	return cmd
}

func runSync(cmd *cobra.Command, monitor, resync, dryRun bool) error {
	cc := mustCLIContext(cmd.Context())
	cfg := cc.Cfg
	logger := cc.Logger

	if !cmd.Flags().Changed("monitor") {
		monitor = cfg.Sync.Monitor
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("sync: %w (run `odsync auth --sync-root <path>` first)", err)
	}

	if cfg.Auth.DriveID == "" {
		return fmt.Errorf("sync: no drive on record, run `odsync auth` first")
	}

	ctx := shutdownContext(cmd.Context(), logger)

	if dryRun {
		return previewSync(ctx, cfg, logger)
	}

	ts, err := graph.TokenSourceFromPath(ctx, cfg.Auth.TokenPath, logger)
	if err != nil {
		return fmt.Errorf("sync: loading token: %w (run `odsync auth` first)", err)
	}

	client := newTransferGraphClient(ts, logger)
	remote := syncengine.NewGraphRemote(client, driveid.New(cfg.Auth.DriveID))

	index, err := syncengine.NewSQLiteIndex(ctx, cfg.Sync.DBPath, logger)
	if err != nil {
		return fmt.Errorf("sync: opening index: %w", err)
	}

	engine := syncengine.NewEngine(syncengine.EngineConfig{
		Root:   cfg.Sync.SyncRoot,
		Remote: remote,
		Index:  index,
		Logger: logger,
	})
	defer func() {
		if closeErr := engine.Close(); closeErr != nil {
			logger.Warn("closing sync engine", slog.String("error", closeErr.Error()))
		}
	}()

	if resync {
		if err := engine.SetCursor(ctx, ""); err != nil {
			return fmt.Errorf("sync: resetting cursor: %w", err)
		}
	}

	if !monitor {
		return runOnePass(ctx, engine, logger)
	}

	return runMonitor(ctx, cfg, engine, logger)
}

// runOnePass drives one download-then-upload cycle, tagging its log lines
// with a cycle ID so a --monitor run's passes can be told apart.
func runOnePass(ctx context.Context, engine *syncengine.Engine, logger *slog.Logger) error {
	cycleLogger := logger.With(slog.String("cycle_id", uuid.New().String()))
	engine.SetLogger(cycleLogger)

	if _, err := engine.ApplyDifferences(ctx); err != nil {
		return fmt.Errorf("sync: download pass: %w", err)
	}

	if _, err := engine.UploadDifferences(ctx, ""); err != nil {
		return fmt.Errorf("sync: upload pass: %w", err)
	}

	cycleLogger.Info("sync pass complete")

	return nil
}

// runMonitor starts the filesystem watcher and then alternates between
// reacting to its events and running a full reconciliation pass on a timer,
// until ctx is canceled by shutdownContext.
func runMonitor(ctx context.Context, cfg *config.Config, engine *syncengine.Engine, logger *slog.Logger) error {
	interval, err := time.ParseDuration(cfg.Sync.PollInterval)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	watcher := syncengine.NewWatcher(cfg.Sync.SyncRoot, engine, logger)
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("sync: starting watcher: %w", err)
	}
	defer watcher.Close()

	go func() {
		if runErr := watcher.Run(ctx); runErr != nil {
			logger.Warn("watcher stopped", slog.String("error", runErr.Error()))
		}
	}()

	if err := runOnePass(ctx, engine, logger); err != nil {
		logger.Error("sync pass failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("monitor stopped")
			return nil
		case <-ticker.C:
			if err := runOnePass(ctx, engine, logger); err != nil {
				logger.Error("sync pass failed", slog.String("error", err.Error()))
			}
		}
	}
}
