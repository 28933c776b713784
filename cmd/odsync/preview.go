package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mvail/odsync/internal/config"
	"github.com/mvail/odsync/internal/driveid"
	"github.com/mvail/odsync/internal/graph"
	"github.com/mvail/odsync/internal/syncengine"
)

// previewSync reports what a real sync pass would change without writing
// to the index, the filesystem, or OneDrive: it reads the remote delta feed
// and walks the local tree, but never persists the cursor, never upserts an
// index row, and never calls a mutating RemoteAPI method.
func previewSync(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ts, err := graph.TokenSourceFromPath(ctx, cfg.Auth.TokenPath, logger)
	if err != nil {
		return fmt.Errorf("sync: loading token: %w (run `odsync auth` first)", err)
	}

	client := newGraphClient(ts, logger)
	remote := syncengine.NewGraphRemote(client, driveid.New(cfg.Auth.DriveID))

	index, err := syncengine.NewSQLiteIndex(ctx, cfg.Sync.DBPath, logger)
	if err != nil {
		return fmt.Errorf("sync: opening index: %w", err)
	}
	defer func() {
		if closeErr := index.Close(); closeErr != nil {
			logger.Warn("closing index", slog.String("error", closeErr.Error()))
		}
	}()

	remoteChanges, err := countRemoteChanges(ctx, index, remote)
	if err != nil {
		return err
	}

	created, changedOrDeleted, err := countLocalChanges(ctx, cfg.Sync.SyncRoot, index)
	if err != nil {
		return err
	}

	fmt.Printf("Dry run — no changes made.\n")
	fmt.Printf("  Remote changes pending:     %d\n", remoteChanges)
	fmt.Printf("  New local paths to upload:  %d\n", created)
	fmt.Printf("  Indexed paths touched:      %d\n", changedOrDeleted)

	return nil
}

// countRemoteChanges pages through the delta feed from the persisted
// cursor, counting items without advancing the cursor.
func countRemoteChanges(ctx context.Context, index *syncengine.SQLiteIndex, remote syncengine.RemoteAPI) (int, error) {
	cursor, err := index.GetCursor(ctx)
	if err != nil {
		return 0, err
	}

	var count int

	for {
		page, err := remote.ViewChanges(ctx, cursor)
		if err != nil {
			return 0, fmt.Errorf("sync: view_changes: %w", err)
		}

		count += len(page.Items)
		cursor = page.NextCursor

		if !page.HasMore {
			break
		}
	}

	return count, nil
}

// countLocalChanges walks the sync root, reporting paths with no indexed
// row (would be created remotely) separately from indexed rows whose local
// file is missing or whose mtime has moved (would be deleted or uploaded).
func countLocalChanges(ctx context.Context, root string, index *syncengine.SQLiteIndex) (created, touched int, err error) {
	rows, err := index.List(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, row := range rows {
		abs := filepath.Join(root, row.Path)

		info, statErr := os.Lstat(abs)
		if os.IsNotExist(statErr) {
			touched++
			continue
		}

		if statErr != nil {
			return 0, 0, fmt.Errorf("sync: stat %s: %w", abs, statErr)
		}

		if row.IsFile() && !info.IsDir() && !info.ModTime().Truncate(time.Second).Equal(row.Mtime) {
			touched++
		}
	}

	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if path == root {
			return nil
		}

		relPath, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}

		_, ok, getErr := index.GetByPath(ctx, relPath)
		if getErr != nil {
			return getErr
		}

		if !ok {
			created++
		}

		return nil
	})
	if walkErr != nil {
		return 0, 0, fmt.Errorf("sync: walking %s: %w", root, walkErr)
	}

	return created, touched, nil
}
