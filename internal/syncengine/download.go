package syncengine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// DownloadReconciler applies remote delta items to local state and the
// index.
type DownloadReconciler struct {
	root    string
	remote  RemoteAPI
	index   Index
	skipped *skippedSet
	queue   *DeletionQueue
	logger  *slog.Logger
}

// NewDownloadReconciler constructs a DownloadReconciler rooted at root,
// sharing skipped and queue with the rest of the pass.
func NewDownloadReconciler(root string, remote RemoteAPI, index Index, skipped *skippedSet, queue *DeletionQueue, logger *slog.Logger) *DownloadReconciler {
	if logger == nil {
		logger = slog.Default()
	}

	return &DownloadReconciler{root: root, remote: remote, index: index, skipped: skipped, queue: queue, logger: logger}
}

// ApplyItem applies one remote delta item, following the eight-step
// procedure: locate the existing row, then classify, then apply.
func (d *DownloadReconciler) ApplyItem(ctx context.Context, raw RemoteItem) error {
	if raw.ID == "" {
		d.logger.Debug("skipping remote item with no id")
		return nil
	}

	existing, hadRow, err := d.index.Get(ctx, raw.ID)
	if err != nil {
		return err
	}

	if hadRow {
		synced, err := IsSynced(d.root, existing)
		if err != nil {
			return err
		}

		if !synced {
			if _, err := SafeRename(d.root, existing.Path); err != nil {
				return err
			}

			hadRow = false
		}
	}

	class := ClassifyRemoteItem(raw)

	switch class {
	case ClassDeleted:
		if hadRow {
			d.queue.Enqueue(existing.Path, existing.Type)

			if err := d.index.Delete(ctx, raw.ID); err != nil {
				return err
			}
		}

		return nil
	case ClassUnsupported:
		d.skipped.add(raw.ID)
		return nil
	}

	if raw.ParentID != "" && d.skipped.has(raw.ParentID) {
		d.skipped.add(raw.ID)
		return nil
	}

	itemType := ItemTypeFile
	if class == ClassFolder {
		itemType = ItemTypeFolder
	}

	newRow := Item{
		ID:       raw.ID,
		Name:     raw.Name,
		Type:     itemType,
		ETag:     raw.ETag,
		CTag:     raw.CTag,
		Mtime:    truncateToSecond(raw.Mtime),
		ParentID: raw.ParentID,
		CRC32:    raw.CRC32,
	}

	if err := d.index.Upsert(ctx, newRow); err != nil {
		return err
	}

	n, ok, err := d.index.Get(ctx, raw.ID)
	if err != nil {
		return err
	}

	if !ok {
		return newSyncError(KindLogicalViolation, "ApplyItem", fmt.Errorf("row for %s vanished after upsert", raw.ID))
	}

	var applyErr error
	if hadRow {
		applyErr = d.applyChanged(ctx, existing, n)
	} else {
		applyErr = d.applyNew(ctx, n)
	}

	if applyErr != nil {
		_ = d.index.Delete(ctx, raw.ID)
		return applyErr
	}

	return nil
}

// applyNew creates a local entry and index row for a remote item not yet
// known to the index.
func (d *DownloadReconciler) applyNew(ctx context.Context, n Item) error {
	abs := filepath.Join(d.root, n.Path)

	if _, statErr := os.Lstat(abs); statErr == nil {
		synced, err := IsSynced(d.root, n)
		if err != nil {
			return err
		}

		if synced {
			return d.forceMtime(abs, n.Mtime)
		}

		if _, err := SafeRename(d.root, n.Path); err != nil {
			return err
		}
	}

	if n.IsFolder() {
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return newSyncError(KindFilesystem, "mkdir "+abs, err)
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return newSyncError(KindFilesystem, "mkdir "+filepath.Dir(abs), err)
		}

		if err := d.remote.DownloadByID(ctx, n.ID, abs); err != nil {
			return wrapRemoteErr("DownloadByID "+n.ID, err)
		}
	}

	return d.forceMtime(abs, n.Mtime)
}

// applyChanged reconciles a remote item already known to the index against
// its new state. Assumes R.Type ==
// N.Type and the local R.Path exists (type flips surface as a new remote
// id, never as a change on the same id).
func (d *DownloadReconciler) applyChanged(ctx context.Context, r, n Item) error {
	if r.ETag == n.ETag {
		return nil
	}

	targetPath := r.Path
	if r.Path != n.Path {
		if _, statErr := os.Lstat(filepath.Join(d.root, n.Path)); statErr == nil {
			if _, err := SafeRename(d.root, n.Path); err != nil {
				return err
			}
		}

		oldAbs := filepath.Join(d.root, r.Path)
		newAbs := filepath.Join(d.root, n.Path)

		if err := os.MkdirAll(filepath.Dir(newAbs), 0o755); err != nil {
			return newSyncError(KindFilesystem, "mkdir "+filepath.Dir(newAbs), err)
		}

		if err := os.Rename(oldAbs, newAbs); err != nil {
			return newSyncError(KindFilesystem, "rename "+oldAbs, err)
		}

		targetPath = n.Path
	}

	targetAbs := filepath.Join(d.root, targetPath)

	if n.IsFile() && r.CTag != n.CTag {
		if err := d.remote.DownloadByID(ctx, n.ID, targetAbs); err != nil {
			return wrapRemoteErr("DownloadByID "+n.ID, err)
		}
	}

	return d.forceMtime(targetAbs, n.Mtime)
}

// forceMtime sets the local object's modification time to match the
// index's record, so subsequent IsSynced probes agree without rehashing.
func (d *DownloadReconciler) forceMtime(abs string, mtime time.Time) error {
	if err := os.Chtimes(abs, mtime, mtime); err != nil {
		return newSyncError(KindFilesystem, "chtimes "+abs, err)
	}

	return nil
}
