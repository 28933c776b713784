package syncengine

import (
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"
)

// UploadReconciler walks the local tree and the index to discover
// local-origin changes and applies them remotely and to the index (spec
// §4.4, Component E).
type UploadReconciler struct {
	root   string
	remote RemoteAPI
	index  Index
	logger *slog.Logger
}

// NewUploadReconciler constructs an UploadReconciler rooted at root.
func NewUploadReconciler(root string, remote RemoteAPI, index Index, logger *slog.Logger) *UploadReconciler {
	if logger == nil {
		logger = slog.Default()
	}

	return &UploadReconciler{root: root, remote: remote, index: index, logger: logger}
}

// FullPass runs upload_diff over every indexed row, then walks the local
// tree depth-first from the sync root (not breadth-first), creating or
// uploading every entry whose path is unknown to the index.
func (u *UploadReconciler) FullPass(ctx context.Context) error {
	rows, err := u.index.List(ctx)
	if err != nil {
		return err
	}

	for _, row := range rows {
		if err := u.uploadDiff(ctx, row); err != nil {
			return err
		}
	}

	return u.walkNew(ctx, "")
}

// SubtreePass walks only relPath, reconciling indexed entries via
// upload_diff and uploading unindexed files via upload_new_file. It
// deliberately does not create unindexed directories: those are handled by
// the watcher's onDirCreated entry point, not a standalone subtree pass.
func (u *UploadReconciler) SubtreePass(ctx context.Context, relPath string) error {
	return u.walkSubtree(ctx, relPath)
}

// UploadPath reconciles a single local path: if indexed, upload_diff; if
// not, upload_new_file for a file or OnDirCreated for a directory. This is
// the entry point the filesystem watcher calls for a targeted change.
func (u *UploadReconciler) UploadPath(ctx context.Context, relPath string) error {
	row, ok, err := u.index.GetByPath(ctx, relPath)
	if err != nil {
		return err
	}

	if ok {
		return u.uploadDiff(ctx, row)
	}

	abs := filepath.Join(u.root, relPath)

	info, err := os.Lstat(abs)
	if os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return newSyncError(KindFilesystem, "stat "+abs, err)
	}

	if info.IsDir() {
		return u.OnDirCreated(ctx, relPath)
	}

	return u.uploadNewFile(ctx, relPath)
}

// OnDirCreated uploads a newly created local directory and recurses into
// its contents.
func (u *UploadReconciler) OnDirCreated(ctx context.Context, relPath string) error {
	if _, err := u.uploadCreateDir(ctx, relPath); err != nil {
		return err
	}

	return u.walkSubtree(ctx, relPath)
}

// OnRemoved reconciles a local removal: upload_diff already covers the
// "path does not exist locally" branch, so this simply delegates to the
// indexed row if one exists.
func (u *UploadReconciler) OnRemoved(ctx context.Context, relPath string) error {
	row, ok, err := u.index.GetByPath(ctx, relPath)
	if err != nil {
		return err
	}

	if !ok {
		return nil
	}

	return u.uploadDiff(ctx, row)
}

// uploadDiff reconciles one indexed row against its local file or folder.
func (u *UploadReconciler) uploadDiff(ctx context.Context, row Item) error {
	abs := filepath.Join(u.root, row.Path)

	info, statErr := os.Lstat(abs)
	if os.IsNotExist(statErr) {
		return u.uploadDelete(ctx, row)
	}

	if statErr != nil {
		return newSyncError(KindFilesystem, "stat "+abs, statErr)
	}

	if row.IsFile() {
		if info.IsDir() {
			if err := u.uploadDelete(ctx, row); err != nil {
				return err
			}

			_, err := u.uploadCreateDir(ctx, row.Path)

			return err
		}

		return u.uploadItemDiff(ctx, row)
	}

	// Folder row.
	if !info.IsDir() {
		if err := u.uploadDelete(ctx, row); err != nil {
			return err
		}

		return u.uploadNewFile(ctx, row.Path)
	}

	return nil
}

// uploadItemDiff pushes a changed local file's content to the remote.
func (u *UploadReconciler) uploadItemDiff(ctx context.Context, row Item) error {
	abs := filepath.Join(u.root, row.Path)

	info, err := os.Lstat(abs)
	if err != nil {
		return newSyncError(KindFilesystem, "stat "+abs, err)
	}

	if truncateToSecond(info.ModTime()).Equal(row.Mtime) {
		return nil
	}

	etag := row.ETag

	contentChanged := true

	if row.CRC32 != "" {
		sum, err := fileCRC32(abs)
		if err != nil {
			return err
		}

		contentChanged = sum != row.CRC32
	}

	if contentChanged {
		updated, err := u.upload(ctx, abs, row.Path, etag)
		if err != nil {
			return err
		}

		row = updated
		etag = updated.ETag
	}

	return u.pushMtime(ctx, row, abs, etag)
}

// uploadNewFile uploads a local file with no indexed row yet.
func (u *UploadReconciler) uploadNewFile(ctx context.Context, relPath string) error {
	abs := filepath.Join(u.root, relPath)

	row, err := u.upload(ctx, abs, relPath, "")
	if err != nil {
		return err
	}

	return u.pushMtime(ctx, row, abs, row.ETag)
}

// upload performs a simple upload and saves the resulting row.
func (u *UploadReconciler) upload(ctx context.Context, abs, relPath, ifMatch string) (Item, error) {
	remoteItem, err := u.remote.SimpleUpload(ctx, abs, relPath, ifMatch)
	if err != nil {
		return Item{}, wrapRemoteErr("SimpleUpload "+relPath, err)
	}

	return u.saveItem(ctx, remoteItem)
}

// pushMtime pushes the local mtime to the remote, guarded by etag, and
// saves the resulting row.
func (u *UploadReconciler) pushMtime(ctx context.Context, row Item, abs, etag string) error {
	info, err := os.Lstat(abs)
	if err != nil {
		return newSyncError(KindFilesystem, "stat "+abs, err)
	}

	mtime := truncateToSecond(info.ModTime())

	remoteItem, err := u.remote.UpdateByID(ctx, row.ID, Patch{LastModified: &mtime}, etag)
	if err != nil {
		return wrapRemoteErr("UpdateByID "+row.ID, err)
	}

	_, err = u.saveItem(ctx, remoteItem)

	return err
}

// uploadCreateDir creates a remote folder for a local directory with no
// indexed row yet.
func (u *UploadReconciler) uploadCreateDir(ctx context.Context, relPath string) (Item, error) {
	parent := path.Dir(path.Clean("/" + relPath))
	if parent == "/" || parent == "." {
		parent = ""
	} else {
		parent = parent[1:]
	}

	name := path.Base(relPath)

	remoteItem, err := u.remote.CreateByPath(ctx, parent, name)
	if err != nil {
		return Item{}, wrapRemoteErr("CreateByPath "+relPath, err)
	}

	return u.saveItem(ctx, remoteItem)
}

// uploadDelete removes a remote item whose local file is gone.
func (u *UploadReconciler) uploadDelete(ctx context.Context, row Item) error {
	if err := u.remote.DeleteByID(ctx, row.ID, row.ETag); err != nil {
		return wrapRemoteErr("DeleteByID "+row.ID, err)
	}

	return u.index.Delete(ctx, row.ID)
}

// Move renames/reparents the
// indexed row for from to to. The new parent is passed in the Patch as a
// path ("" for the sync root) rather than as raw parentReference.path JSON;
// GraphRemote resolves that path to an item ID with a remote lookup before
// the move.
func (u *UploadReconciler) Move(ctx context.Context, from, to string) error {
	row, ok, err := u.index.GetByPath(ctx, from)
	if err != nil {
		return err
	}

	if !ok {
		return newSyncError(KindLogicalViolation, "Move", errNotIndexed(from))
	}

	newParent := path.Dir(path.Clean("/" + to))
	if newParent == "/" {
		newParent = ""
	} else {
		newParent = newParent[1:]
	}

	patch := Patch{
		NewName:       path.Base(to),
		NewParentPath: &newParent,
	}

	remoteItem, err := u.remote.UpdateByID(ctx, row.ID, patch, row.ETag)
	if err != nil {
		return wrapRemoteErr("UpdateByID "+row.ID, err)
	}

	_, err = u.saveItem(ctx, remoteItem)

	return err
}

// DeleteByPath removes the remote item indexed at relPath, if any.
func (u *UploadReconciler) DeleteByPath(ctx context.Context, relPath string) error {
	row, ok, err := u.index.GetByPath(ctx, relPath)
	if err != nil {
		return err
	}

	if !ok {
		return newSyncError(KindLogicalViolation, "DeleteByPath", errNotIndexed(relPath))
	}

	return u.uploadDelete(ctx, row)
}

// saveItem converts and stores a remote mutation response, the way every
// upload entry point's response is routed through the same classifier and
// upsert.
func (u *UploadReconciler) saveItem(ctx context.Context, remoteItem RemoteItem) (Item, error) {
	class := ClassifyRemoteItem(remoteItem)

	itemType := ItemTypeFile
	if class == ClassFolder {
		itemType = ItemTypeFolder
	}

	row := Item{
		ID:       remoteItem.ID,
		Name:     remoteItem.Name,
		Type:     itemType,
		ETag:     remoteItem.ETag,
		CTag:     remoteItem.CTag,
		Mtime:    truncateToSecond(remoteItem.Mtime),
		ParentID: remoteItem.ParentID,
		CRC32:    remoteItem.CRC32,
	}

	if err := u.index.Upsert(ctx, row); err != nil {
		return Item{}, err
	}

	n, ok, err := u.index.Get(ctx, remoteItem.ID)
	if err != nil {
		return Item{}, err
	}

	if !ok {
		return Item{}, newSyncError(KindLogicalViolation, "saveItem", errNotIndexed(remoteItem.ID))
	}

	return n, nil
}

// walkNew walks relPath depth-first, creating remote objects for every
// local entry whose path is unknown to the index, and recursing into each
// directory, newly created or already known, as soon as it is reached,
// before the remaining entries of its parent.
func (u *UploadReconciler) walkNew(ctx context.Context, relPath string) error {
	abs := filepath.Join(u.root, relPath)

	entries, err := os.ReadDir(abs)
	if err != nil {
		return newSyncError(KindFilesystem, "readdir "+abs, err)
	}

	for _, entry := range entries {
		childRel := path.Join(relPath, entry.Name())

		_, ok, err := u.index.GetByPath(ctx, childRel)
		if err != nil {
			return err
		}

		if entry.IsDir() {
			if !ok {
				if _, err := u.uploadCreateDir(ctx, childRel); err != nil {
					return err
				}
			}

			if err := u.walkNew(ctx, childRel); err != nil {
				return err
			}

			continue
		}

		if !ok {
			if err := u.uploadNewFile(ctx, childRel); err != nil {
				return err
			}
		}
	}

	return nil
}

// walkSubtree walks relPath, reconciling indexed entries and uploading
// unindexed files, without creating unindexed directories.
func (u *UploadReconciler) walkSubtree(ctx context.Context, relPath string) error {
	abs := filepath.Join(u.root, relPath)

	entries, err := os.ReadDir(abs)
	if err != nil {
		return newSyncError(KindFilesystem, "readdir "+abs, err)
	}

	for _, entry := range entries {
		childRel := path.Join(relPath, entry.Name())

		row, ok, err := u.index.GetByPath(ctx, childRel)
		if err != nil {
			return err
		}

		if ok {
			if err := u.uploadDiff(ctx, row); err != nil {
				return err
			}

			if entry.IsDir() {
				if err := u.walkSubtree(ctx, childRel); err != nil {
					return err
				}
			}

			continue
		}

		if entry.IsDir() {
			// Directories are handled by the watcher's onDirCreated, not a
			// standalone subtree pass.
			continue
		}

		if err := u.uploadNewFile(ctx, childRel); err != nil {
			return err
		}
	}

	return nil
}
