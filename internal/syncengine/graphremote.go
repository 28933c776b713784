package syncengine

import (
	"context"
	"fmt"
	"os"

	"github.com/mvail/odsync/internal/driveid"
	"github.com/mvail/odsync/internal/graph"
)

// GraphRemote adapts *graph.Client to the RemoteAPI interface the engine
// consumes, adapted from the client almost unchanged.
type GraphRemote struct {
	client  *graph.Client
	driveID driveid.ID
	rootID  string
}

// NewGraphRemote wraps client for driveID.
func NewGraphRemote(client *graph.Client, driveID driveid.ID) *GraphRemote {
	return &GraphRemote{client: client, driveID: driveID}
}

// ensureRootID resolves and caches the drive's root item ID. The engine's
// index has no row for the root: top-level items carry ParentID "".
// fromGraphItem needs the real root ID to tell "this item's parent is the
// drive root" apart from "this item's parent is some other folder".
func (g *GraphRemote) ensureRootID(ctx context.Context) error {
	if g.rootID != "" {
		return nil
	}

	root, err := g.client.GetItem(ctx, g.driveID, "root")
	if err != nil {
		return fmt.Errorf("syncengine: resolving drive root: %w", err)
	}

	g.rootID = root.ID

	return nil
}

// ViewChanges implements RemoteAPI.
func (g *GraphRemote) ViewChanges(ctx context.Context, cursor string) (DeltaPage, error) {
	if err := g.ensureRootID(ctx); err != nil {
		return DeltaPage{}, err
	}

	page, err := g.client.Delta(ctx, g.driveID.String(), cursor)
	if err != nil {
		return DeltaPage{}, err
	}

	items := make([]RemoteItem, 0, len(page.Items))
	for _, it := range page.Items {
		// The root driveItem itself has no place in the index: it is the
		// implicit, row-less ancestor every top-level item's ParentID ""
		// refers to.
		if it.IsRoot || it.ID == g.rootID {
			continue
		}

		items = append(items, fromGraphItem(it, g.rootID))
	}

	if page.NextLink != "" {
		return DeltaPage{Items: items, NextCursor: page.NextLink, HasMore: true}, nil
	}

	return DeltaPage{Items: items, NextCursor: page.DeltaLink, HasMore: false}, nil
}

// DownloadByID implements RemoteAPI.
func (g *GraphRemote) DownloadByID(ctx context.Context, id, localPath string) error {
	f, err := os.Create(localPath)
	if err != nil {
		return newSyncError(KindFilesystem, "create "+localPath, err)
	}
	defer f.Close()

	if _, err := g.client.Download(ctx, g.driveID, id, f); err != nil {
		return err
	}

	return nil
}

// SimpleUpload implements RemoteAPI.
func (g *GraphRemote) SimpleUpload(ctx context.Context, localPath, remotePath, ifMatchETag string) (RemoteItem, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return RemoteItem{}, newSyncError(KindFilesystem, "open "+localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return RemoteItem{}, newSyncError(KindFilesystem, "stat "+localPath, err)
	}

	item, err := g.client.SimpleUploadByPath(ctx, g.driveID, remotePath, f, info.Size(), ifMatchETag)
	if err != nil {
		return RemoteItem{}, err
	}

	if err := g.ensureRootID(ctx); err != nil {
		return RemoteItem{}, err
	}

	return fromGraphItem(*item, g.rootID), nil
}

// UpdateByID implements RemoteAPI. Exactly one of patch's concerns is
// populated per call: a rename/move, or a local-mtime push.
func (g *GraphRemote) UpdateByID(ctx context.Context, id string, patch Patch, ifMatchETag string) (RemoteItem, error) {
	if err := g.ensureRootID(ctx); err != nil {
		return RemoteItem{}, err
	}

	if patch.LastModified != nil {
		item, err := g.client.UpdateFileSystemInfoIfMatch(ctx, g.driveID, id, *patch.LastModified, ifMatchETag)
		if err != nil {
			return RemoteItem{}, err
		}

		return fromGraphItem(*item, g.rootID), nil
	}

	newParentID := ""

	if patch.NewParentPath != nil {
		parentID, err := g.resolveParentID(ctx, *patch.NewParentPath)
		if err != nil {
			return RemoteItem{}, err
		}

		newParentID = parentID
	}

	item, err := g.client.MoveItemIfMatch(ctx, g.driveID, id, newParentID, patch.NewName, ifMatchETag)
	if err != nil {
		return RemoteItem{}, err
	}

	return fromGraphItem(*item, g.rootID), nil
}

// DeleteByID implements RemoteAPI.
func (g *GraphRemote) DeleteByID(ctx context.Context, id, ifMatchETag string) error {
	return g.client.DeleteItemIfMatch(ctx, g.driveID, id, ifMatchETag)
}

// CreateByPath implements RemoteAPI.
func (g *GraphRemote) CreateByPath(ctx context.Context, parentPath, name string) (RemoteItem, error) {
	item, err := g.client.CreateFolderByPath(ctx, g.driveID, parentPath, name)
	if err != nil {
		return RemoteItem{}, err
	}

	if err := g.ensureRootID(ctx); err != nil {
		return RemoteItem{}, err
	}

	return fromGraphItem(*item, g.rootID), nil
}

// resolveParentID resolves a remote path to an item ID, since
// MoveItemIfMatch takes a parent ID rather than a path. The sync root
// itself uses the well-known "root" alias (GetItemByPath rejects an empty
// path as a caller bug).
func (g *GraphRemote) resolveParentID(ctx context.Context, parentPath string) (string, error) {
	if parentPath == "" {
		return "root", nil
	}

	item, err := g.client.GetItemByPath(ctx, g.driveID, parentPath)
	if err != nil {
		return "", fmt.Errorf("syncengine: resolving parent path %q: %w", parentPath, err)
	}

	return item.ID, nil
}

// fromGraphItem converts a graph.Item into the engine's RemoteItem view.
// rootID is the drive's root item ID; an item parented directly under it
// gets ParentID "" to match the index's row-less root convention.
func fromGraphItem(it graph.Item, rootID string) RemoteItem {
	parentID := it.ParentID
	if parentID == rootID {
		parentID = ""
	}

	return RemoteItem{
		ID:       it.ID,
		Name:     it.Name,
		ETag:     it.ETag,
		CTag:     it.CTag,
		ParentID: parentID,
		Mtime:    it.ModifiedAt,
		CRC32:    it.CRC32Hash,
		Deleted:  it.IsDeleted,
		IsFile:   !it.IsDeleted && !it.IsFolder && !it.IsPackage,
		IsFolder: !it.IsDeleted && it.IsFolder,
	}
}
