package syncengine

import (
	"context"
	"time"
)

// RemoteItem is the engine's view of a remote item, populated from whatever
// the remote API's delta feed or mutation responses return. Only the fields
// the engine actually reads are present (design notes, "dynamic JSON"):
// every other remote field is the concrete RemoteAPI implementation's
// business, not the engine's.
type RemoteItem struct {
	ID       string
	Name     string
	ETag     string
	CTag     string
	ParentID string
	Mtime    time.Time
	CRC32    string // file hash, hex; empty when the remote didn't supply one
	Deleted  bool
	IsFile   bool
	IsFolder bool
}

// DeltaPage is one page of the remote change feed (§6 view_changes).
type DeltaPage struct {
	Items      []RemoteItem
	NextCursor string
	HasMore    bool
}

// Patch describes a metadata mutation for RemoteAPI.UpdateByID. Exactly one
// of the two concerns is populated per call: a rename/move (NewName and/or
// NewParentPath), or a local-mtime push (LastModified). The engine never
// needs both in the same call.
type Patch struct {
	NewName       string
	NewParentPath *string // nil: no reparent; non-nil ("" means root): move here
	LastModified  *time.Time
}

// RemoteAPI is the engine's seam onto the remote drive (out of
// scope for this package's own implementation — internal/syncengine's
// GraphRemote is the concrete adapter onto internal/graph.Client).
type RemoteAPI interface {
	// ViewChanges returns one page of the delta feed starting at cursor.
	// The initial cursor is the empty string (full enumeration).
	ViewChanges(ctx context.Context, cursor string) (DeltaPage, error)
	// DownloadByID writes the item's content to localPath.
	DownloadByID(ctx context.Context, id, localPath string) error
	// SimpleUpload creates or replaces remotePath with the contents of
	// localPath. ifMatchETag, if non-empty, guards against a concurrent
	// remote edit.
	SimpleUpload(ctx context.Context, localPath, remotePath, ifMatchETag string) (RemoteItem, error)
	// UpdateByID applies patch to the item identified by id.
	UpdateByID(ctx context.Context, id string, patch Patch, ifMatchETag string) (RemoteItem, error)
	// DeleteByID deletes the item identified by id.
	DeleteByID(ctx context.Context, id, ifMatchETag string) error
	// CreateByPath creates a folder named name under parentPath ("" for
	// the sync root).
	CreateByPath(ctx context.Context, parentPath, name string) (RemoteItem, error)
}
