package syncengine

import "context"

// Index is the persistent record of every item the engine has synced
// Implementations own path materialization: Get,
// GetByPath, and List always return rows with Path populated by walking
// ParentID to the sync root; Upsert and Delete ignore whatever a caller
// set on Item.Path.
type Index interface {
	// Upsert inserts or replaces the row for item.ID.
	Upsert(ctx context.Context, item Item) error
	// Delete removes the row for id, if present.
	Delete(ctx context.Context, id string) error
	// Get returns the row for id. ok is false if no such row exists.
	Get(ctx context.Context, id string) (item Item, ok bool, err error)
	// GetByPath returns the row whose derived Path equals path. ok is
	// false if no such row exists.
	GetByPath(ctx context.Context, path string) (item Item, ok bool, err error)
	// List returns every row currently indexed.
	List(ctx context.Context) ([]Item, error)
	// GetCursor returns the persisted delta cursor, or "" if none has
	// been saved yet.
	GetCursor(ctx context.Context) (string, error)
	// SetCursor persists the delta cursor.
	SetCursor(ctx context.Context, cursor string) error
	// Close releases the underlying storage.
	Close() error
}
