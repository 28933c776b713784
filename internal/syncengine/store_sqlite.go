package syncengine

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure Go SQLite driver, registers as "sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	walJournalSizeLimit = 67108864 // 64 MiB
	cursorKey           = "cursor"
	maxPathDepth        = 1000 // cycle guard when walking parent_id
)

// SQLiteIndex implements Index on top of a SQLite database. Path is never
// stored: Get / GetByPath / List derive it by
// walking parent_id to the sync root on every read.
type SQLiteIndex struct {
	db     *sql.DB
	logger *slog.Logger

	stmts itemStatements
}

type itemStatements struct {
	upsert, deleteByID, get, getParent, getCursor, setCursor *sql.Stmt
}

// stmtDef maps a SQL string to the prepared statement pointer it fills.
type stmtDef struct {
	dest **sql.Stmt
	sql  string
	name string
}

// prepareAll prepares a batch of statements, returning on first error.
func prepareAll(ctx context.Context, db *sql.DB, defs []stmtDef) error {
	for i := range defs {
		stmt, err := db.PrepareContext(ctx, defs[i].sql)
		if err != nil {
			return fmt.Errorf("prepare %s: %w", defs[i].name, err)
		}

		*defs[i].dest = stmt
	}

	return nil
}

// NewSQLiteIndex opens (or creates) the index database at dbPath, applying
// migrations and preparing statements. Use ":memory:" for tests.
func NewSQLiteIndex(ctx context.Context, dbPath string, logger *slog.Logger) (*SQLiteIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("opening sync index database", slog.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("syncengine: open index database: %w", err)
	}

	if err := setPragmas(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	idx := &SQLiteIndex{db: db, logger: logger}

	if err := idx.prepareStatements(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("syncengine: prepare index statements: %w", err)
	}

	return idx, nil
}

func setPragmas(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	pragmas := []struct {
		sql  string
		desc string
	}{
		{"PRAGMA journal_mode = WAL", "WAL mode"},
		{"PRAGMA synchronous = FULL", "synchronous FULL"},
		{"PRAGMA foreign_keys = ON", "foreign keys"},
		{fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit), "journal size limit"},
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p.sql); err != nil {
			return fmt.Errorf("syncengine: set pragma %s: %w", p.desc, err)
		}

		logger.Debug("pragma set", slog.String("pragma", p.desc))
	}

	return nil
}

// runMigrations applies all pending schema migrations using goose's
// Provider API.
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("syncengine: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("syncengine: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("syncengine: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

const (
	sqlUpsertItem = `INSERT INTO items (id, name, item_type, etag, ctag, mtime, parent_id, crc32)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name      = excluded.name,
			item_type = excluded.item_type,
			etag      = excluded.etag,
			ctag      = excluded.ctag,
			mtime     = excluded.mtime,
			parent_id = excluded.parent_id,
			crc32     = excluded.crc32`

	sqlDeleteItem = `DELETE FROM items WHERE id = ?`

	sqlGetItem = `SELECT id, name, item_type, etag, ctag, mtime, parent_id, crc32
		FROM items WHERE id = ?`

	sqlGetParent = `SELECT name, parent_id FROM items WHERE id = ?`

	sqlGetChildByName = `SELECT id, name, item_type, etag, ctag, mtime, parent_id, crc32
		FROM items WHERE parent_id = ? AND name = ?`

	sqlListAll = `SELECT id, name, item_type, etag, ctag, mtime, parent_id, crc32 FROM items`

	sqlGetState = `SELECT value FROM sync_state WHERE key = ?`

	sqlSetState = `INSERT INTO sync_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
)

func (idx *SQLiteIndex) prepareStatements(ctx context.Context) error {
	return prepareAll(ctx, idx.db, []stmtDef{
		{&idx.stmts.upsert, sqlUpsertItem, "upsertItem"},
		{&idx.stmts.deleteByID, sqlDeleteItem, "deleteItem"},
		{&idx.stmts.get, sqlGetItem, "getItem"},
		{&idx.stmts.getParent, sqlGetParent, "getParent"},
		{&idx.stmts.getCursor, sqlGetState, "getState"},
		{&idx.stmts.setCursor, sqlSetState, "setState"},
	})
}

// Upsert implements Index.
func (idx *SQLiteIndex) Upsert(ctx context.Context, item Item) error {
	_, err := idx.stmts.upsert.ExecContext(ctx,
		item.ID, item.Name, string(item.Type), item.ETag, item.CTag,
		truncateToSecond(item.Mtime).Unix(), item.ParentID, item.CRC32,
	)
	if err != nil {
		return fmt.Errorf("syncengine: upsert item %s: %w", item.ID, err)
	}

	return nil
}

// Delete implements Index.
func (idx *SQLiteIndex) Delete(ctx context.Context, id string) error {
	if _, err := idx.stmts.deleteByID.ExecContext(ctx, id); err != nil {
		return fmt.Errorf("syncengine: delete item %s: %w", id, err)
	}

	return nil
}

// Get implements Index.
func (idx *SQLiteIndex) Get(ctx context.Context, id string) (Item, bool, error) {
	item, err := idx.scanItem(ctx, idx.stmts.get.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, false, nil
	}

	if err != nil {
		return Item{}, false, err
	}

	p, err := idx.pathFor(ctx, item.ParentID, item.Name)
	if err != nil {
		return Item{}, false, err
	}

	item.Path = p

	return item, true, nil
}

// GetByPath implements Index by walking down from the sync root, matching
// one path segment per level.
func (idx *SQLiteIndex) GetByPath(ctx context.Context, p string) (Item, bool, error) {
	segments := splitPath(p)
	if len(segments) == 0 {
		return Item{}, false, nil
	}

	parentID := ""

	var current Item

	for i, seg := range segments {
		row := idx.db.QueryRowContext(ctx, sqlGetChildByName, parentID, seg)

		item, err := idx.scanItem(ctx, row)
		if errors.Is(err, sql.ErrNoRows) {
			return Item{}, false, nil
		}

		if err != nil {
			return Item{}, false, err
		}

		current = item
		parentID = item.ID

		if i == len(segments)-1 {
			current.Path = p
		}
	}

	return current, true, nil
}

// List implements Index.
func (idx *SQLiteIndex) List(ctx context.Context) ([]Item, error) {
	rows, err := idx.db.QueryContext(ctx, sqlListAll)
	if err != nil {
		return nil, fmt.Errorf("syncengine: list items: %w", err)
	}
	defer rows.Close()

	var items []Item

	for rows.Next() {
		item, err := idx.scanItemRows(rows)
		if err != nil {
			return nil, err
		}

		p, err := idx.pathFor(ctx, item.ParentID, item.Name)
		if err != nil {
			return nil, err
		}

		item.Path = p

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("syncengine: list items: %w", err)
	}

	return items, nil
}

// GetCursor implements Index.
func (idx *SQLiteIndex) GetCursor(ctx context.Context) (string, error) {
	var value string

	err := idx.stmts.getCursor.QueryRowContext(ctx, cursorKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("syncengine: get cursor: %w", err)
	}

	return value, nil
}

// SetCursor implements Index.
func (idx *SQLiteIndex) SetCursor(ctx context.Context, cursor string) error {
	if _, err := idx.stmts.setCursor.ExecContext(ctx, cursorKey, cursor); err != nil {
		return fmt.Errorf("syncengine: set cursor: %w", err)
	}

	return nil
}

// Close implements Index.
func (idx *SQLiteIndex) Close() error {
	return idx.db.Close()
}

// pathFor derives an item's path by walking parent_id up to the sync root.
// A cycle (which should never occur, but the database cannot enforce it)
// aborts with a logical-violation error rather than looping forever.
func (idx *SQLiteIndex) pathFor(ctx context.Context, parentID, name string) (string, error) {
	segments := []string{name}
	visited := map[string]struct{}{}

	for parentID != "" {
		if _, ok := visited[parentID]; ok {
			return "", newSyncError(KindLogicalViolation, "pathFor", fmt.Errorf("cycle detected at parent %s", parentID))
		}

		visited[parentID] = struct{}{}

		if len(segments) > maxPathDepth {
			return "", newSyncError(KindLogicalViolation, "pathFor", fmt.Errorf("path depth exceeds %d", maxPathDepth))
		}

		var parentName, grandparentID string

		err := idx.stmts.getParent.QueryRowContext(ctx, parentID).Scan(&parentName, &grandparentID)
		if errors.Is(err, sql.ErrNoRows) {
			return "", newSyncError(KindLogicalViolation, "pathFor", fmt.Errorf("dangling parent_id %s", parentID))
		}

		if err != nil {
			return "", fmt.Errorf("syncengine: resolve parent %s: %w", parentID, err)
		}

		segments = append([]string{parentName}, segments...)
		parentID = grandparentID
	}

	return path.Join(segments...), nil
}

// splitPath breaks a slash-separated relative path into its segments,
// ignoring leading/trailing slashes.
func splitPath(p string) []string {
	clean := path.Clean("/" + p)
	if clean == "/" {
		return nil
	}

	var segments []string

	for _, seg := range splitClean(clean) {
		if seg != "" {
			segments = append(segments, seg)
		}
	}

	return segments
}

func splitClean(p string) []string {
	var out []string

	start := 0

	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			out = append(out, p[start:i])
			start = i + 1
		}
	}

	out = append(out, p[start:])

	return out
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (idx *SQLiteIndex) scanItem(ctx context.Context, row rowScanner) (Item, error) {
	var item Item

	var itemType string

	var mtimeUnix int64

	if err := row.Scan(&item.ID, &item.Name, &itemType, &item.ETag, &item.CTag, &mtimeUnix, &item.ParentID, &item.CRC32); err != nil {
		return Item{}, err
	}

	item.Type = ItemType(itemType)
	item.Mtime = time.Unix(mtimeUnix, 0).UTC()

	return item, nil
}

func (idx *SQLiteIndex) scanItemRows(rows *sql.Rows) (Item, error) {
	item, err := idx.scanItem(context.Background(), rows)
	if err != nil {
		return Item{}, fmt.Errorf("syncengine: scan item: %w", err)
	}

	return item, nil
}
