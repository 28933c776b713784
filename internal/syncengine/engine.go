package syncengine

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// EngineConfig holds the options for NewEngine. A struct because there are
// more than a couple of fields and several are about to grow.
type EngineConfig struct {
	Root   string     // absolute path to the local sync directory
	Remote RemoteAPI  // satisfied by *GraphRemote
	Index  Index      // satisfied by *SQLiteIndex
	Logger *slog.Logger
	// OnCursor, if set, is called with the new cursor after every delta
	// page is fully applied, so progress is durable across crashes
	// independent of the index's own persistence.
	OnCursor func(cursor string)
}

// PassReport summarizes one call to ApplyDifferences or UploadDifferences.
type PassReport struct {
	Duration time.Duration
}

// Engine coordinates a sync pass: it drives the download reconciler over
// paginated remote deltas, persists the cursor, maintains the skipped-items
// set, drains the deletion queue, and then drives the upload reconciler.
type Engine struct {
	root     string
	remote   RemoteAPI
	index    Index
	logger   *slog.Logger
	onCursor func(string)

	skipped *skippedSet
	queue   *DeletionQueue
	dl      *DownloadReconciler
	ul      *UploadReconciler
}

// NewEngine constructs an Engine over an already-open Index and RemoteAPI.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	skipped := newSkippedSet()
	queue := NewDeletionQueue(cfg.Root, logger)

	return &Engine{
		root:     cfg.Root,
		remote:   cfg.Remote,
		index:    cfg.Index,
		logger:   logger,
		onCursor: cfg.OnCursor,
		skipped:  skipped,
		queue:    queue,
		dl:       NewDownloadReconciler(cfg.Root, cfg.Remote, cfg.Index, skipped, queue, logger),
		ul:       NewUploadReconciler(cfg.Root, cfg.Remote, cfg.Index, logger),
	}
}

// SetCursor overrides the persisted delta cursor, used by --resync to force
// a full remote re-enumeration.
func (e *Engine) SetCursor(ctx context.Context, cursor string) error {
	return e.index.SetCursor(ctx, cursor)
}

// SetLogger replaces the logger used by the engine and both reconcilers, so
// a caller running repeated passes (e.g. under --monitor) can tag every log
// line in a pass with a fresh per-cycle logger. Not safe to call while a
// pass is in flight.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	e.logger = logger
	e.dl.logger = logger
	e.ul.logger = logger
	e.queue.logger = logger
}

// ApplyDifferences runs the download phase: pages through the remote delta
// feed starting at the persisted cursor, applies every item in page order,
// drains the deletion queue once the last page has been applied, and
// persists the final cursor.
func (e *Engine) ApplyDifferences(ctx context.Context) (PassReport, error) {
	start := time.Now()

	e.skipped.reset()

	cursor, err := e.index.GetCursor(ctx)
	if err != nil {
		return PassReport{}, err
	}

	for {
		page, err := e.remote.ViewChanges(ctx, cursor)
		if err != nil {
			return PassReport{}, wrapRemoteErr("ViewChanges", err)
		}

		for _, item := range page.Items {
			if err := e.dl.ApplyItem(ctx, item); err != nil {
				return PassReport{}, err
			}
		}

		cursor = page.NextCursor

		if err := e.index.SetCursor(ctx, cursor); err != nil {
			return PassReport{}, err
		}

		if e.onCursor != nil {
			e.onCursor(cursor)
		}

		if !page.HasMore {
			break
		}
	}

	if err := e.queue.Drain(); err != nil {
		return PassReport{}, err
	}

	e.logger.Info("download pass complete", slog.Duration("duration", time.Since(start)))

	return PassReport{Duration: time.Since(start)}, nil
}

// UploadDifferences runs the upload phase. An empty relPath runs the full
// pass (every indexed row plus a fresh-entry tree walk); a non-empty
// relPath runs the subtree pass rooted there.
func (e *Engine) UploadDifferences(ctx context.Context, relPath string) (PassReport, error) {
	start := time.Now()

	var err error
	if relPath == "" {
		err = e.ul.FullPass(ctx)
	} else {
		err = e.ul.SubtreePass(ctx, relPath)
	}

	if err != nil {
		return PassReport{}, err
	}

	e.logger.Info("upload pass complete", slog.Duration("duration", time.Since(start)))

	return PassReport{Duration: time.Since(start)}, nil
}

// UploadFile reconciles a single local file path, for the watcher's
// targeted change notifications.
func (e *Engine) UploadFile(ctx context.Context, relPath string) error {
	return e.ul.UploadPath(ctx, relPath)
}

// OnDirCreated reconciles a single newly created local directory.
func (e *Engine) OnDirCreated(ctx context.Context, relPath string) error {
	return e.ul.OnDirCreated(ctx, relPath)
}

// OnRemoved reconciles a single local removal.
func (e *Engine) OnRemoved(ctx context.Context, relPath string) error {
	return e.ul.OnRemoved(ctx, relPath)
}

// MoveItem renames or reparents the indexed item at from to to.
func (e *Engine) MoveItem(ctx context.Context, from, to string) error {
	return e.ul.Move(ctx, from, to)
}

// DeleteByPath deletes the indexed item at relPath, remotely and locally.
func (e *Engine) DeleteByPath(ctx context.Context, relPath string) error {
	return e.ul.DeleteByPath(ctx, relPath)
}

// Close releases the underlying index.
func (e *Engine) Close() error {
	if err := e.index.Close(); err != nil {
		return fmt.Errorf("syncengine: close index: %w", err)
	}

	return nil
}
