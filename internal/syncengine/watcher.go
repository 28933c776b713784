package syncengine

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// FsWatcher abstracts filesystem event monitoring. Satisfied by
// *fsnotify.Watcher; tests inject a fake implementation.
type FsWatcher interface {
	Add(name string) error
	Remove(name string) error
	Close() error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
}

// fsnotifyWrapper adapts *fsnotify.Watcher to the FsWatcher interface.
// fsnotify exposes Events and Errors as public fields, not methods.
type fsnotifyWrapper struct {
	w *fsnotify.Watcher
}

func (fw *fsnotifyWrapper) Add(name string) error         { return fw.w.Add(name) }
func (fw *fsnotifyWrapper) Remove(name string) error      { return fw.w.Remove(name) }
func (fw *fsnotifyWrapper) Close() error                  { return fw.w.Close() }
func (fw *fsnotifyWrapper) Events() <-chan fsnotify.Event { return fw.w.Events }
func (fw *fsnotifyWrapper) Errors() <-chan error          { return fw.w.Errors }

// Watcher feeds live filesystem events into the engine's targeted upload
// entry points while the engine is in monitor mode. Each
// fsnotify event translates into exactly one call: a create/write becomes
// UploadFile or OnDirCreated depending on what's now on disk; a remove
// becomes OnRemoved.
type Watcher struct {
	root           string
	engine         *Engine
	logger         *slog.Logger
	watcherFactory func() (FsWatcher, error)

	fsw FsWatcher
}

// NewWatcher constructs a Watcher rooted at root, driving engine.
func NewWatcher(root string, engine *Engine, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		root:   root,
		engine: engine,
		logger: logger,
		watcherFactory: func() (FsWatcher, error) {
			w, err := fsnotify.NewWatcher()
			if err != nil {
				return nil, err
			}

			return &fsnotifyWrapper{w: w}, nil
		},
	}
}

// Start begins watching root only. The watch is not recursive and no
// subdirectory is added later, so changes inside subdirectories raise no
// events; they are reconciled by the next full pass.
func (w *Watcher) Start() error {
	fsw, err := w.watcherFactory()
	if err != nil {
		return newSyncError(KindFilesystem, "create watcher", err)
	}

	if err := fsw.Add(w.root); err != nil {
		fsw.Close()
		return newSyncError(KindFilesystem, "watch "+w.root, err)
	}

	w.fsw = fsw

	return nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	if w.fsw == nil {
		return nil
	}

	return w.fsw.Close()
}

// Run processes events until ctx is cancelled, translating each one into a
// call on the engine's targeted entry points. Errors from a single event
// are logged, not returned, so one bad event doesn't stop the watch loop —
// the next full pass will catch anything a dropped event missed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events():
			if !ok {
				return nil
			}

			w.handleEvent(ctx, ev)
		case err, ok := <-w.fsw.Errors():
			if !ok {
				return nil
			}

			w.logger.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	relPath, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		w.logger.Warn("watcher event outside root", slog.String("path", ev.Name))
		return
	}

	var opErr error

	switch {
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		opErr = w.engine.OnRemoved(ctx, relPath)
	case ev.Op.Has(fsnotify.Create):
		opErr = w.engine.UploadFile(ctx, relPath)
	case ev.Op.Has(fsnotify.Write):
		opErr = w.engine.UploadFile(ctx, relPath)
	default:
		return
	}

	if opErr != nil {
		w.logger.Warn("watcher-triggered upload failed",
			slog.String("path", relPath),
			slog.String("error", opErr.Error()),
		)
	}
}
