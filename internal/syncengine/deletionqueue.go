package syncengine

import (
	"log/slog"
	"os"
	"path/filepath"
)

// deletionEntry is one path queued for removal during the download phase.
type deletionEntry struct {
	path string
	typ  ItemType
}

// DeletionQueue defers local deletions discovered during a download pass so
// children are removed before parents. Entries
// drain in reverse insertion order; the caller is responsible for enqueuing
// descendants before ancestors are removed from the index, which the
// delta feed's own ordering already guarantees.
type DeletionQueue struct {
	root    string
	entries []deletionEntry
	logger  *slog.Logger
}

// NewDeletionQueue returns an empty queue rooted at root.
func NewDeletionQueue(root string, logger *slog.Logger) *DeletionQueue {
	if logger == nil {
		logger = slog.Default()
	}

	return &DeletionQueue{root: root, logger: logger}
}

// Enqueue records path for deletion at drain time.
func (q *DeletionQueue) Enqueue(path string, typ ItemType) {
	q.entries = append(q.entries, deletionEntry{path: path, typ: typ})
}

// Drain removes every queued path in reverse insertion order. A directory
// rmdir failure (non-empty, because the user repopulated it) is logged and
// not an error; any other filesystem failure aborts the pass.
func (q *DeletionQueue) Drain() error {
	for i := len(q.entries) - 1; i >= 0; i-- {
		if err := q.drainOne(q.entries[i]); err != nil {
			return err
		}
	}

	q.entries = nil

	return nil
}

func (q *DeletionQueue) drainOne(e deletionEntry) error {
	abs := filepath.Join(q.root, e.path)

	if _, statErr := os.Lstat(abs); os.IsNotExist(statErr) {
		return nil
	}

	if e.typ == ItemTypeFolder {
		if err := os.Remove(abs); err != nil {
			q.logger.Info("kept dir", slog.String("path", e.path), slog.String("reason", err.Error()))
			return nil
		}

		q.logger.Info("deleted dir", slog.String("path", e.path))

		return nil
	}

	if err := os.Remove(abs); err != nil {
		return newSyncError(KindFilesystem, "remove "+abs, err)
	}

	q.logger.Info("deleted file", slog.String("path", e.path))

	return nil
}
