package syncengine

import (
	"context"
	"fmt"
	"os"
	"path"
	"sync"
)

func writeFile(localPath string, content []byte) error {
	return os.WriteFile(localPath, content, 0o644)
}

func baseOf(p string) string {
	return path.Base(p)
}

// fakeRemote is an in-memory RemoteAPI used across the package's tests.
// Delta pages are pre-scripted via pushPage; mutation calls (SimpleUpload,
// UpdateByID, DeleteByID, CreateByPath) update an id-keyed item table and
// return the result the way the real Graph API echoes back the mutated
// item.
type fakeRemote struct {
	mu sync.Mutex

	pages         []DeltaPage
	nextSeq       int
	calledCursors []string

	items      map[string]RemoteItem
	nextID     int
	downloaded map[string][]byte // id -> content, for DownloadByID

	deleteErr   error
	downloadErr error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		items:      make(map[string]RemoteItem),
		downloaded: make(map[string][]byte),
	}
}

func (r *fakeRemote) pushPage(p DeltaPage) {
	r.pages = append(r.pages, p)
}

func (r *fakeRemote) ViewChanges(ctx context.Context, cursor string) (DeltaPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calledCursors = append(r.calledCursors, cursor)

	if r.nextSeq >= len(r.pages) {
		return DeltaPage{NextCursor: cursor, HasMore: false}, nil
	}

	p := r.pages[r.nextSeq]
	r.nextSeq++

	return p, nil
}

func (r *fakeRemote) DownloadByID(ctx context.Context, id, localPath string) error {
	r.mu.Lock()
	content, ok := r.downloaded[id]
	downloadErr := r.downloadErr
	r.mu.Unlock()

	if downloadErr != nil {
		return downloadErr
	}

	if !ok {
		content = []byte("content-" + id)
	}

	return writeFile(localPath, content)
}

func (r *fakeRemote) SimpleUpload(ctx context.Context, localPath, remotePath, ifMatchETag string) (RemoteItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := fmt.Sprintf("up-%d", r.nextID)

	item := RemoteItem{
		ID:     id,
		Name:   baseOf(remotePath),
		ETag:   "etag-" + id,
		CTag:   "ctag-" + id,
		IsFile: true,
	}
	r.items[id] = item

	return item, nil
}

func (r *fakeRemote) UpdateByID(ctx context.Context, id string, patch Patch, ifMatchETag string) (RemoteItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		item = RemoteItem{ID: id, IsFile: true}
	}

	if patch.NewName != "" {
		item.Name = patch.NewName
	}

	if patch.LastModified != nil {
		item.Mtime = *patch.LastModified
	}

	item.ETag = item.ETag + "'"
	r.items[id] = item

	return item, nil
}

func (r *fakeRemote) DeleteByID(ctx context.Context, id, ifMatchETag string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}

	r.mu.Lock()
	delete(r.items, id)
	r.mu.Unlock()

	return nil
}

func (r *fakeRemote) CreateByPath(ctx context.Context, parentPath, name string) (RemoteItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := fmt.Sprintf("dir-%d", r.nextID)

	item := RemoteItem{
		ID:       id,
		Name:     name,
		ETag:     "etag-" + id,
		CTag:     "ctag-" + id,
		IsFolder: true,
	}
	r.items[id] = item

	return item, nil
}

// fakeIndex is an in-memory Index used by tests that don't need real
// SQLite persistence.
type fakeIndex struct {
	mu     sync.Mutex
	rows   map[string]Item
	cursor string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{rows: make(map[string]Item)}
}

func (ix *fakeIndex) Upsert(ctx context.Context, item Item) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	item.Path = ""
	ix.rows[item.ID] = item

	return nil
}

func (ix *fakeIndex) Delete(ctx context.Context, id string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	delete(ix.rows, id)

	return nil
}

func (ix *fakeIndex) Get(ctx context.Context, id string) (Item, bool, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	row, ok := ix.rows[id]
	if !ok {
		return Item{}, false, nil
	}

	row.Path = ix.pathForLocked(row)

	return row, true, nil
}

func (ix *fakeIndex) GetByPath(ctx context.Context, path string) (Item, bool, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, row := range ix.rows {
		if ix.pathForLocked(row) == path {
			row.Path = path
			return row, true, nil
		}
	}

	return Item{}, false, nil
}

func (ix *fakeIndex) List(ctx context.Context) ([]Item, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	var out []Item

	for _, row := range ix.rows {
		row.Path = ix.pathForLocked(row)
		out = append(out, row)
	}

	return out, nil
}

func (ix *fakeIndex) pathForLocked(row Item) string {
	if row.ParentID == "" {
		return row.Name
	}

	parent, ok := ix.rows[row.ParentID]
	if !ok {
		return row.Name
	}

	return ix.pathForLocked(parent) + "/" + row.Name
}

func (ix *fakeIndex) GetCursor(ctx context.Context) (string, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	return ix.cursor, nil
}

func (ix *fakeIndex) SetCursor(ctx context.Context, cursor string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.cursor = cursor

	return nil
}

func (ix *fakeIndex) Close() error { return nil }
