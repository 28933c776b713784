package syncengine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSynced_FolderExistence(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "d"), 0o755))

	synced, err := IsSynced(root, Item{Path: "d", Type: ItemTypeFolder})
	require.NoError(t, err)
	assert.True(t, synced)
}

func TestIsSynced_MissingPath(t *testing.T) {
	root := t.TempDir()

	synced, err := IsSynced(root, Item{Path: "missing", Type: ItemTypeFile})
	require.NoError(t, err)
	assert.False(t, synced)
}

func TestIsSynced_CRC32FallbackWhenMtimeDiffers(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "x"), []byte("data"), 0o644))

	sum, err := fileCRC32(filepath.Join(root, "x"))
	require.NoError(t, err)

	oldMtime := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	synced, err := IsSynced(root, Item{Path: "x", Type: ItemTypeFile, Mtime: oldMtime, CRC32: sum})
	require.NoError(t, err)
	assert.True(t, synced, "matching crc32 should satisfy IsSynced even with a stale mtime")
}

func TestIsSynced_MismatchWithNoCRC32(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "x"), []byte("data"), 0o644))

	oldMtime := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	synced, err := IsSynced(root, Item{Path: "x", Type: ItemTypeFile, Mtime: oldMtime})
	require.NoError(t, err)
	assert.False(t, synced)
}

// SafeRename never overwrites; repeated collisions get numbered aside.
func TestSafeRename_CollisionSuffix(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "x.txt"), []byte("original"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "x.conflict-2.txt"), []byte("taken"), 0o644))

	newRel, err := SafeRename(root, "x.txt")
	require.NoError(t, err)
	assert.Equal(t, "x.conflict-3.txt", newRel)

	_, err = os.Stat(filepath.Join(root, "x.txt"))
	assert.True(t, os.IsNotExist(err))

	content, err := os.ReadFile(filepath.Join(root, "x.conflict-3.txt"))
	require.NoError(t, err)
	assert.Equal(t, "original", string(content))

	// The pre-existing collision at suffix 2 must be untouched.
	content, err = os.ReadFile(filepath.Join(root, "x.conflict-2.txt"))
	require.NoError(t, err)
	assert.Equal(t, "taken", string(content))
}
