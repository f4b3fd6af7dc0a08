package fsutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestRemoveIfExists tolerates only a missing target.
func TestRemoveIfExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	require.NoError(t, RemoveIfExists(file))
	require.NoError(t, RemoveIfExists(file))
	require.NoFileExists(t, file)

	// A non-empty directory is a real failure, not a missing file.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "child"), []byte("x"), 0o600))
	require.Error(t, RemoveIfExists(dir))
}

// TestWriteFileAtomic replaces content and mode without leaving temp files behind.
func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "steam.desktop")

	require.NoError(t, WriteFileAtomic(context.Background(), path, []byte("old"), 0o644))
	require.NoError(t, WriteFileAtomic(context.Background(), path, []byte("new"), 0o755))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "new", string(contents))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

// TestWriteFileAtomic_Cancelled does nothing once the context is done.
func TestWriteFileAtomic_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := filepath.Join(t.TempDir(), "marker")
	require.ErrorIs(t, WriteFileAtomic(ctx, path, []byte("x"), 0o644), context.Canceled)
	require.NoFileExists(t, path)
}

// TestTouchAndIsSymlink covers the small helpers.
func TestTouchAndIsSymlink(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(dir, old, old))
	require.NoError(t, Touch(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.ModTime().After(old))

	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(dir, link))

	isLink, err := IsSymlink(link)
	require.NoError(t, err)
	require.True(t, isLink)

	isLink, err = IsSymlink(dir)
	require.NoError(t, err)
	require.False(t, isLink)
}

// TestSymlinkAtomic creates, keeps and replaces links.
func TestSymlinkAtomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	link := filepath.Join(dir, "steam")

	require.NoError(t, SymlinkAtomic("/first", link))

	before, err := os.Lstat(link)
	require.NoError(t, err)

	require.NoError(t, SymlinkAtomic("/first", link))

	after, err := os.Lstat(link)
	require.NoError(t, err)
	require.True(t, os.SameFile(before, after))

	require.NoError(t, SymlinkAtomic("/second", link))

	value, err := os.Readlink(link)
	require.NoError(t, err)
	require.Equal(t, "/second", value)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
