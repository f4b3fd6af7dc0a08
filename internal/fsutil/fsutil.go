package fsutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// RemoveIfExists removes path. A missing path is not an error; anything else is.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return nil
}

// WriteFileAtomic writes data to path through a temporary file in the same directory.
func WriteFileAtomic(ctx context.Context, path string, data []byte, perm fs.FileMode) error {
	return WriteReaderAtomic(ctx, path, bytes.NewReader(data), perm)
}

// WriteReaderAtomic copies r into a temporary file next to path, then renames it over path.
// Readers observe either the previous file or the complete new one.
func WriteReaderAtomic(ctx context.Context, path string, r io.Reader, perm fs.FileMode) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	dir, name := filepath.Split(filepath.Clean(path))
	if dir == "" {
		dir = "."
	}

	tempFile, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}

	tempName := tempFile.Name()

	// After a successful rename the temp name is gone and this is a no-op.
	defer func() {
		_ = RemoveIfExists(tempName)
	}()

	if _, err = io.Copy(tempFile, r); err != nil {
		_ = tempFile.Close()

		return fmt.Errorf("write temp: %w", err)
	}

	if err = tempFile.Sync(); err != nil {
		_ = tempFile.Close()

		return fmt.Errorf("sync temp: %w", err)
	}

	if err = tempFile.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}

	// CreateTemp uses 0600; apply the requested mode before the file becomes visible.
	if err = os.Chmod(tempName, perm); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}

	if err = os.Rename(tempName, path); err != nil {
		return fmt.Errorf("rename temp: %w", err)
	}

	return nil
}

// Touch sets the access and modification times of an existing path to now.
func Touch(path string) error {
	now := time.Now()

	return os.Chtimes(path, now, now)
}

// IsSymlink reports whether path itself is a symbolic link.
func IsSymlink(path string) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return false, err
	}

	return info.Mode()&fs.ModeSymlink != 0, nil
}

// linkSequence keeps temporary link names unique within the process.
//
//nolint:gochecknoglobals // Process-wide counter.
var linkSequence atomic.Uint64

// SymlinkAtomic points link at target, replacing an existing link in one rename.
// A link that already points at target is left untouched.
func SymlinkAtomic(target, link string) error {
	if current, err := os.Readlink(link); err == nil && current == target {
		return nil
	}

	dir := filepath.Dir(link)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.%d.%d.link", filepath.Base(link), os.Getpid(), linkSequence.Add(1)))

	if err := RemoveIfExists(temp); err != nil {
		return err
	}

	if err := os.Symlink(target, temp); err != nil {
		return err
	}

	if err := os.Rename(temp, link); err != nil {
		_ = RemoveIfExists(temp)

		return err
	}

	return nil
}
