package paths

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/oshokin/steam-launcher/internal/fsutil"
	"github.com/oshokin/steam-launcher/internal/logger"
)

// ErrPathResolution wraps every failure to prepare the layout.
var ErrPathResolution = errors.New("path resolution failed")

// dirPermissions is used for directories the resolver creates.
const dirPermissions = 0o755

// Resolve builds the Layout for home and dataHome and converges the control
// directory links onto the chosen installation directory.
func Resolve(ctx context.Context, home, dataHome string) (*Layout, error) {
	ctx = logger.WithName(ctx, "paths")

	if home == "" || !filepath.IsAbs(home) {
		return nil, fmt.Errorf("home %q is not an absolute path: %w", home, ErrPathResolution)
	}

	if dataHome == "" {
		dataHome = filepath.Join(home, ".local", "share")
	}

	layout := &Layout{
		Home:       filepath.Clean(home),
		DataHome:   filepath.Clean(dataHome),
		ControlDir: filepath.Join(filepath.Clean(home), ControlDirName),
	}

	for _, link := range []string{layout.SteamLink(), layout.RootLink()} {
		if err := removeDanglingLink(ctx, link); err != nil {
			return nil, fmt.Errorf("repair %s: %w: %w", link, ErrPathResolution, err)
		}
	}

	installDir, err := chooseInstallDir(layout)
	if err != nil {
		return nil, fmt.Errorf("choose installation directory: %w: %w", ErrPathResolution, err)
	}

	layout.InstallDir = installDir

	for _, dir := range []string{layout.ControlDir, layout.InstallDir} {
		if err = os.MkdirAll(dir, dirPermissions); err != nil {
			return nil, fmt.Errorf("create %s: %w: %w", dir, ErrPathResolution, err)
		}
	}

	for _, link := range []string{layout.SteamLink(), layout.RootLink()} {
		if err = ensureLink(ctx, layout.InstallDir, link); err != nil {
			return nil, fmt.Errorf("link %s: %w: %w", link, ErrPathResolution, err)
		}
	}

	logger.DebugKV(ctx, "Resolved layout",
		"control_dir", layout.ControlDir,
		"install_dir", layout.InstallDir,
		"data_home", layout.DataHome)

	return layout, nil
}

// chooseInstallDir applies the precedence: steam link, root link, legacy
// co-located layout, fresh subdirectory. Dangling links are already gone.
func chooseInstallDir(layout *Layout) (string, error) {
	for _, link := range []string{layout.SteamLink(), layout.RootLink()} {
		target, ok, err := resolveLink(link)
		if err != nil {
			return "", err
		}

		if ok {
			return target, nil
		}
	}

	legacy, err := isLegacyLayout(layout.ControlDir)
	if err != nil {
		return "", err
	}

	if legacy {
		return layout.ControlDir, nil
	}

	return filepath.Join(layout.ControlDir, FreshInstallDirName), nil
}

// resolveLink returns the directory a symlink points at, if it is one and resolves.
func resolveLink(link string) (string, bool, error) {
	isLink, err := fsutil.IsSymlink(link)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}

		return "", false, err
	}

	if !isLink {
		return "", false, nil
	}

	target, err := os.Readlink(link)
	if err != nil {
		return "", false, err
	}

	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(link), target)
	}

	info, err := os.Stat(link)
	if err != nil || !info.IsDir() {
		return "", false, nil //nolint:nilerr // A link to a non-directory is not an installation.
	}

	return filepath.Clean(target), true, nil
}

// isLegacyLayout reports whether the control directory is a real directory
// that holds an installation of its own.
func isLegacyLayout(controlDir string) (bool, error) {
	info, err := os.Lstat(controlDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}

		return false, err
	}

	if !info.IsDir() {
		return false, nil
	}

	if _, err = os.Stat(filepath.Join(controlDir, EntryScript)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// removeDanglingLink deletes link if it is a symlink whose target does not exist.
func removeDanglingLink(ctx context.Context, link string) error {
	isLink, err := fsutil.IsSymlink(link)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return err
	}

	if !isLink {
		return nil
	}

	if _, err = os.Stat(link); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	logger.InfoKV(ctx, "Removing dangling link", "link", link)

	return fsutil.RemoveIfExists(link)
}

// ensureLink makes link point at target. A correct link is left untouched and
// a real file or directory in its place is never removed.
func ensureLink(ctx context.Context, target, link string) error {
	if current, err := os.Readlink(link); err == nil {
		if sameDir(current, target, filepath.Dir(link)) {
			return nil
		}

		logger.InfoKV(ctx, "Repointing link", "link", link, "from", current, "to", target)

		return fsutil.SymlinkAtomic(target, link)
	} else if _, statErr := os.Lstat(link); statErr == nil {
		logger.WarnKV(ctx, "Not replacing a real file or directory with a link", "path", link)

		return nil
	}

	if err := os.Symlink(target, link); err != nil {
		// A concurrent invocation may have created the same link first.
		if errors.Is(err, fs.ErrExist) {
			if current, readErr := os.Readlink(link); readErr == nil && sameDir(current, target, filepath.Dir(link)) {
				return nil
			}
		}

		return err
	}

	return nil
}

// sameDir compares a link value, relative to base when needed, with target.
func sameDir(linkValue, target, base string) bool {
	if !filepath.IsAbs(linkValue) {
		linkValue = filepath.Join(base, linkValue)
	}

	return filepath.Clean(linkValue) == filepath.Clean(target)
}
