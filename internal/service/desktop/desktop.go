package desktop

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/oshokin/steam-launcher/internal/fsutil"
	"github.com/oshokin/steam-launcher/internal/logger"
	"github.com/oshokin/steam-launcher/internal/service/paths"
)

// ErrDesktopIntegration marks a destination directory that could not be created.
var ErrDesktopIntegration = errors.New("desktop integration failed")

const (
	// IconName is the icon file name, both in the assets and in the icon theme.
	IconName = "steam.png"
	// EntryName is the application entry file name.
	EntryName = "steam.desktop"

	dirPermissions   = 0o755
	entryPermissions = 0o755
)

// IconSizes are the hicolor sizes shipped with the client.
func IconSizes() []int {
	return []int{16, 24, 32, 48, 256}
}

// bundledCommands are the Exec values that refer to the distribution's client wrapper.
//
//nolint:gochecknoglobals // Static lookup table.
var bundledCommands = map[string]struct{}{
	"steam":          {},
	"/usr/bin/steam": {},
}

// Install links icons and the application entry for layout. wrapperPath
// replaces the bundled command in the entry's Exec lines.
// Only directory creation failures are returned, joined under ErrDesktopIntegration.
func Install(ctx context.Context, layout *paths.Layout, wrapperPath string) error {
	ctx = logger.WithName(ctx, "desktop")

	var (
		assets = layout.LauncherAssets()
		errs   []error
	)

	entrySource := filepath.Join(assets, EntryName)
	if err := RewriteEntry(ctx, entrySource, wrapperPath); err != nil {
		logger.WarnKV(ctx, "Unable to prepare application entry", "path", entrySource, "error", err)
	}

	for _, size := range IconSizes() {
		source := filepath.Join(assets, "icons", strconv.Itoa(size), IconName)
		destination := IconPath(layout.DataHome, size)

		if err := placeLink(ctx, source, destination); err != nil {
			errs = append(errs, err)
		}
	}

	if err := placeLink(ctx, entrySource, EntryPath(layout.DataHome)); err != nil {
		errs = append(errs, err)
	}

	for _, dir := range []string{
		filepath.Join(layout.DataHome, "icons", "hicolor"),
		filepath.Join(layout.DataHome, "applications"),
	} {
		if err := fsutil.Touch(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.DebugKV(ctx, "Unable to touch directory", "path", dir, "error", err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrDesktopIntegration, errors.Join(errs...))
	}

	return nil
}

// IconPath returns where the icon of the given size is linked.
func IconPath(dataHome string, size int) string {
	dir := fmt.Sprintf("%dx%d", size, size)

	return filepath.Join(dataHome, "icons", "hicolor", dir, "apps", IconName)
}

// EntryPath returns where the application entry is linked.
func EntryPath(dataHome string) string {
	return filepath.Join(dataHome, "applications", EntryName)
}

// placeLink points destination at source unless destination is a real file.
// A missing source is skipped; only failing to create the parent is reported.
func placeLink(ctx context.Context, source, destination string) error {
	if _, err := os.Stat(source); err != nil {
		logger.DebugKV(ctx, "Asset not found, skipping", "path", source)

		return nil
	}

	if err := os.MkdirAll(filepath.Dir(destination), dirPermissions); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(destination), err)
	}

	info, err := os.Lstat(destination)

	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		logger.WarnKV(ctx, "Unable to inspect destination", "path", destination, "error", err)

		return nil
	case info.Mode()&fs.ModeSymlink == 0:
		logger.InfoKV(ctx, "Keeping existing file", "path", destination)

		return nil
	}

	if err = fsutil.SymlinkAtomic(source, destination); err != nil {
		logger.WarnKV(ctx, "Unable to link asset", "source", source, "destination", destination, "error", err)
	}

	return nil
}

// RewriteEntry points the Exec and TryExec lines of the entry at path to
// wrapperPath and marks the file executable. The file is replaced atomically.
func RewriteEntry(ctx context.Context, path, wrapperPath string) error {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return err
	}

	return fsutil.WriteFileAtomic(ctx, path, []byte(rewriteExec(string(content), wrapperPath)), entryPermissions)
}

// rewriteExec replaces the command of every Exec/TryExec key that runs the bundled client.
func rewriteExec(content, wrapperPath string) string {
	var (
		builder strings.Builder
		scanner = bufio.NewScanner(strings.NewReader(content))
	)

	for scanner.Scan() {
		builder.WriteString(rewriteLine(scanner.Text(), wrapperPath))
		builder.WriteByte('\n')
	}

	return builder.String()
}

func rewriteLine(line, wrapperPath string) string {
	key, value, found := strings.Cut(line, "=")
	if !found {
		return line
	}

	if trimmed := strings.TrimSpace(key); trimmed != "Exec" && trimmed != "TryExec" {
		return line
	}

	command, rest, _ := strings.Cut(strings.TrimLeft(value, " "), " ")
	if _, ok := bundledCommands[command]; !ok {
		return line
	}

	rewritten := key + "=" + quoteExec(wrapperPath)
	if rest != "" {
		rewritten += " " + rest
	}

	return rewritten
}

// quoteExec quotes a path for an Exec value when it contains reserved characters.
func quoteExec(path string) string {
	if !strings.ContainsAny(path, " \t\"'\\`$") {
		return path
	}

	replacer := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`", "$", `\$`)

	return `"` + replacer.Replace(path) + `"`
}
