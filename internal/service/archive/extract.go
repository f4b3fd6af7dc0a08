package archive

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/oshokin/steam-launcher/internal/fsutil"
	"github.com/oshokin/steam-launcher/internal/logger"
)

// ErrExtraction marks a corrupt or unusable archive.
var ErrExtraction = errors.New("extraction failed")

var errUnsafePath = errors.New("entry escapes the destination")

// dirPermissions is used for parent directories implied by file entries.
const dirPermissions = 0o755

// Filter decides whether an entry, by its cleaned slash-separated name, is extracted.
type Filter func(name string) bool

// Result summarises an extraction.
type Result struct {
	// Files lists extracted regular files and symlinks, relative to the destination.
	Files []string
}

// Entries returns a Filter that accepts exact names and everything below names
// that end with a slash.
func Entries(names ...string) Filter {
	return func(name string) bool {
		for _, want := range names {
			if strings.HasSuffix(want, "/") {
				if name == strings.TrimSuffix(want, "/") || strings.HasPrefix(name, want) {
					return true
				}

				continue
			}

			if name == want {
				return true
			}
		}

		return false
	}
}

// ExtractTarGz extracts the entries of a gzip-compressed tarball accepted by filter into dest.
func ExtractTarGz(ctx context.Context, archivePath, dest string, filter Filter) (*Result, error) {
	file, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrExtraction, archivePath, err)
	}

	defer func() {
		_ = file.Close()
	}()

	gzipReader, err := gzip.NewReader(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("%w: gzip open %s: %w", ErrExtraction, archivePath, err)
	}

	defer func() {
		_ = gzipReader.Close()
	}()

	return extractTar(ctx, tar.NewReader(gzipReader), dest, filter)
}

// ExtractTarXz extracts every entry of an xz-compressed tarball into dest.
func ExtractTarXz(ctx context.Context, archivePath, dest string) (*Result, error) {
	file, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrExtraction, archivePath, err)
	}

	defer func() {
		_ = file.Close()
	}()

	xzReader, err := xz.NewReader(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("%w: xz open %s: %w", ErrExtraction, archivePath, err)
	}

	return extractTar(ctx, tar.NewReader(xzReader), dest, nil)
}

func extractTar(ctx context.Context, reader *tar.Reader, dest string, filter Filter) (*Result, error) {
	result := new(Result)

	for {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("%w: %w", ErrExtraction, err)
		}

		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return result, nil
		}

		if err != nil {
			return result, fmt.Errorf("%w: read tar: %w", ErrExtraction, err)
		}

		name := cleanName(header.Name)
		if name == "" || (filter != nil && !filter(name)) {
			continue
		}

		target, err := safeJoin(dest, name)
		if err != nil {
			return result, fmt.Errorf("%w: %s: %w", ErrExtraction, header.Name, err)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			err = os.MkdirAll(target, dirPermissions)
		case tar.TypeReg:
			err = writeFile(ctx, dest, target, reader, header.FileInfo().Mode().Perm())
		case tar.TypeSymlink:
			err = writeSymlink(dest, header.Linkname, target)
		default:
			logger.DebugKV(ctx, "Skipping unsupported tar entry", "name", name, "type", string(header.Typeflag))

			continue
		}

		if err != nil {
			return result, fmt.Errorf("%w: %s: %w", ErrExtraction, name, err)
		}

		if header.Typeflag != tar.TypeDir {
			result.Files = append(result.Files, name)
		}
	}
}

func writeFile(ctx context.Context, dest, target string, r io.Reader, perm fs.FileMode) error {
	if err := prepareParent(dest, target); err != nil {
		return err
	}

	return fsutil.WriteReaderAtomic(ctx, target, r, perm)
}

// prepareParent creates the parent of target and checks that, with symlinks
// resolved, it is still inside dest.
func prepareParent(dest, target string) error {
	parent := filepath.Dir(target)
	if err := os.MkdirAll(parent, dirPermissions); err != nil {
		return err
	}

	realDest, err := filepath.EvalSymlinks(dest)
	if err != nil {
		return err
	}

	realParent, err := filepath.EvalSymlinks(parent)
	if err != nil {
		return err
	}

	if _, err = safeJoin(realDest, relOrSelf(realDest, realParent)); err != nil {
		return err
	}

	return nil
}

func relOrSelf(base, target string) string {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return target
	}

	return filepath.ToSlash(rel)
}

// writeSymlink creates the link under a temporary name and renames it over target.
func writeSymlink(dest, linkname, target string) error {
	if err := prepareParent(dest, target); err != nil {
		return err
	}

	return fsutil.SymlinkAtomic(linkname, target)
}

// cleanName normalises a tar entry name; "" means skip.
func cleanName(name string) string {
	name = strings.TrimPrefix(filepath.ToSlash(name), "./")
	name = strings.TrimSuffix(filepath.ToSlash(filepath.Clean(name)), "/")

	if name == "." || name == "" {
		return ""
	}

	return name
}

// safeJoin joins name onto dest and refuses anything that leaves dest.
func safeJoin(dest, name string) (string, error) {
	if filepath.IsAbs(name) || name == ".." || strings.HasPrefix(name, "../") {
		return "", errUnsafePath
	}

	target := filepath.Join(dest, filepath.FromSlash(name))

	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errUnsafePath
	}

	return target, nil
}
