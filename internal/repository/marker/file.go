package marker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/steam-launcher/internal/config"
	"github.com/oshokin/steam-launcher/internal/fsutil"
)

// Repository reads and writes the version marker.
type Repository interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, version string) error
}

// FileRepository keeps the marker in a file on disk.
type FileRepository struct {
	// path is the filesystem location of the marker.
	path string
}

var (
	// ErrNotFound is returned when the marker does not exist yet.
	ErrNotFound = errors.New("version marker not found")
	// errEmptyVersion is returned when saving an empty version.
	errEmptyVersion = errors.New("version must not be empty")
)

// Filename is the marker name inside the installation directory.
const Filename = ".steam_installer_version"

// NewFileRepository creates a repository for the marker at path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Path returns the marker location.
func (r *FileRepository) Path() string {
	return r.path
}

// Load returns the recorded version.
func (r *FileRepository) Load(_ context.Context) (string, error) {
	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}

		return "", fmt.Errorf("read version marker: %w", err)
	}

	return strings.TrimSpace(string(contents)), nil
}

// Save replaces the marker with version.
func (r *FileRepository) Save(ctx context.Context, version string) error {
	version = strings.TrimSpace(version)
	if version == "" {
		return errEmptyVersion
	}

	if err := fsutil.WriteFileAtomic(ctx, r.path, []byte(version+"\n"), config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write version marker: %w", err)
	}

	return nil
}
