package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/steam-launcher/internal/config"
	"github.com/oshokin/steam-launcher/internal/logger"
	"github.com/oshokin/steam-launcher/internal/service/archive"
	"github.com/oshokin/steam-launcher/internal/service/fetch"
	"github.com/oshokin/steam-launcher/internal/service/installer"
)

// DefaultURL is the archive location template of the published client.
const DefaultURL = "https://repo.steampowered.com/steam/archive/stable/steam_{{.Version}}.tar.gz"

// Options contains inputs for the packager entry point.
type Options struct {
	// ArchivePath is the local copy of the client archive.
	ArchivePath string
	// Version is the release tag.
	Version string
	// URL is the archive location template; empty means DefaultURL.
	URL string
	// OutputPath receives the descriptor; empty means config.DefaultReleaseFilename.
	OutputPath string
}

var (
	errArchiveRequired = errors.New("archive path must be provided")
	errMissingAssets   = errors.New("archive lacks launcher assets")
)

// Run writes the release descriptor for opts.ArchivePath.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "steam-release")

	if opts == nil || opts.ArchivePath == "" {
		return errArchiveRequired
	}

	release := &config.Release{
		Version: strings.TrimSpace(opts.Version),
		URL:     opts.URL,
	}

	if release.URL == "" {
		release.URL = DefaultURL
	}

	if err := checkAssets(ctx, opts.ArchivePath); err != nil {
		return err
	}

	digest, err := fetch.FileDigest(opts.ArchivePath)
	if err != nil {
		return fmt.Errorf("digest %s: %w", opts.ArchivePath, err)
	}

	release.SHA256 = digest

	output := opts.OutputPath
	if output == "" {
		output = config.DefaultReleaseFilename
	}

	if err = config.SaveRelease(output, release); err != nil {
		return fmt.Errorf("save release: %w", err)
	}

	url, err := release.ArchiveURL()
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Release descriptor written",
		"path", output,
		"version", release.Version,
		"url", url,
		"sha256", release.SHA256)
	logger.Infof(ctx, "Copy %s to internal/config/release.yaml and upload the archive to %s", output, url)

	return nil
}

// checkAssets extracts the launcher entries into a scratch directory and
// fails when the bootstrap bundle is not among them.
func checkAssets(ctx context.Context, archivePath string) error {
	scratch, err := os.MkdirTemp("", "steam-release-*")
	if err != nil {
		return err
	}

	defer func() {
		_ = os.RemoveAll(scratch)
	}()

	result, err := archive.ExtractTarGz(ctx, archivePath, scratch, archive.Entries(installer.LauncherEntries()...))
	if err != nil {
		return err
	}

	bootstrap := filepath.ToSlash(filepath.Join("steam-launcher", installer.BootstrapBundle))
	for _, name := range result.Files {
		if name == bootstrap {
			logger.DebugKV(ctx, "Launcher assets found", "files", len(result.Files))

			return nil
		}
	}

	return fmt.Errorf("%s: %w: %s", archivePath, errMissingAssets, bootstrap)
}
