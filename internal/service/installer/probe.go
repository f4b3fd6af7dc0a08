package installer

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sys/unix"

	"github.com/oshokin/steam-launcher/internal/domain/install"
	"github.com/oshokin/steam-launcher/internal/logger"
	"github.com/oshokin/steam-launcher/internal/repository/marker"
	"github.com/oshokin/steam-launcher/internal/service/paths"
)

// observe reads the marker and probes the required executables of layout.
func observe(ctx context.Context, layout *paths.Layout, repository marker.Repository) install.Observation {
	installed, err := repository.Load(ctx)
	if err != nil && !errors.Is(err, marker.ErrNotFound) {
		logger.WarnKV(ctx, "Unable to read version marker, treating it as absent", "error", err)
	}

	required := paths.RequiredExecutables()

	return install.Observation{
		InstalledVersion: installed,
		MissingArtifacts: missingExecutables(layout, required),
		TotalArtifacts:   len(required),
	}
}

// missingExecutables returns the entries of required that are not executable regular files.
func missingExecutables(layout *paths.Layout, required []string) []string {
	var missing []string

	for _, name := range required {
		if !isExecutable(layout.InInstallDir(name)) {
			missing = append(missing, name)
		}
	}

	return missing
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}

	return unix.Access(path, unix.X_OK) == nil
}
