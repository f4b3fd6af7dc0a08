package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/steam-launcher/internal/config"
	"github.com/oshokin/steam-launcher/internal/domain/install"
	"github.com/oshokin/steam-launcher/internal/repository/marker"
	"github.com/oshokin/steam-launcher/internal/service/desktop"
	"github.com/oshokin/steam-launcher/internal/service/fetch"
	"github.com/oshokin/steam-launcher/internal/service/installer"
	"github.com/oshokin/steam-launcher/internal/service/paths"
)

func options(environment *config.Environment, release *config.Release, dispatcher *recordingDispatcher) *installer.Options {
	return &installer.Options{
		Environment: environment,
		Release:     release,
		Settings: &config.Settings{
			FetchTimeout: 10 * time.Second,
			LogLevel:     config.DefaultLogLevel,
		},
		Dispatcher:   dispatcher,
		WrapperPath:  "/usr/local/bin/steam-launcher",
		Args:         []string{"steam://open/games"},
		Environ:      []string{"HOME=" + environment.Home},
		FetchOptions: []fetch.Option{fetch.WithRetryInterval(time.Millisecond)},
	}
}

func readMarker(t *testing.T, layout *paths.Layout) string {
	t.Helper()

	content, err := os.ReadFile(layout.InInstallDir(marker.Filename))
	require.NoError(t, err)

	return string(content)
}

// TestInstaller_FreshHome installs into an empty home, launches, and skips the
// download on the next run.
//
//nolint:funlen // Scenario test checks the whole resulting tree.
func TestInstaller_FreshHome(t *testing.T) {
	t.Parallel()

	body := releaseArchive(t)
	server, hits := archiveServer(t, body)
	environment := newEnvironment(t)
	dispatcher := new(recordingDispatcher)
	opts := options(environment, newRelease(server.URL, strings.ToUpper(digest(body))), dispatcher)

	require.NoError(t, installer.Run(context.Background(), opts))
	require.Equal(t, int32(1), hits.Load())
	require.Equal(t, int32(1), dispatcher.calls.Load())

	layout, err := paths.Resolve(context.Background(), environment.Home, environment.DataHome)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(environment.Home, ".steam", "debian-installation"), layout.InstallDir)

	require.Equal(t, releaseVersion+"\n", readMarker(t, layout))
	require.Equal(t, layout.EntryScript(), dispatcher.entry.Load())

	environ, ok := dispatcher.environ.Load().([]string)
	require.True(t, ok)
	require.Contains(t, environ, "LANG=C.UTF-8")

	for _, name := range paths.RequiredExecutables() {
		info, statErr := os.Stat(layout.InInstallDir(name))
		require.NoError(t, statErr)
		require.NotZero(t, info.Mode().Perm()&0o111, name)
	}

	require.FileExists(t, layout.BootstrapArchive())
	require.NoFileExists(t, layout.InInstallDir("steam-launcher", "Makefile"))
	require.Empty(t, partialDownloads(t, layout.InstallDir))

	for _, link := range []string{layout.SteamLink(), layout.RootLink()} {
		target, linkErr := os.Readlink(link)
		require.NoError(t, linkErr)
		require.Equal(t, layout.InstallDir, target)
	}

	for _, size := range desktop.IconSizes() {
		_, linkErr := os.Readlink(desktop.IconPath(layout.DataHome, size))
		require.NoError(t, linkErr)
	}

	entry, err := os.ReadFile(desktop.EntryPath(layout.DataHome))
	require.NoError(t, err)
	require.Contains(t, string(entry), "Exec=/usr/local/bin/steam-launcher %U")

	// Second run: nothing to do but launch.
	require.NoError(t, installer.Run(context.Background(), opts))
	require.Equal(t, int32(1), hits.Load())
	require.Equal(t, int32(2), dispatcher.calls.Load())
}

// TestInstaller_MissingEntryScript reinstalls when the marker matches but steam.sh is gone.
func TestInstaller_MissingEntryScript(t *testing.T) {
	t.Parallel()

	body := releaseArchive(t)
	server, hits := archiveServer(t, body)
	environment := newEnvironment(t)
	opts := options(environment, newRelease(server.URL, digest(body)), new(recordingDispatcher))

	first, err := installer.Ensure(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, install.Installed, first.State)
	require.Equal(t, install.ReasonFreshInstall, first.Reason)

	require.NoError(t, os.Remove(first.Layout.EntryScript()))

	second, err := installer.Ensure(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, install.Installed, second.State)
	require.Equal(t, install.ReasonRepair, second.Reason)
	require.Equal(t, int32(2), hits.Load())
	require.FileExists(t, second.Layout.EntryScript())
	require.Equal(t, releaseVersion+"\n", readMarker(t, second.Layout))
}

// TestInstaller_CorruptedDigest refuses the archive and leaves no marker or download behind.
func TestInstaller_CorruptedDigest(t *testing.T) {
	t.Parallel()

	body := releaseArchive(t)
	server, _ := archiveServer(t, body)
	environment := newEnvironment(t)
	dispatcher := new(recordingDispatcher)
	opts := options(environment, newRelease(server.URL, digest([]byte("something else"))), dispatcher)

	err := installer.Run(context.Background(), opts)
	require.ErrorIs(t, err, fetch.ErrVerificationFailed)
	require.Zero(t, dispatcher.calls.Load())

	layout, err := paths.Resolve(context.Background(), environment.Home, environment.DataHome)
	require.NoError(t, err)
	require.NoFileExists(t, layout.InInstallDir(marker.Filename))
	require.Empty(t, partialDownloads(t, layout.InstallDir))
	require.NoFileExists(t, layout.EntryScript())
}

// TestInstaller_Upgrade replaces an older marker once the archive is verified.
func TestInstaller_Upgrade(t *testing.T) {
	t.Parallel()

	body := releaseArchive(t)
	server, _ := archiveServer(t, body)
	environment := newEnvironment(t)
	opts := options(environment, newRelease(server.URL, digest(body)), new(recordingDispatcher))

	first, err := installer.Ensure(context.Background(), opts)
	require.NoError(t, err)

	repository := marker.NewFileRepository(first.Layout.InInstallDir(marker.Filename))
	require.NoError(t, repository.Save(context.Background(), "1.0.0.70"))

	second, err := installer.Ensure(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, install.ReasonUpgrade, second.Reason)
	require.Equal(t, releaseVersion+"\n", readMarker(t, second.Layout))
}

// TestInstaller_Concurrent runs two installations at once; both succeed and the tree converges.
func TestInstaller_Concurrent(t *testing.T) {
	t.Parallel()

	body := releaseArchive(t)
	server, _ := archiveServer(t, body)
	environment := newEnvironment(t)
	release := newRelease(server.URL, digest(body))

	const runs = 2

	var (
		wg      sync.WaitGroup
		errs    = make([]error, runs)
		results = make([]*installer.Result, runs)
	)

	for i := 0; i < runs; i++ {
		i := i
		wg.Add(1)

		go func() {
			defer wg.Done()

			results[i], errs[i] = installer.Ensure(context.Background(), options(environment, release, new(recordingDispatcher)))
		}()
	}

	wg.Wait()

	for i := 0; i < runs; i++ {
		require.NoError(t, errs[i])
		require.True(t, results[i].State.Launchable())
	}

	layout := results[0].Layout
	require.Equal(t, releaseVersion+"\n", readMarker(t, layout))
	require.Empty(t, partialDownloads(t, layout.InstallDir))

	leftovers, err := filepath.Glob(filepath.Join(layout.InstallDir, "."+marker.Filename+".*"))
	require.NoError(t, err)
	require.Empty(t, leftovers)

	third, err := installer.Ensure(context.Background(), options(environment, release, new(recordingDispatcher)))
	require.NoError(t, err)
	require.Equal(t, install.UpToDate, third.State)
}
