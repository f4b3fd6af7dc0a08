package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/steam-launcher/internal/config"
	"github.com/oshokin/steam-launcher/internal/domain/install"
	"github.com/oshokin/steam-launcher/internal/fsutil"
	"github.com/oshokin/steam-launcher/internal/logger"
	"github.com/oshokin/steam-launcher/internal/repository/marker"
	"github.com/oshokin/steam-launcher/internal/service/archive"
	"github.com/oshokin/steam-launcher/internal/service/common"
	"github.com/oshokin/steam-launcher/internal/service/desktop"
	"github.com/oshokin/steam-launcher/internal/service/fetch"
	"github.com/oshokin/steam-launcher/internal/service/launcher"
	"github.com/oshokin/steam-launcher/internal/service/paths"
)

// BootstrapBundle is the bootstrap bundle inside the launcher assets.
const BootstrapBundle = "bootstraplinux_ubuntu12_32.tar.xz"

var (
	errEnvironmentRequired = errors.New("environment is not set")
	errReleaseRequired     = errors.New("release is not set")
	errDispatcherRequired  = errors.New("dispatcher is not set")
	errMissingAfterInstall = errors.New("required executables missing after extraction")
	errNotLaunchable       = errors.New("installation is not launchable")
)

// Options are inputs accepted by the installer entry point.
type Options struct {
	// Environment supplies the home, data and locale settings.
	Environment *config.Environment
	// Release is the only source of the expected version, URL and digest.
	Release *config.Release
	// Settings tune downloads; nil means defaults.
	Settings *config.Settings
	// Dispatcher starts the client once the installation is current.
	Dispatcher launcher.Dispatcher
	// WrapperPath is written into the desktop entry. Empty means the running executable.
	WrapperPath string
	// Args are passed to the client unchanged.
	Args []string
	// Environ is the environment handed to the client. Nil means os.Environ().
	Environ []string
	// FetchOptions are applied after the defaults derived from Settings.
	FetchOptions []fetch.Option
}

// Result describes what an invocation did before dispatching.
type Result struct {
	// Layout is the resolved directory layout.
	Layout *paths.Layout
	// State is the final state of the installation state machine.
	State install.State
	// Reason explains why an installation was attempted.
	Reason install.Reason
	// Stale is set when a failed download fell back to the previous installation.
	Stale bool
}

// runner holds the inputs and helpers for a single invocation.
type runner struct {
	opts       *Options
	settings   *config.Settings
	repository marker.Repository
	layout     *paths.Layout
}

// Run brings the installation up to date and starts the client.
// With a real dispatcher a successful Run does not return.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "installer")

	result, err := Ensure(ctx, opts)
	if err != nil {
		return err
	}

	if !result.State.Launchable() && !result.Stale {
		return fmt.Errorf("%s: %w", result.State, errNotLaunchable)
	}

	environ := opts.Environ
	if environ == nil {
		environ = os.Environ()
	}

	return launcher.Launch(ctx, opts.Dispatcher, result.Layout.EntryScript(), opts.Args,
		launcher.ChildEnvironment(environ, opts.Environment))
}

// Ensure converges the installation without launching it.
func Ensure(ctx context.Context, opts *Options) (*Result, error) {
	r, err := newRunner(opts)
	if err != nil {
		return nil, err
	}

	if err = launcher.CheckPlatform(); err != nil {
		return nil, err
	}

	r.layout, err = paths.Resolve(ctx, opts.Environment.Home, opts.Environment.DataHome)
	if err != nil {
		return nil, err
	}

	r.repository = marker.NewFileRepository(r.layout.InInstallDir(marker.Filename))

	return r.run(ctx)
}

func newRunner(opts *Options) (*runner, error) {
	switch {
	case opts == nil || opts.Environment == nil:
		return nil, errEnvironmentRequired
	case opts.Release == nil:
		return nil, errReleaseRequired
	case opts.Dispatcher == nil:
		return nil, errDispatcherRequired
	}

	if err := config.ValidateRelease(opts.Release); err != nil {
		return nil, err
	}

	settings := opts.Settings
	if settings == nil {
		settings = config.DefaultSettings()
	}

	return &runner{
		opts:     opts,
		settings: settings,
	}, nil
}

func (r *runner) run(ctx context.Context) (*Result, error) {
	observation := observe(ctx, r.layout, r.repository)
	decision := install.Decide(observation, r.opts.Release.Version)
	machine := install.NewMachine(decision)

	result := &Result{
		Layout: r.layout,
		State:  machine.State(),
		Reason: machine.Reason(),
	}

	if machine.State() == install.UpToDate {
		logger.InfoKV(ctx, "Installation is up to date", "version", observation.InstalledVersion)

		return result, nil
	}

	logger.InfoKV(ctx, "Installation required",
		"state", machine.State(),
		"reason", machine.Reason(),
		"installed", observation.InstalledVersion,
		"expected", r.opts.Release.Version,
		"missing", observation.MissingArtifacts)

	r.reportOtherInstances(ctx)

	if err := machine.Transition(install.Installing); err != nil {
		return result, err
	}

	installErr := r.install(ctx, observation)
	if installErr != nil {
		if err := machine.Transition(install.Failed); err != nil {
			return result, errors.Join(installErr, err)
		}

		result.State = machine.State()

		if fetch.IsFetchFailure(installErr) && observation.Complete() {
			logger.WarnKV(ctx, "Download failed, starting the previous installation", "error", installErr)

			result.Stale = true

			return result, nil
		}

		return result, installErr
	}

	if err := machine.Transition(install.Installed); err != nil {
		return result, err
	}

	result.State = machine.State()

	logger.InfoKV(ctx, "Installation complete", "version", r.opts.Release.Version, "reason", machine.Reason())

	return result, nil
}

// install fetches, verifies and extracts the release, then records its version.
func (r *runner) install(ctx context.Context, observation install.Observation) error {
	url, err := r.opts.Release.ArchiveURL()
	if err != nil {
		return err
	}

	archivePath, err := r.newFetcher().FetchAndVerify(ctx, url, r.opts.Release.SHA256)
	if err != nil {
		return err
	}

	defer func() {
		if removeErr := fsutil.RemoveIfExists(archivePath); removeErr != nil {
			logger.WarnKV(ctx, "Unable to remove downloaded archive", "path", archivePath, "error", removeErr)
		}
	}()

	result, err := archive.ExtractTarGz(ctx, archivePath, r.layout.InstallDir, archive.Entries(LauncherEntries()...))
	if err != nil {
		return err
	}

	logger.DebugKV(ctx, "Launcher assets extracted", "files", len(result.Files))

	bootstrap := filepath.Join(r.layout.LauncherAssets(), BootstrapBundle)
	if _, err = os.Stat(bootstrap); err != nil {
		return fmt.Errorf("%w: %s: %w", archive.ErrExtraction, BootstrapBundle, err)
	}

	if !observation.Complete() {
		logger.InfoKV(ctx, "Extracting bootstrap bundle", "destination", r.layout.InstallDir)

		if result, err = archive.ExtractTarXz(ctx, bootstrap, r.layout.InstallDir); err != nil {
			return err
		}

		logger.DebugKV(ctx, "Bootstrap bundle extracted", "files", len(result.Files))
	}

	if err = relocate(ctx, bootstrap, r.layout.BootstrapArchive()); err != nil {
		return fmt.Errorf("%w: %w", archive.ErrExtraction, err)
	}

	if err = desktop.Install(ctx, r.layout, r.wrapperPath(ctx)); err != nil {
		logger.WarnKV(ctx, "Desktop integration incomplete", "error", err)
	}

	if missing := missingExecutables(r.layout, paths.RequiredExecutables()); len(missing) > 0 {
		return fmt.Errorf("%w: %w: %s", archive.ErrExtraction, errMissingAfterInstall, strings.Join(missing, ", "))
	}

	return r.repository.Save(ctx, r.opts.Release.Version)
}

// LauncherEntries are the archive entries extracted on every installation.
func LauncherEntries() []string {
	return []string{
		paths.LauncherAssetsDir + "/" + BootstrapBundle,
		paths.LauncherAssetsDir + "/icons/",
		paths.LauncherAssetsDir + "/" + desktop.EntryName,
	}
}

func (r *runner) newFetcher() *fetch.Fetcher {
	opts := []fetch.Option{
		fetch.WithTimeout(r.settings.FetchTimeout),
		fetch.WithRetries(r.settings.FetchRetries),
		fetch.WithDownloadDir(r.layout.InstallDir),
	}

	return fetch.New(append(opts, r.opts.FetchOptions...)...)
}

func (r *runner) wrapperPath(ctx context.Context) string {
	if r.opts.WrapperPath != "" {
		return r.opts.WrapperPath
	}

	path, err := common.ExecutablePath()
	if err != nil {
		logger.WarnKV(ctx, "Unable to locate the launcher executable", "error", err)

		return "steam"
	}

	return path
}

// reportOtherInstances logs launchers running at the same time. They are not waited for.
func (r *runner) reportOtherInstances(ctx context.Context) {
	name := filepath.Base(r.wrapperPath(ctx))

	pids, err := common.OtherInstances(name)
	if err != nil {
		logger.DebugKV(ctx, "Unable to list processes", "error", err)

		return
	}

	if len(pids) > 0 {
		logger.InfoKV(ctx, "Other launcher instances are running", "name", name, "pids", pids)
	}
}
