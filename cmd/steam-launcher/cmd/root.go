package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/steam-launcher/internal/config"
	"github.com/oshokin/steam-launcher/internal/logger"
	"github.com/oshokin/steam-launcher/internal/service/installer"
	"github.com/oshokin/steam-launcher/internal/service/launcher"
	"github.com/oshokin/steam-launcher/internal/service/paths"
	"github.com/oshokin/steam-launcher/internal/version"
)

// rootCmd installs or updates the client and starts it. Every argument,
// flags included, belongs to the client.
//
//nolint:gochecknoglobals // Required by Cobra CLI framework architecture.
var rootCmd = &cobra.Command{
	Use:   "steam [client arguments...]",
	Short: "Install, update and start the Steam client for the current user.",
	Long: `Keeps a per-user Steam client installation in ~/.steam in sync with the release
this launcher was built for, then replaces itself with the client.

The release archive is downloaded only when the installation is missing, outdated
or damaged, and is used only after its SHA-256 digest matches. All arguments are
passed to the client unchanged.`,
	Args:               cobra.ArbitraryArgs,
	DisableFlagParsing: true,
	SilenceUsage:       true,
	SilenceErrors:      true,
	RunE: func(_ *cobra.Command, args []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		return run(ctx, args)
	},
}

// Execute runs the launcher and exits with status 1 on any failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.ErrorKV(context.Background(), "Unable to start the client", "error", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	environment, err := config.ParseEnvironment(nil)
	if err != nil {
		return err
	}

	settings, err := config.LoadSettings(environment.SettingsFile())
	if err != nil {
		logger.WarnKV(ctx, "Ignoring unreadable settings", "path", environment.SettingsFile(), "error", err)

		settings = config.DefaultSettings()
	}

	applyLogLevel(ctx, settings.LogLevel, environment.LogLevel)

	if closeLog := attachLogFile(ctx, environment, settings); closeLog != nil {
		defer func() {
			_ = closeLog()
		}()
	}

	// Named after the file sink is attached so the context logger writes there too.
	ctx = logger.WithName(ctx, "steam-launcher")

	release, err := config.DefaultRelease()
	if err != nil {
		return err
	}

	logger.DebugKV(ctx, "Starting", "launcher", version.Full(), "release", release.Version)

	options := &installer.Options{
		Environment: environment,
		Release:     release,
		Settings:    settings,
		Dispatcher:  launcher.ExecDispatcher{},
		Args:        args,
	}

	return installer.Run(ctx, options)
}

// applyLogLevel uses the environment override when set, else the settings value.
func applyLogLevel(ctx context.Context, fromSettings, fromEnvironment string) {
	value := fromSettings
	if fromEnvironment != "" {
		value = fromEnvironment
	}

	level, ok := logger.ParseLogLevel(value)
	if !ok {
		logger.WarnKV(ctx, "Unknown log level, using info", "level", value)
	}

	logger.SetLevel(level)
}

// attachLogFile tees diagnostics into the configured file. Failure only disables the file.
func attachLogFile(ctx context.Context, environment *config.Environment, settings *config.Settings) func() error {
	if settings.LogFile == "" {
		return nil
	}

	path := settings.LogFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(environment.Home, paths.ControlDirName, path)
	}

	closeLog, err := logger.AttachFile(path)
	if err != nil {
		logger.WarnKV(ctx, "Unable to open log file", "path", path, "error", err)

		return nil
	}

	return closeLog
}
