package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/steam-launcher/internal/config"
	"github.com/oshokin/steam-launcher/internal/service/packager"
	"github.com/oshokin/steam-launcher/internal/version"
)

var (
	// releaseVersion is the tag recorded in the descriptor.
	releaseVersion string
	// releaseURL is the archive location template.
	releaseURL string
	// outputPath is where the descriptor is written.
	outputPath string

	// rootCmd represents the base command for preparing a release descriptor.
	rootCmd = &cobra.Command{
		Use:   "steam-release [archive]",
		Short: "Prepare the release descriptor embedded into steam-launcher",
		Long: `Computes the SHA-256 digest of a client archive and writes the release descriptor.

The archive must contain the launcher assets (the bootstrap bundle, icons and the
application entry). Copy the produced file to internal/config/release.yaml and
rebuild steam-launcher to ship the new release.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &packager.Options{
				ArchivePath: args[0],
				Version:     releaseVersion,
				URL:         releaseURL,
				OutputPath:  outputPath,
			}

			return packager.Run(ctx, options)
		},
	}
)

// Execute runs the steam-release CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&releaseVersion, "release", "r", "", "release tag recorded in the version marker")
	rootCmd.Flags().StringVarP(&releaseURL, "url", "u", packager.DefaultURL, "archive URL template, {{.Version}} expands to the tag")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", config.DefaultReleaseFilename, "path of the descriptor to write")

	if err := rootCmd.MarkFlagRequired("release"); err != nil {
		panic(err)
	}
}
