package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds user-tunable behaviour. None of it changes what gets installed.
type Settings struct {
	// FetchTimeout bounds a single download attempt.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	// FetchRetries is how many times a transient download failure is retried.
	FetchRetries uint64 `yaml:"fetch_retries"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// LogFile is a file that receives a copy of the diagnostics.
	// Relative paths are resolved against the control directory.
	LogFile string `yaml:"log_file"`
}

const (
	// DefaultSettingsFilename is the settings file name under the config directory.
	DefaultSettingsFilename = "settings.yaml"

	// DefaultFetchTimeout is the per-attempt download timeout.
	DefaultFetchTimeout = 2 * time.Minute

	// DefaultFetchRetries is the number of retries after a transient download failure.
	DefaultFetchRetries = 2

	// DefaultLogLevel is used when nothing else is configured.
	DefaultLogLevel = "info"

	// DefaultLogFile lives in the control directory.
	DefaultLogFile = "steam-launcher.log"

	// DefaultFilePermissions is the default file permission for files written by the launcher.
	DefaultFilePermissions = 0o644

	// maxFetchRetries caps retries so a broken mirror cannot stall a launch for long.
	maxFetchRetries = 10

	// digestSize is the length of a SHA-256 digest in bytes.
	digestSize = 32
)

var (
	errSettingsIsNotSet = errors.New("settings are not set")
	errTooManyRetries   = errors.New("fetch_retries is too large")
)

// DefaultSettings returns settings with every field at its default.
func DefaultSettings() *Settings {
	return &Settings{
		FetchTimeout: DefaultFetchTimeout,
		FetchRetries: DefaultFetchRetries,
		LogLevel:     DefaultLogLevel,
		LogFile:      DefaultLogFile,
	}
}

// LoadSettings reads settings from path. A missing file yields defaults.
func LoadSettings(path string) (*Settings, error) {
	settings := DefaultSettings()
	if path == "" {
		return settings, nil
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err = yaml.Unmarshal(contents, settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// Save writes settings to path.
func Save(path string, settings *Settings) error {
	if settings == nil {
		return errSettingsIsNotSet
	}

	if err := Validate(settings); err != nil {
		return err
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills in defaults and rejects out-of-range values.
func Validate(settings *Settings) error {
	if settings.FetchTimeout <= 0 {
		settings.FetchTimeout = DefaultFetchTimeout
	}

	if settings.FetchRetries > maxFetchRetries {
		return fmt.Errorf("%d: %w", settings.FetchRetries, errTooManyRetries)
	}

	if settings.LogLevel == "" {
		settings.LogLevel = DefaultLogLevel
	}

	return nil
}
