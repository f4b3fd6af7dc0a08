package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// DefaultLocale is exported to the launched client when no locale is set.
const DefaultLocale = "C.UTF-8"

// Environment is the part of the process environment the launcher consumes.
type Environment struct {
	// Home is the user's home directory.
	Home string `env:"HOME"`
	// DataHome overrides $HOME/.local/share.
	DataHome string `env:"XDG_DATA_HOME"`
	// ConfigHome overrides $HOME/.config.
	ConfigHome string `env:"XDG_CONFIG_HOME"`
	// Lang and LCAll decide whether a locale has to be forced.
	Lang  string `env:"LANG"`
	LCAll string `env:"LC_ALL"`
	// SettingsPath points at a settings file outside the config directory.
	SettingsPath string `env:"STEAM_LAUNCHER_SETTINGS"`
	// LogLevel wins over the level from the settings file.
	LogLevel string `env:"STEAM_LAUNCHER_LOG_LEVEL"`
}

var errHomeRequired = errors.New("HOME is not set")

// ParseEnvironment reads Environment from a map shaped like os.Environ.
// A nil map reads the real process environment.
func ParseEnvironment(environ map[string]string) (*Environment, error) {
	var (
		result Environment
		opts   env.Options
	)

	if environ != nil {
		opts.Environment = environ
	}

	if err := env.ParseWithOptions(&result, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if result.Home == "" {
		return nil, errHomeRequired
	}

	// XDG paths must be absolute; relative ones are ignored.
	if result.DataHome == "" || !filepath.IsAbs(result.DataHome) {
		result.DataHome = filepath.Join(result.Home, ".local", "share")
	}

	if result.ConfigHome == "" || !filepath.IsAbs(result.ConfigHome) {
		result.ConfigHome = filepath.Join(result.Home, ".config")
	}

	return &result, nil
}

// SettingsFile returns the settings file location.
func (e *Environment) SettingsFile() string {
	if e.SettingsPath != "" {
		return e.SettingsPath
	}

	return filepath.Join(e.ConfigHome, "steam-launcher", DefaultSettingsFilename)
}

// NeedsLocale reports whether no locale is configured at all.
func (e *Environment) NeedsLocale() bool {
	return e.Lang == "" && e.LCAll == ""
}
