package config

import (
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Release describes one published client archive.
type Release struct {
	// Version is the tag recorded in the version marker after a successful install.
	Version string `yaml:"version"`
	// URL is a text/template for the archive location; {{.Version}} expands to Version.
	URL string `yaml:"url"`
	// SHA256 is the hex digest the downloaded archive must match.
	SHA256 string `yaml:"sha256"`
}

// DefaultReleaseFilename is where steam-release writes a descriptor by default.
const DefaultReleaseFilename = "release.yaml"

//go:embed release.yaml
var embeddedRelease []byte

var (
	errReleaseIsNotSet   = errors.New("release is not set")
	errVersionRequired   = errors.New("release version must be provided")
	errURLRequired       = errors.New("release url must be provided")
	errInvalidDigest     = errors.New("release sha256 must be 64 hex characters")
	errUnsupportedScheme = errors.New("release url must use https or http")
)

// DefaultRelease returns the release embedded into the binary.
func DefaultRelease() (*Release, error) {
	return parseRelease(embeddedRelease)
}

// LoadRelease reads a release descriptor from path.
func LoadRelease(path string) (*Release, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read release: %w", err)
	}

	return parseRelease(contents)
}

// SaveRelease validates and writes a release descriptor to path.
func SaveRelease(path string, release *Release) error {
	if release == nil {
		return errReleaseIsNotSet
	}

	if path == "" {
		path = DefaultReleaseFilename
	}

	if err := ValidateRelease(release); err != nil {
		return err
	}

	data, err := yaml.Marshal(release)
	if err != nil {
		return fmt.Errorf("marshal release: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write release: %w", err)
	}

	return nil
}

// ValidateRelease checks that every field is present and well formed.
// The digest is normalised to lower case.
func ValidateRelease(release *Release) error {
	release.Version = strings.TrimSpace(release.Version)
	if release.Version == "" {
		return errVersionRequired
	}

	if strings.TrimSpace(release.URL) == "" {
		return errURLRequired
	}

	release.SHA256 = strings.ToLower(strings.TrimSpace(release.SHA256))
	if decoded, err := hex.DecodeString(release.SHA256); err != nil || len(decoded) != digestSize {
		return errInvalidDigest
	}

	archiveURL, err := release.ArchiveURL()
	if err != nil {
		return err
	}

	parsed, err := url.ParseRequestURI(archiveURL)
	if err != nil {
		return fmt.Errorf("invalid release url: %w", err)
	}

	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return fmt.Errorf("%s: %w", parsed.Scheme, errUnsupportedScheme)
	}

	return nil
}

// ArchiveURL expands the URL template for this release.
func (r *Release) ArchiveURL() (string, error) {
	tmpl, err := template.New("url").Option("missingkey=error").Parse(r.URL)
	if err != nil {
		return "", fmt.Errorf("parse release url: %w", err)
	}

	var sb strings.Builder
	if err = tmpl.Execute(&sb, r); err != nil {
		return "", fmt.Errorf("expand release url: %w", err)
	}

	return sb.String(), nil
}

func parseRelease(contents []byte) (*Release, error) {
	var release Release
	if err := yaml.Unmarshal(contents, &release); err != nil {
		return nil, fmt.Errorf("unmarshal release: %w", err)
	}

	if err := ValidateRelease(&release); err != nil {
		return nil, err
	}

	return &release, nil
}
