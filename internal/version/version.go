package version

import "fmt"

// productName prefixes the User-Agent sent with downloads.
const productName = "steam-launcher"

//nolint:gochecknoglobals // Overridden via -ldflags.
var (
	// Version is the launcher build version.
	Version = "0.1.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns only the version string.
func Short() string {
	return Version
}

// Full returns the version with commit and build time.
func Full() string {
	return fmt.Sprintf("version: %s, commit: %s, built at: %s", Version, Commit, BuildTime)
}

// UserAgent identifies the launcher to download servers.
func UserAgent() string {
	return productName + "/" + Version
}
