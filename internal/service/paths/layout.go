package paths

import (
	"path/filepath"
)

const (
	// ControlDirName is the control directory under the home directory.
	ControlDirName = ".steam"
	// SteamLinkName and RootLinkName are the links inside the control directory.
	SteamLinkName = "steam"
	RootLinkName  = "root"
	// FreshInstallDirName is where new installations go, inside the control directory.
	FreshInstallDirName = "debian-installation"
	// EntryScript is the client's own launch script, relative to the installation directory.
	EntryScript = "steam.sh"
	// ClientBinary is the bundled client executable, relative to the installation directory.
	ClientBinary = "ubuntu12_32/steam"
	// BootstrapArchive is the fixed name the bootstrap bundle is relocated to.
	BootstrapArchive = "bootstrap.tar.xz"
	// LauncherAssetsDir holds the files extracted from the downloaded archive.
	LauncherAssetsDir = "steam-launcher"
)

// RequiredExecutables returns the artifacts, relative to the installation
// directory, that must be present and executable for an installation to be current.
func RequiredExecutables() []string {
	return []string{
		EntryScript,
		ClientBinary,
	}
}

// Layout is the resolved path context handed to every component.
type Layout struct {
	// Home is the user's home directory.
	Home string
	// DataHome is the XDG data directory receiving desktop integration.
	DataHome string
	// ControlDir is ~/.steam.
	ControlDir string
	// InstallDir is the real installation root.
	InstallDir string
}

// SteamLink returns the path of the "steam" link.
func (l *Layout) SteamLink() string {
	return filepath.Join(l.ControlDir, SteamLinkName)
}

// RootLink returns the path of the "root" link.
func (l *Layout) RootLink() string {
	return filepath.Join(l.ControlDir, RootLinkName)
}

// InInstallDir joins parts onto the installation directory.
func (l *Layout) InInstallDir(parts ...string) string {
	return filepath.Join(append([]string{l.InstallDir}, parts...)...)
}

// EntryScript returns the absolute path of the client's launch script.
func (l *Layout) EntryScript() string {
	return l.InInstallDir(EntryScript)
}

// BootstrapArchive returns the relocated bootstrap bundle path.
func (l *Layout) BootstrapArchive() string {
	return l.InInstallDir(BootstrapArchive)
}

// LauncherAssets returns the directory the archive subset is extracted to.
func (l *Layout) LauncherAssets() string {
	return l.InInstallDir(LauncherAssetsDir)
}
