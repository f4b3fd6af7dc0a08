// Package installer brings the user's client installation up to the embedded
// release and then starts it.
//
// Every invocation resolves the directory layout, reads the version marker and
// probes the required executables. A matching marker with every executable in
// place launches immediately. Anything else downloads and verifies the release
// archive, extracts it into the installation directory, refreshes the desktop
// integration and only then records the new version. The marker is never
// written for a partial installation, so an interrupted run is simply retried.
package installer
