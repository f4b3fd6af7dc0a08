// Package version exposes build metadata of the launcher binaries.
//
// Version, Commit and BuildTime are injected with -ldflags at build time.
// The launcher's own version is unrelated to the client release it installs,
// which lives in the embedded release descriptor.
package version
