// Package packager prepares the release descriptor embedded into the launcher.
//
// It checks that a client archive carries the launcher assets, computes its
// SHA-256 digest and writes the version, URL template and digest as YAML.
// The resulting file replaces internal/config/release.yaml before a build.
package packager
