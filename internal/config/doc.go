// Package config defines what the launcher installs and how it behaves.
//
// Release describes the archive the launcher installs: its version, download
// URL template and SHA-256 digest. The default release is embedded at build
// time and is the only authority for what gets verified. Settings holds the
// ambient knobs a user may tune in a YAML file, and Environment captures the
// variables read from the process environment.
package config
