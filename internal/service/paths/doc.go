// Package paths resolves the per-user directory layout.
//
// The control directory (~/.steam) holds the "steam" and "root" links that
// point at the real installation directory. Resolve repairs dangling links,
// picks the installation directory by a fixed precedence and makes sure both
// links point at it. Everything else in the launcher works on the returned
// Layout instead of recomputing paths.
package paths
