// Package marker persists the version marker of an installation.
//
// The marker is a one-line text file. Writes go to a temporary file in the
// same directory that is renamed over the marker, so concurrent readers see
// either the old or the new content, never a partial one.
package marker
