// Package desktop links the client's icons and application entry into the
// user's XDG data directory.
//
// Destinations are only ever created or replaced when they are absent or
// already symlinks, so files the user placed there by hand survive.
package desktop
