// Package launcher hands the process over to the installed client.
//
// Dispatch replaces the current process image with the client's entry script,
// so a successful dispatch never returns and the client's exit code becomes
// the launcher's.
package launcher
