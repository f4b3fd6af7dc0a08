// Package fetch downloads an archive and verifies it against a known SHA-256
// digest before anyone is allowed to use it.
//
// The download lands in a temporary file whose name carries the process id
// and random entropy, so concurrent launchers never share a file. The digest
// is computed while streaming; the server's Content-Length and any checksum
// it might publish are ignored. On any failure the temporary file is removed.
package fetch
