// Package archive unpacks the downloaded client archive and the bootstrap
// bundle inside it.
//
// Every regular file and symlink is written next to its destination and
// renamed into place, so an extraction racing with another launcher, or cut
// short by a signal, leaves each path either old or complete.
package archive
