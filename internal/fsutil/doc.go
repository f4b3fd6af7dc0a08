// Package fsutil holds the filesystem primitives every installer step relies
// on to stay safe under concurrent invocations: atomic replacement of files
// and removals that tolerate only a missing target.
package fsutil
