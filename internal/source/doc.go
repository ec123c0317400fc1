// Package source lists the audio inputs of a run and reads their bytes.
//
// Inputs are identified by slash-separated names relative to the source root
// (a local directory or an S3 prefix). The same include/exclude patterns apply
// to both kinds. Listing happens once at startup; a read failure for one name
// affects only that file.
package source
