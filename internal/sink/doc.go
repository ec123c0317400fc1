// Package sink persists finished transcripts keyed by source file.
//
// Every sink derives the same output name from the source identity (same
// relative directory and base name, transcript extension) and overwrites on
// repeat writes, so rerunning a batch is idempotent. Failures are tagged with
// services.ErrPersistence.
package sink
