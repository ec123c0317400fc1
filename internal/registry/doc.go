// Package registry holds the in-memory set of outstanding transcription jobs
// for a single run.
//
// The registry maps remote job ids to source files and enforces that each
// source file has at most one live job. Resubmission goes through Replace so
// the old id disappears and the new id appears in one locked step. Pass logic
// walks Snapshot copies, never the live map.
package registry
