// Package workflow drives a transcription batch from listing to an empty
// registry.
//
// The Orchestrator lists the source once, submits every input, then runs
// polling passes until no job is outstanding. Each pass walks a snapshot of
// the registry with a bounded worker pool and applies one transition per job:
// waiting and processing jobs are left alone, completed jobs are persisted and
// removed, failed jobs are resubmitted under a new id (or abandoned once the
// attempt ceiling is reached). Status check errors never change the registry.
//
// An interrupt lets the in-flight pass finish before the loop exits, and every
// job still outstanding is logged so remote work is never orphaned silently.
package workflow
