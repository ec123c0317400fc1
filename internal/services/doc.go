// Package services defines shared utilities consumed by the orchestrator and
// its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, source files, and remote job handles
//     for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures as
//     submission, query, persistence, or configuration errors.
//
// Integrations under this directory (the Watson speech client) return errors
// tagged with these markers so the orchestrator can decide transitions with
// errors.Is instead of string matching.
package services
