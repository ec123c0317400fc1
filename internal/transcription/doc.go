// Package transcription defines the contract between the orchestrator and a
// job-based speech-to-text service: a four-way State variant, the Status
// observation, and the Client interface.
package transcription
