// Package watson implements transcription.Client against the IBM Watson
// Speech to Text asynchronous recognitions API.
//
// Submit posts the raw audio to /v1/recognitions with HTTP basic auth
// (user "apikey") and returns the job id; FetchStatus polls
// /v1/recognitions/{id} and assembles the transcript from the best alternative
// of every result segment once the job completes. Requests share a token
// bucket limiter; submits retry throttling and server errors with backoff.
// Status checks never retry because the orchestrator re-polls on the next pass.
package watson
