package transcription

import (
	"context"
	"fmt"
	"strings"
)

// State is the remote lifecycle state of one recognition job.
type State int

const (
	// StateUnknown is the zero value and never a valid observation.
	StateUnknown State = iota
	StateWaiting
	StateProcessing
	StateFailed
	StateCompleted
)

var stateNames = map[State]string{
	StateWaiting:    "waiting",
	StateProcessing: "processing",
	StateFailed:     "failed",
	StateCompleted:  "completed",
}

// String returns the wire name of the state.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseState converts a remote status string into a State.
func ParseState(value string) (State, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for state, name := range stateNames {
		if name == normalized {
			return state, nil
		}
	}
	return StateUnknown, fmt.Errorf("unrecognized job state %q", value)
}

// Status is one observation of a remote job. Transcript is set only when
// State is StateCompleted.
type Status struct {
	State      State
	Transcript string
}

// Waiting, Processing, Failed and Completed build Status values.
func Waiting() Status    { return Status{State: StateWaiting} }
func Processing() Status { return Status{State: StateProcessing} }
func Failed() Status     { return Status{State: StateFailed} }

func Completed(transcript string) Status {
	return Status{State: StateCompleted, Transcript: transcript}
}

// Client submits audio and reports job progress. Implementations return
// errors tagged with services.ErrSubmission from Submit and services.ErrQuery
// (optionally also services.ErrNotFound) from FetchStatus.
type Client interface {
	Submit(ctx context.Context, sourceFile string, audio []byte) (string, error)
	FetchStatus(ctx context.Context, jobID string) (Status, error)
}
