package testsupport

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"sttbatch/internal/services"
	"sttbatch/internal/transcription"
)

// Step is one scripted status check result.
type Step struct {
	Status transcription.Status
	Err    error
}

// Returns scripts a successful status check.
func Returns(status transcription.Status) Step {
	return Step{Status: status}
}

// Errors scripts a failed status check.
func Errors(err error) Step {
	return Step{Err: err}
}

type fakeJob struct {
	source string
	polls  int
}

// FakeClient is an in-memory transcription.Client. Status checks for a source
// consume its script in order across resubmissions; once the script runs out
// the last step repeats. Unscripted sources stay waiting.
type FakeClient struct {
	mu         sync.Mutex
	scripts    map[string][]Step
	last       map[string]Step
	submitErrs map[string][]error
	submits    map[string]int
	jobs       map[string]*fakeJob
	inFlight   int
	maxFlight  int

	// FetchDelay is slept inside every status check.
	FetchDelay time.Duration
}

var _ transcription.Client = (*FakeClient)(nil)

// NewFakeClient returns an empty fake.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		scripts:    map[string][]Step{},
		last:       map[string]Step{},
		submitErrs: map[string][]error{},
		submits:    map[string]int{},
		jobs:       map[string]*fakeJob{},
	}
}

// Script appends status check results for source.
func (f *FakeClient) Script(source string, steps ...Step) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[source] = append(f.scripts[source], steps...)
}

// FailSubmit makes the next len(errs) submissions of source fail in order.
func (f *FakeClient) FailSubmit(source string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitErrs[source] = append(f.submitErrs[source], errs...)
}

func (f *FakeClient) Submit(ctx context.Context, sourceFile string, audio []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", services.Wrap(services.ErrSubmission, "fake", "submit", sourceFile, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits[sourceFile]++
	if queued := f.submitErrs[sourceFile]; len(queued) > 0 {
		err := queued[0]
		f.submitErrs[sourceFile] = queued[1:]
		return "", services.Wrap(services.ErrSubmission, "fake", "submit", sourceFile, err)
	}
	id := "job-" + uuid.NewString()
	f.jobs[id] = &fakeJob{source: sourceFile}
	return id, nil
}

func (f *FakeClient) FetchStatus(ctx context.Context, jobID string) (transcription.Status, error) {
	f.mu.Lock()
	f.inFlight++
	f.maxFlight = max(f.maxFlight, f.inFlight)
	delay := f.FetchDelay
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return transcription.Status{}, services.Wrap(services.ErrQuery, "fake", "fetch status", jobID, ctx.Err())
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return transcription.Status{}, services.NotFound("fake", "fetch status", jobID, nil)
	}
	job.polls++

	step, ok := f.last[job.source]
	if queued := f.scripts[job.source]; len(queued) > 0 {
		step = queued[0]
		f.scripts[job.source] = queued[1:]
		f.last[job.source] = step
	} else if !ok {
		step = Returns(transcription.Waiting())
	}
	if step.Err != nil {
		return transcription.Status{}, services.Wrap(services.ErrQuery, "fake", "fetch status", jobID, step.Err)
	}
	return step.Status, nil
}

// Submits reports how many submissions were made for source.
func (f *FakeClient) Submits(source string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits[source]
}

// Polls reports how many status checks hit jobID.
func (f *FakeClient) Polls(jobID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job, ok := f.jobs[jobID]; ok {
		return job.polls
	}
	return 0
}

// MaxConcurrentFetches reports the highest number of overlapping status checks.
func (f *FakeClient) MaxConcurrentFetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxFlight
}
