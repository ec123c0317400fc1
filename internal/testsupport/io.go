package testsupport

import (
	"context"
	"errors"
	"sort"
	"sync"

	"sttbatch/internal/notifications"
	"sttbatch/internal/services"
	"sttbatch/internal/sink"
)

// MemorySource serves inputs from a map.
type MemorySource struct {
	mu       sync.Mutex
	files    map[string][]byte
	readErrs map[string]error
	ListErr  error
}

// NewMemorySource returns a source holding one small payload per name.
func NewMemorySource(names ...string) *MemorySource {
	src := &MemorySource{files: map[string][]byte{}, readErrs: map[string]error{}}
	for _, name := range names {
		src.files[name] = []byte("audio:" + name)
	}
	return src
}

// FailRead makes reads of name fail with err.
func (m *MemorySource) FailRead(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErrs[name] = err
}

func (m *MemorySource) List(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, services.Wrap(services.ErrSourceRead, "memory-source", "list", "", m.ListErr)
	}
	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemorySource) Read(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.readErrs[name]; err != nil {
		return nil, services.Wrap(services.ErrSourceRead, "memory-source", "read", name, err)
	}
	data, ok := m.files[name]
	if !ok {
		return nil, services.Wrap(services.ErrSourceRead, "memory-source", "read", name, errors.New("no such input"))
	}
	return data, nil
}

// MemorySink records transcripts by source file.
type MemorySink struct {
	mu       sync.Mutex
	written  map[string]string
	writes   map[string]int
	failures map[string]error
	renamed  map[string]string
	closed   bool
}

var (
	_ sink.Sink    = (*MemorySink)(nil)
	_ sink.Planner = (*MemorySink)(nil)
)

// NewMemorySink returns an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{written: map[string]string{}, writes: map[string]int{}, failures: map[string]error{}}
}

// FailWrite makes writes for sourceFile fail with err.
func (m *MemorySink) FailWrite(sourceFile string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[sourceFile] = err
}

func (m *MemorySink) Write(_ context.Context, sourceFile, transcript string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes[sourceFile]++
	if err := m.failures[sourceFile]; err != nil {
		return "", services.Wrap(services.ErrPersistence, "memory-sink", "write", sourceFile, err)
	}
	name, ok := m.renamed[sourceFile]
	if !ok {
		name = sink.TranscriptName(sourceFile, ".txt")
	}
	m.written[name] = transcript
	return "memory://" + name, nil
}

// Plan applies the same collision renaming as the real sinks.
func (m *MemorySink) Plan(sources []string) map[string]string {
	renamed := map[string]string{}
	for source, name := range sink.OutputNames(sources, ".txt") {
		if name != sink.TranscriptName(source, ".txt") {
			renamed[source] = name
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renamed = renamed
	return renamed
}

func (m *MemorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Transcript returns the stored text for an output name such as "a.txt".
func (m *MemorySink) Transcript(outputName string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text, ok := m.written[outputName]
	return text, ok
}

// Writes reports write attempts for sourceFile, failed ones included.
func (m *MemorySink) Writes(sourceFile string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes[sourceFile]
}

// Closed reports whether Close was called.
func (m *MemorySink) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// PublishedEvent is one recorded notification.
type PublishedEvent struct {
	Event   notifications.Event
	Payload notifications.Payload
}

// RecordingNotifier captures published events.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []PublishedEvent
}

var _ notifications.Service = (*RecordingNotifier)(nil)

func (r *RecordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, PublishedEvent{Event: event, Payload: payload})
	return nil
}

func (r *RecordingNotifier) Close() error { return nil }

// Events returns recorded events matching kind, or all when kind is empty.
func (r *RecordingNotifier) Events(kind notifications.Event) []PublishedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []PublishedEvent
	for _, ev := range r.events {
		if kind == "" || ev.Event == kind {
			out = append(out, ev)
		}
	}
	return out
}
