package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrDuplicateJob is returned when a job id is already live.
	ErrDuplicateJob = errors.New("job id already registered")
	// ErrDuplicateSource is returned when a source file already has a live job.
	ErrDuplicateSource = errors.New("source file already has an outstanding job")
	// ErrUnknownJob is returned when replacing a job id that is no longer live.
	ErrUnknownJob = errors.New("job id not registered")
)

// Entry is one live submission attempt. Entries are values; the registry never
// mutates an entry in place.
type Entry struct {
	JobID       string
	SourceFile  string
	Attempts    int
	SubmittedAt time.Time
}

// Registry is the authoritative set of outstanding jobs for one run. All
// methods are safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	byJob    map[string]Entry
	bySource map[string]string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		byJob:    make(map[string]Entry),
		bySource: make(map[string]string),
	}
}

// Insert registers a new live job.
func (r *Registry) Insert(entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(entry)
}

func (r *Registry) insertLocked(entry Entry) error {
	if entry.JobID == "" || entry.SourceFile == "" {
		return errors.New("registry insert: job id and source file are required")
	}
	if _, ok := r.byJob[entry.JobID]; ok {
		return fmt.Errorf("registry insert %s: %w", entry.JobID, ErrDuplicateJob)
	}
	if existing, ok := r.bySource[entry.SourceFile]; ok {
		return fmt.Errorf("registry insert %s (live job %s): %w", entry.SourceFile, existing, ErrDuplicateSource)
	}
	r.byJob[entry.JobID] = entry
	r.bySource[entry.SourceFile] = entry.JobID
	return nil
}

// Remove deletes jobID and returns the removed entry. The boolean is false
// when the id was not live, so concurrent callers can use it as
// compare-and-remove.
func (r *Registry) Remove(jobID string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.byJob[jobID]
	if !ok {
		return Entry{}, false
	}
	delete(r.byJob, jobID)
	if r.bySource[entry.SourceFile] == jobID {
		delete(r.bySource, entry.SourceFile)
	}
	return entry, true
}

// Replace removes oldID and inserts next as one transition. next must carry
// the same source file as the entry it replaces.
func (r *Registry) Replace(oldID string, next Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byJob[oldID]
	if !ok {
		return fmt.Errorf("registry replace %s: %w", oldID, ErrUnknownJob)
	}
	if current.SourceFile != next.SourceFile {
		return fmt.Errorf("registry replace %s: source file mismatch (%s != %s)", oldID, current.SourceFile, next.SourceFile)
	}
	if _, taken := r.byJob[next.JobID]; taken && next.JobID != oldID {
		return fmt.Errorf("registry replace %s: %w", next.JobID, ErrDuplicateJob)
	}
	delete(r.byJob, oldID)
	delete(r.bySource, current.SourceFile)
	return r.insertLocked(next)
}

// JobFor returns the live job id for a source file.
func (r *Registry) JobFor(sourceFile string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.bySource[sourceFile]
	return id, ok
}

// Snapshot returns a copy of the live entries ordered by source file. Later
// mutations do not affect the returned slice.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	entries := make([]Entry, 0, len(r.byJob))
	for _, entry := range r.byJob {
		entries = append(entries, entry)
	}
	r.mu.Unlock()
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].SourceFile == entries[j].SourceFile {
			return entries[i].JobID < entries[j].JobID
		}
		return entries[i].SourceFile < entries[j].SourceFile
	})
	return entries
}

// Len returns the number of outstanding jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byJob)
}

// Empty reports whether no jobs are outstanding.
func (r *Registry) Empty() bool {
	return r.Len() == 0
}
