package workflow

import (
	"sort"
	"time"

	"sttbatch/internal/notifications"
)

// Outcome is the per-file result of a run.
type Outcome string

const (
	OutcomeOutstanding Outcome = "outstanding"
	OutcomeCompleted   Outcome = "completed"
	OutcomeAbandoned   Outcome = "abandoned"
	OutcomeDropped     Outcome = "dropped"
	OutcomeLost        Outcome = "lost"
	OutcomeSkipped     Outcome = "skipped"
)

// Outcomes lists every outcome in report order.
var Outcomes = []Outcome{
	OutcomeCompleted,
	OutcomeAbandoned,
	OutcomeDropped,
	OutcomeLost,
	OutcomeSkipped,
	OutcomeOutstanding,
}

// FileResult records what happened to one input.
type FileResult struct {
	SourceFile string  `json:"source_file"`
	Outcome    Outcome `json:"outcome"`
	JobID      string  `json:"job_id,omitempty"`
	Attempts   int     `json:"attempts"`
	Location   string  `json:"location,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Summary describes a finished (or interrupted) run.
type Summary struct {
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
	Passes      int          `json:"passes"`
	Interrupted bool         `json:"interrupted"`
	Files       []FileResult `json:"files"`
}

// Count returns the number of files with outcome.
func (s *Summary) Count(outcome Outcome) int {
	if s == nil {
		return 0
	}
	n := 0
	for _, f := range s.Files {
		if f.Outcome == outcome {
			n++
		}
	}
	return n
}

// Counts returns every outcome with its file count.
func (s *Summary) Counts() map[Outcome]int {
	counts := make(map[Outcome]int, len(Outcomes))
	for _, outcome := range Outcomes {
		counts[outcome] = s.Count(outcome)
	}
	return counts
}

// Duration is the wall time of the run.
func (s *Summary) Duration() time.Duration {
	if s == nil || s.FinishedAt.Before(s.StartedAt) {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

func (s *Summary) payload() notifications.Payload {
	payload := notifications.Payload{
		"files":            len(s.Files),
		"passes":           s.Passes,
		"interrupted":      s.Interrupted,
		"duration_seconds": s.Duration().Seconds(),
	}
	for outcome, n := range s.Counts() {
		payload[string(outcome)] = n
	}
	return payload
}

// record applies update to the result for name under the results lock.
func (o *Orchestrator) record(name string, update func(*FileResult)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	result, ok := o.results[name]
	if !ok {
		result = &FileResult{SourceFile: name, Outcome: OutcomeOutstanding}
		o.results[name] = result
	}
	update(result)
}

// percentResolved is the share of listed files no longer outstanding.
func (o *Orchestrator) percentResolved() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.results) == 0 {
		return 100
	}
	resolved := 0
	for _, r := range o.results {
		if r.Outcome != OutcomeOutstanding {
			resolved++
		}
	}
	return float64(resolved) * 100 / float64(len(o.results))
}

func (o *Orchestrator) summary(started time.Time, interrupted bool) *Summary {
	o.mu.Lock()
	defer o.mu.Unlock()
	files := make([]FileResult, 0, len(o.results))
	for _, r := range o.results {
		files = append(files, *r)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].SourceFile < files[j].SourceFile })
	return &Summary{
		StartedAt:   started,
		FinishedAt:  o.now(),
		Passes:      o.passes,
		Interrupted: interrupted,
		Files:       files,
	}
}
