package server

import (
	"context"
	"sync"
	"time"

	"git.home.luguber.info/inful/texbuilder/internal/batch"
)

// RunView summarizes one batch run for the status endpoint.
type RunView struct {
	ID       string     `json:"id"`
	Mode     string     `json:"mode"`
	Variants []string   `json:"variants"`
	Started  time.Time  `json:"started_at"`
	Finished *time.Time `json:"finished_at,omitempty"`
	Done     int        `json:"done"`
	Failed   int        `json:"failed"`
}

// Status tracks daemon runs. It is a batch.Observer.
type Status struct {
	mu      sync.Mutex
	started time.Time
	runs    int
	current *RunView
	last    *RunView
	now     func() time.Time
}

// NewStatus returns a tracker whose uptime starts now.
func NewStatus() *Status {
	return &Status{started: time.Now(), now: time.Now}
}

// EntryDone counts the entry against the run in progress.
func (s *Status) EntryDone(_ context.Context, run batch.Run, e batch.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.ID != run.ID {
		s.current = newRunView(run)
	}
	s.current.Done++
	if e.Failed() {
		s.current.Failed++
	}
}

// RunDone moves the run to the last completed slot.
func (s *Status) RunDone(_ context.Context, run batch.Run, entries []batch.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	finished := s.now()
	view := newRunView(run)
	view.Finished = &finished
	view.Done = len(entries)
	view.Failed = batch.Failures(entries)
	s.last = view
	s.current = nil
	s.runs++
}

// Snapshot returns copies of the run in progress and the last finished run.
func (s *Status) Snapshot() (runs int, current, last *RunView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs, cloneView(s.current), cloneView(s.last)
}

// Uptime reports the time since NewStatus.
func (s *Status) Uptime() time.Duration {
	return s.now().Sub(s.started)
}

func newRunView(run batch.Run) *RunView {
	variants := make([]string, 0, len(run.Variants))
	for _, v := range run.Variants {
		variants = append(variants, string(v))
	}
	return &RunView{ID: run.ID, Mode: run.Mode.String(), Variants: variants, Started: run.Started}
}

func cloneView(v *RunView) *RunView {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
