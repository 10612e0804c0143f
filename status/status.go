// Package status exposes the progress of a collection run over HTTP.
package status

import (
	"sync"
	"time"
)

// State of the current run.
type State string

const (
	StateIdle       State = "idle"
	StateCollecting State = "collecting"
	StateProcessing State = "processing"
	StateExporting  State = "exporting"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Snapshot is the externally visible view of a run.
type Snapshot struct {
	RunID      string     `json:"run_id"`
	State      State      `json:"state"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	DatesDone  int        `json:"dates_done"`
	LastDate   string     `json:"last_date,omitempty"`
	Items      int        `json:"items"`
	Restarts   int        `json:"restarts"`
	Error      string     `json:"error,omitempty"`
}

// Tracker accumulates run progress. Safe for concurrent use.
type Tracker struct {
	mu   sync.Mutex
	snap Snapshot
}

// NewTracker starts tracking a run.
func NewTracker(runID string) *Tracker {
	return &Tracker{snap: Snapshot{
		RunID:     runID,
		State:     StateIdle,
		StartedAt: time.Now().UTC(),
	}}
}

// SetState moves the run to a new phase.
func (t *Tracker) SetState(s State) {
	t.mu.Lock()
	t.snap.State = s
	t.mu.Unlock()
}

// DateDone records one completed collection date and its saved items.
func (t *Tracker) DateDone(day time.Time, saved int) {
	t.mu.Lock()
	t.snap.DatesDone++
	t.snap.LastDate = day.Format("2006-01-02")
	t.snap.Items += saved
	t.mu.Unlock()
}

// Restarted records one browser session restart.
func (t *Tracker) Restarted() {
	t.mu.Lock()
	t.snap.Restarts++
	t.mu.Unlock()
}

// Finish closes the run, recording the failure if err is non-nil.
func (t *Tracker) Finish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now().UTC()
	t.snap.FinishedAt = &now
	if err != nil {
		t.snap.State = StateFailed
		t.snap.Error = err.Error()
		return
	}
	t.snap.State = StateDone
}

// Snapshot returns a copy of the current progress.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}
