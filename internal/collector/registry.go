package collector

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunState is the lifecycle state of a collection run.
type RunState string

const (
	RunStateQueued  RunState = "queued"
	RunStateRunning RunState = "running"
	RunStateSuccess RunState = "success"
	RunStateError   RunState = "error"
)

// SourceState is the lifecycle state of one source inside a run.
type SourceState string

const (
	SourceStatePending SourceState = "pending"
	SourceStateRunning SourceState = "running"
	SourceStateSuccess SourceState = "success"
	SourceStateError   SourceState = "error"
)

// SourceSnapshot is the immutable view of one source's outcome.
type SourceSnapshot struct {
	Provider        string `json:"provider"`
	State           string `json:"state"`
	RecordsIngested int    `json:"records_ingested"`
	RecordsRejected int    `json:"records_rejected"`
	Error           string `json:"error,omitempty"`
}

// RunSnapshot is the immutable view of a run at one point in time.
type RunSnapshot struct {
	ID              string           `json:"id"`
	State           RunState         `json:"state"`
	StartedAt       time.Time        `json:"started_at"`
	FinishedAt      *time.Time       `json:"finished_at,omitempty"`
	Sources         []SourceSnapshot `json:"sources"`
	RecordsIngested int              `json:"records_ingested"`
	RecordsRejected int              `json:"records_rejected"`
	Error           string           `json:"error,omitempty"`
}

type sourceStatus struct {
	state    SourceState
	ingested int
	rejected int
	err      string
}

// Run tracks the mutable state of one collection run. All mutation
// goes through mark* methods under the run's own lock so concurrent
// source goroutines stay consistent.
type Run struct {
	id        string
	sources   []string // preserves registration order for snapshots
	createdAt time.Time

	mu         sync.Mutex
	state      RunState
	startedAt  time.Time
	finishedAt *time.Time
	perSource  map[string]*sourceStatus
	err        string
}

// ID returns the run's identifier.
func (r *Run) ID() string { return r.id }

// Snapshot returns a copy of the run state safe to hand to callers.
func (r *Run) Snapshot() RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := RunSnapshot{
		ID:        r.id,
		State:     r.state,
		StartedAt: r.startedAt,
		Error:     r.err,
	}
	if r.finishedAt != nil {
		t := *r.finishedAt
		snap.FinishedAt = &t
	}
	for _, name := range r.sources {
		src := r.perSource[name]
		snap.Sources = append(snap.Sources, SourceSnapshot{
			Provider:        name,
			State:           string(src.state),
			RecordsIngested: src.ingested,
			RecordsRejected: src.rejected,
			Error:           src.err,
		})
		snap.RecordsIngested += src.ingested
		snap.RecordsRejected += src.rejected
	}
	return snap
}

func (r *Run) markRunning(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = RunStateRunning
	r.startedAt = at
}

func (r *Run) markSuccess(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = RunStateSuccess
	r.finishedAt = &at
}

func (r *Run) markError(at time.Time, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = RunStateError
	r.finishedAt = &at
	r.err = msg
}

func (r *Run) markSourceRunning(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.perSource[name].state = SourceStateRunning
}

func (r *Run) markSourceSuccess(name string, ingested, rejected int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	src := r.perSource[name]
	src.state = SourceStateSuccess
	src.ingested = ingested
	src.rejected = rejected
}

func (r *Run) markSourceError(name, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	src := r.perSource[name]
	src.state = SourceStateError
	src.err = msg
}

// Registry holds every run started during the process lifetime so
// callers can poll run status by ID.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewRegistry creates an empty run registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*Run)}
}

// NewRun registers a queued run over the named sources.
func (reg *Registry) NewRun(sources []string, now time.Time) *Run {
	run := &Run{
		id:        uuid.NewString(),
		sources:   append([]string(nil), sources...),
		createdAt: now,
		state:     RunStateQueued,
		startedAt: now,
		perSource: make(map[string]*sourceStatus, len(sources)),
	}
	for _, name := range sources {
		run.perSource[name] = &sourceStatus{state: SourceStatePending}
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.runs[run.id] = run
	return run
}

// Get returns a snapshot of the run with the given ID.
func (reg *Registry) Get(id string) (RunSnapshot, bool) {
	reg.mu.RLock()
	run, ok := reg.runs[id]
	reg.mu.RUnlock()
	if !ok {
		return RunSnapshot{}, false
	}
	return run.Snapshot(), true
}

// List returns snapshots of all runs, newest first.
func (reg *Registry) List() []RunSnapshot {
	reg.mu.RLock()
	runs := make([]*Run, 0, len(reg.runs))
	for _, run := range reg.runs {
		runs = append(runs, run)
	}
	reg.mu.RUnlock()

	snaps := make([]RunSnapshot, 0, len(runs))
	for _, run := range runs {
		snaps = append(snaps, run.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].StartedAt.After(snaps[j].StartedAt)
	})
	return snaps
}
