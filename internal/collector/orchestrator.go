package collector

import (
	"context"
	"fmt"
	"sync"

	"github.com/uccc/cloud-cost-ledger/internal/clock"
	"github.com/uccc/cloud-cost-ledger/internal/ledger"
	"github.com/uccc/cloud-cost-ledger/internal/logger"
)

// Fetcher retrieves raw billing rows from one provider source.
type Fetcher interface {
	// Name returns the canonical provider name ("aws", "azure", "gcp").
	Name() string
	// Fetch retrieves raw records for the source's configured window.
	Fetch(ctx context.Context) ([]ledger.RawRecord, error)
}

// RecordSink persists normalized records. Satisfied by *store.Store.
type RecordSink interface {
	UpsertRecords(ctx context.Context, records []ledger.CostRecord) error
}

// Orchestrator drives collection runs: it fans out to the registered
// fetchers, normalizes what they return, and persists the result. One
// failing source never blocks the others.
type Orchestrator struct {
	sink     RecordSink
	fetchers []Fetcher
	registry *Registry
	metrics  *Metrics
	logger   *logger.Logger
	clock    clock.Clock
	parallel bool
}

// NewOrchestrator creates an Orchestrator over the given fetchers.
func NewOrchestrator(sink RecordSink, fetchers []Fetcher, metrics *Metrics, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		sink:     sink,
		fetchers: fetchers,
		registry: NewRegistry(),
		metrics:  metrics,
		logger:   log,
		clock:    clock.RealClock{},
	}
}

// WithClock replaces the time source, for tests.
func (o *Orchestrator) WithClock(c clock.Clock) *Orchestrator {
	o.clock = c
	return o
}

// WithParallelFetch makes sources fetch concurrently instead of in
// registration order.
func (o *Orchestrator) WithParallelFetch(parallel bool) *Orchestrator {
	o.parallel = parallel
	return o
}

// Registry exposes the run registry for status polling.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Trigger starts an asynchronous collection run over the selected
// providers (all registered fetchers when providers is empty) and
// returns the run ID immediately.
func (o *Orchestrator) Trigger(ctx context.Context, providers []string) (string, error) {
	fetchers, err := o.selectFetchers(providers)
	if err != nil {
		return "", err
	}

	run := o.registry.NewRun(fetcherNames(fetchers), o.clock.Now())
	o.logger.Info("Collection run queued", "run_id", run.ID(), "sources", fetcherNames(fetchers))

	go o.execute(context.WithoutCancel(ctx), run, fetchers)

	return run.ID(), nil
}

// RunOnce performs a synchronous collection run and returns its final
// status. Used by the CLI and the scheduler.
func (o *Orchestrator) RunOnce(ctx context.Context, providers []string) (RunSnapshot, error) {
	fetchers, err := o.selectFetchers(providers)
	if err != nil {
		return RunSnapshot{}, err
	}

	run := o.registry.NewRun(fetcherNames(fetchers), o.clock.Now())
	o.execute(ctx, run, fetchers)

	snap := run.Snapshot()
	if snap.State == RunStateError {
		return snap, fmt.Errorf("collection run %s failed: %s", snap.ID, snap.Error)
	}
	return snap, nil
}

func (o *Orchestrator) selectFetchers(providers []string) ([]Fetcher, error) {
	if len(o.fetchers) == 0 {
		return nil, fmt.Errorf("no collection sources registered")
	}
	if len(providers) == 0 {
		return o.fetchers, nil
	}

	byName := make(map[string]Fetcher, len(o.fetchers))
	for _, f := range o.fetchers {
		byName[f.Name()] = f
	}

	selected := make([]Fetcher, 0, len(providers))
	for _, name := range providers {
		f, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", name)
		}
		selected = append(selected, f)
	}
	return selected, nil
}

func fetcherNames(fetchers []Fetcher) []string {
	names := make([]string, len(fetchers))
	for i, f := range fetchers {
		names[i] = f.Name()
	}
	return names
}

// execute runs every source, records per-source outcomes, and settles
// the run's terminal state. The run ends in error only when persistence
// failed or no source succeeded; individual source failures leave the
// run successful so one broken provider cannot hide the others' data.
func (o *Orchestrator) execute(ctx context.Context, run *Run, fetchers []Fetcher) {
	start := o.clock.Now()
	run.markRunning(start)

	var (
		succeeded  int
		persistErr error
	)

	if o.parallel {
		var (
			mu sync.Mutex
			wg sync.WaitGroup
		)
		for _, f := range fetchers {
			wg.Add(1)
			go func(f Fetcher) {
				defer wg.Done()
				ok, err := o.collectSource(ctx, run, f)
				mu.Lock()
				defer mu.Unlock()
				if ok {
					succeeded++
				}
				if err != nil && persistErr == nil {
					persistErr = err
				}
			}(f)
		}
		wg.Wait()
	} else {
		for _, f := range fetchers {
			ok, err := o.collectSource(ctx, run, f)
			if ok {
				succeeded++
			}
			if err != nil && persistErr == nil {
				persistErr = err
			}
		}
	}

	finished := o.clock.Now()
	duration := finished.Sub(start)

	switch {
	case persistErr != nil:
		run.markError(finished, fmt.Sprintf("persisting records: %v", persistErr))
	case succeeded == 0:
		run.markError(finished, "all sources failed")
	default:
		run.markSuccess(finished)
	}

	snap := run.Snapshot()
	if o.metrics != nil {
		o.metrics.ObserveRun(string(snap.State), duration)
	}

	if snap.State == RunStateError {
		o.logger.Error("Collection run failed",
			"run_id", snap.ID,
			"error", snap.Error,
			"duration_seconds", duration.Seconds())
		return
	}
	o.logger.Info("Collection run finished",
		"run_id", snap.ID,
		"records_ingested", snap.RecordsIngested,
		"records_rejected", snap.RecordsRejected,
		"duration_seconds", duration.Seconds())
}

// collectSource fetches, normalizes, and persists one source. It
// returns whether the source succeeded and any persistence error; a
// fetch failure is recorded on the source status and swallowed.
func (o *Orchestrator) collectSource(ctx context.Context, run *Run, f Fetcher) (bool, error) {
	name := f.Name()
	run.markSourceRunning(name)
	o.logger.Info("Collecting source", "run_id", run.ID(), "provider", name)

	raws, err := f.Fetch(ctx)
	if err != nil {
		run.markSourceError(name, err.Error())
		if o.metrics != nil {
			o.metrics.ObserveSourceError(name)
		}
		o.logger.Error("Source fetch failed", "run_id", run.ID(), "provider", name, "error", err)
		return false, nil
	}

	records, rejected := ledger.NormalizeBatch(raws, o.clock.Now())
	for _, rejErr := range rejected {
		o.logger.Warn("Rejected malformed record", "run_id", run.ID(), "provider", name, "reason", rejErr.Error())
	}

	if len(records) > 0 {
		if err := o.sink.UpsertRecords(ctx, records); err != nil {
			run.markSourceError(name, fmt.Sprintf("persisting records: %v", err))
			return false, err
		}
	}

	run.markSourceSuccess(name, len(records), len(rejected))
	if o.metrics != nil {
		o.metrics.ObserveRecords(name, len(records))
	}
	o.logger.Info("Source collected",
		"run_id", run.ID(),
		"provider", name,
		"record_count", len(records),
		"rejected_count", len(rejected))
	return true, nil
}
