// Package collector orchestrates collection runs across cloud billing
// sources.
//
// A run fans out to every registered Fetcher (AWS, Azure, GCP),
// normalizes the raw rows each returns, and persists the result through
// a RecordSink. Sources are isolated: one failing provider is recorded
// on its own source status and never blocks the others. A run ends in
// error only when persistence fails or no source succeeds.
//
// The main types are:
//   - Orchestrator: triggers runs (asynchronously via Trigger, or
//     synchronously via RunOnce) over the registered fetchers
//   - Registry: tracks every run by UUID so callers can poll status
//   - Metrics: Prometheus counters and histograms for run telemetry
//
// The package exposes the following metrics:
//   - cost_ledger_collection_runs_total: Runs by terminal state
//   - cost_ledger_source_errors_total: Per-provider fetch failures
//   - cost_ledger_records_collected_total: Normalized records ingested per provider
//   - cost_ledger_collection_run_duration_seconds: Run duration histogram
//   - cost_ledger_build_info: Build version information
//
// Example usage:
//
//	metrics := collector.NewMetrics(prometheus.DefaultRegisterer)
//	orch := collector.NewOrchestrator(store, fetchers, metrics, log)
//
//	runID, _ := orch.Trigger(ctx, nil)
//
//	// Poll until the run settles
//	snap, _ := orch.Registry().Get(runID)
//	fmt.Println(snap.State)
package collector
