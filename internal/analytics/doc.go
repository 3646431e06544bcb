// Package analytics derives reporting views over the cost ledger.
//
// The Aggregator is the entry point: it reads records through the narrow
// RecordSource interface, converts every cost into the reporting currency
// before summing, and computes totals, grouped rollups, window-over-window
// deltas, day-over-day anomaly series, spike signals, and snapshots.
//
// Tag hygiene is the exception to FX conversion: coverage partitions raw
// costs, since governance compliance is about tagging, not exchange rates.
//
// All computations here are pure in-memory passes over already-fetched
// data; expected data conditions (empty series, zero denominators, keys
// absent from one window) produce nil ratios or empty results, never
// errors.
package analytics
