// Package server exposes the ledger's HTTP API.
//
// Routes are grouped under /api/v1:
//   - /costs/total, /costs/daily, /costs/by-provider, /costs/by-service,
//     /costs/by-account, /costs/by-tag/:tag, /costs/top-services:
//     converted aggregations over a from/to window (defaulting to the
//     configured lookback ending today)
//   - /deltas: grouped comparison against the preceding equal-length
//     window, or an explicit compare_from/compare_to
//   - /anomalies, /signals: day-over-day spike detection and classified
//     anomaly signals
//   - /tag-hygiene, /tag-hygiene/by-provider, /tag-hygiene/untagged:
//     required-tag coverage reports
//   - /freshness, /snapshot: per-provider data recency and the combined
//     overview
//   - /export/costs.csv: raw records as CSV
//   - POST /collect, /runs, /runs/:id: trigger collection runs and poll
//     their status
//
// Plus /health, /ready, and /metrics (Prometheus) at the root.
//
// Validation failures map to 400, unknown runs to 404, everything else
// to 500 with the detail kept in the server log.
package server
