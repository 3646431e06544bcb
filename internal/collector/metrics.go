package collector

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/uccc/cloud-cost-ledger/internal/version"
)

// Metrics exposes collection-run telemetry to Prometheus.
type Metrics struct {
	runsTotal         *prometheus.CounterVec
	sourceErrorsTotal *prometheus.CounterVec
	recordsTotal      *prometheus.CounterVec
	runDuration       prometheus.Histogram
	buildInfo         *prometheus.GaugeVec
}

// NewMetrics creates and registers the collector metrics on the given
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cost_ledger_collection_runs_total",
				Help: "Total number of collection runs by terminal state",
			},
			[]string{"state"},
		),
		sourceErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cost_ledger_source_errors_total",
				Help: "Total number of per-source fetch failures",
			},
			[]string{"provider"},
		),
		recordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cost_ledger_records_collected_total",
				Help: "Total number of normalized records ingested",
			},
			[]string{"provider"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cost_ledger_collection_run_duration_seconds",
				Help:    "Duration of collection runs in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
		buildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cost_ledger_build_info",
				Help: "Build version information",
			},
			[]string{"version", "git_commit", "build_date", "go_version"},
		),
	}

	versionInfo := version.Info()
	m.buildInfo.With(prometheus.Labels{
		"version":    versionInfo["version"],
		"git_commit": versionInfo["git_commit"],
		"build_date": versionInfo["build_date"],
		"go_version": versionInfo["go_version"],
	}).Set(1)

	reg.MustRegister(m.runsTotal, m.sourceErrorsTotal, m.recordsTotal, m.runDuration, m.buildInfo)
	return m
}

// ObserveRun records a finished run's terminal state and duration.
func (m *Metrics) ObserveRun(state string, duration time.Duration) {
	m.runsTotal.WithLabelValues(state).Inc()
	m.runDuration.Observe(duration.Seconds())
}

// ObserveSourceError counts one failed source fetch.
func (m *Metrics) ObserveSourceError(provider string) {
	m.sourceErrorsTotal.WithLabelValues(provider).Inc()
}

// ObserveRecords counts records ingested from one provider.
func (m *Metrics) ObserveRecords(provider string, count int) {
	m.recordsTotal.WithLabelValues(provider).Add(float64(count))
}
