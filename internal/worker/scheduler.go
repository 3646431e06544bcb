package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/uccc/cloud-cost-ledger/internal/analytics"
	"github.com/uccc/cloud-cost-ledger/internal/clock"
	"github.com/uccc/cloud-cost-ledger/internal/collector"
	"github.com/uccc/cloud-cost-ledger/internal/config"
	"github.com/uccc/cloud-cost-ledger/internal/ledger"
	"github.com/uccc/cloud-cost-ledger/internal/logger"
	"github.com/uccc/cloud-cost-ledger/internal/notify"
)

// Runner executes synchronous collection runs. Satisfied by
// *collector.Orchestrator.
type Runner interface {
	RunOnce(ctx context.Context, providers []string) (collector.RunSnapshot, error)
}

// RateSource fetches FX rates from an external feed. Satisfied by
// *fx.ECBClient.
type RateSource interface {
	FetchRates(ctx context.Context, lookbackDays int) ([]ledger.FxRate, error)
}

// RateSink persists FX rates. Satisfied by *store.Store.
type RateSink interface {
	UpsertRates(ctx context.Context, rates []ledger.FxRate) error
}

// SignalSource scans for anomaly signals. Satisfied by
// *analytics.Aggregator.
type SignalSource interface {
	BuildSignals(ctx context.Context, w ledger.Window, threshold float64, limit int, provider string, floors analytics.SeverityFloors) ([]analytics.Signal, error)
}

// signalLimit caps how many signals one cycle reports.
const signalLimit = 10

// Scheduler drives the periodic collect / refresh-rates / scan-anomalies
// cycle. Every step is best-effort: a failing step is logged and the
// cycle moves on so a broken FX feed cannot stop collection.
type Scheduler struct {
	cfg      *config.Config
	runner   Runner
	rates    RateSource
	rateSink RateSink
	signals  SignalSource
	notifier notify.Notifier
	logger   *logger.Logger
	clock    clock.Clock

	started atomic.Bool
}

// NewScheduler wires a scheduler over the given components.
func NewScheduler(cfg *config.Config, runner Runner, rates RateSource, rateSink RateSink, signals SignalSource, notifier notify.Notifier, log *logger.Logger) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		runner:   runner,
		rates:    rates,
		rateSink: rateSink,
		signals:  signals,
		notifier: notifier,
		logger:   log,
		clock:    clock.RealClock{},
	}
}

// WithClock replaces the time source, for tests.
func (s *Scheduler) WithClock(c clock.Clock) *Scheduler {
	s.clock = c
	return s
}

// Start runs one cycle immediately, then repeats on the configured
// interval until the context is cancelled. Uses an atomic flag to
// prevent multiple scheduler goroutines.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		s.logger.Warn("Scheduler already started, skipping")
		return
	}

	s.RunCycle(ctx)

	ticker := time.NewTicker(time.Duration(s.cfg.CollectInterval) * time.Second)
	go func() {
		defer ticker.Stop()
		defer s.started.Store(false)
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Stopping scheduler")
				return
			case <-ticker.C:
				s.RunCycle(ctx)
			}
		}
	}()
}

// RunCycle executes one collect / refresh / scan / notify sequence.
func (s *Scheduler) RunCycle(ctx context.Context) {
	start := s.clock.Now()
	s.logger.Info("Starting scheduled cycle")

	if snap, err := s.runner.RunOnce(ctx, nil); err != nil {
		s.logger.Error("Scheduled collection failed", "error", err)
	} else {
		s.logger.Info("Scheduled collection finished",
			"run_id", snap.ID,
			"records_ingested", snap.RecordsIngested)
	}

	s.refreshRates(ctx)
	s.scanAnomalies(ctx)

	s.logger.Info("Scheduled cycle finished", "duration_seconds", s.clock.Now().Sub(start).Seconds())
}

func (s *Scheduler) refreshRates(ctx context.Context) {
	rates, err := s.rates.FetchRates(ctx, s.cfg.FxLookbackDays)
	if err != nil {
		s.logger.Error("FX rate refresh failed", "error", err)
		return
	}
	if err := s.rateSink.UpsertRates(ctx, rates); err != nil {
		s.logger.Error("FX rate persistence failed", "error", err)
		return
	}
	s.logger.Info("Refreshed FX rates", "rate_count", len(rates))
}

func (s *Scheduler) scanAnomalies(ctx context.Context) {
	// Scan the lookback window ending yesterday; today is incomplete.
	end := s.clock.Now().AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -(s.cfg.LookbackDays - 1))
	window := ledger.Window{Start: ledger.FormatDay(start), End: ledger.FormatDay(end)}

	floors := analytics.SeverityFloors{
		HighCost:   s.cfg.Severity.HighCostFloor,
		MediumCost: s.cfg.Severity.MediumCostFloor,
	}

	signals, err := s.signals.BuildSignals(ctx, window, s.cfg.AnomalyThreshold, signalLimit, "", floors)
	if err != nil {
		s.logger.Error("Anomaly scan failed", "error", err)
		return
	}
	if len(signals) == 0 {
		s.logger.Info("Anomaly scan found nothing", "window_start", window.Start, "window_end", window.End)
		return
	}

	s.logger.Warn("Anomaly scan surfaced signals", "signal_count", len(signals))
	if err := s.notifier.NotifySignals(ctx, signals); err != nil {
		s.logger.Error("Anomaly notification failed", "error", err)
	}
}
