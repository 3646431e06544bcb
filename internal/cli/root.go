package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/uccc/cloud-cost-ledger/internal/analytics"
	"github.com/uccc/cloud-cost-ledger/internal/collector"
	"github.com/uccc/cloud-cost-ledger/internal/config"
	"github.com/uccc/cloud-cost-ledger/internal/fx"
	"github.com/uccc/cloud-cost-ledger/internal/logger"
	"github.com/uccc/cloud-cost-ledger/internal/notify"
	"github.com/uccc/cloud-cost-ledger/internal/providers"
	"github.com/uccc/cloud-cost-ledger/internal/store"
	"github.com/uccc/cloud-cost-ledger/internal/version"
)

var configPath string

// app is the wired application: every command builds one and tears it
// down when finished.
type app struct {
	cfg      *config.Config
	logger   *logger.Logger
	store    *store.Store
	agg      *analytics.Aggregator
	orch     *collector.Orchestrator
	ecb      *fx.ECBClient
	notifier notify.Notifier
}

func (a *app) Close() error {
	return a.store.Close()
}

// buildApp loads configuration and wires the full component graph.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log := logger.New(cfg.LogLevel)

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	converter := fx.NewConverter(cfg.BaseCurrency, st)
	agg := analytics.NewAggregator(st, converter)

	fetchers, err := providers.Build(ctx, cfg, log)
	if err != nil {
		st.Close()
		return nil, err
	}

	metrics := collector.NewMetrics(prometheus.DefaultRegisterer)
	orch := collector.NewOrchestrator(st, fetchers, metrics, log).
		WithParallelFetch(cfg.ParallelFetch)

	var notifier notify.Notifier = notify.NoopNotifier{}
	if cfg.SlackWebhookURL != "" {
		notifier = notify.NewSlackNotifier(cfg.SlackWebhookURL, cfg.BaseCurrency, log)
	}

	return &app{
		cfg:      cfg,
		logger:   log,
		store:    st,
		agg:      agg,
		orch:     orch,
		ecb:      fx.NewECBClient(log),
		notifier: notifier,
	}, nil
}

// NewRootCmd builds the ledgerd command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "ledgerd",
		Short:   "Multi-cloud cost ledger",
		Long:    "ledgerd collects billing data from AWS, Azure, and GCP into a normalized ledger\nand serves converted aggregations, deltas, anomaly signals, and tag hygiene reports.",
		Version: version.Version,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to configuration file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newCollectCmd())
	root.AddCommand(newReportCmd())

	return root
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}
