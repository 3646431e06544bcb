package analytics

import (
	"context"

	"github.com/uccc/cloud-cost-ledger/internal/ledger"
)

// Snapshot is a one-call overview of the window: total spend, per-provider
// totals, tag coverage per provider, and data freshness.
type Snapshot struct {
	From           string                     `json:"from"`
	To             string                     `json:"to"`
	Currency       string                     `json:"currency"`
	Total          float64                    `json:"total"`
	ProviderTotals []GroupTotal               `json:"provider_totals"`
	TagCoverage    []ProviderCoverage         `json:"tag_coverage"`
	Freshness      []ledger.ProviderFreshness `json:"freshness"`
}

// BuildSnapshot assembles the overview for the window.
func (a *Aggregator) BuildSnapshot(ctx context.Context, w ledger.Window, requiredFor func(provider string) []string) (Snapshot, error) {
	total, err := a.Total(ctx, w)
	if err != nil {
		return Snapshot{}, err
	}
	providerTotals, err := a.Grouped(ctx, w, GroupByProvider, GroupedOptions{})
	if err != nil {
		return Snapshot{}, err
	}
	records, err := a.Records(ctx, w, "")
	if err != nil {
		return Snapshot{}, err
	}
	freshness, err := a.Freshness(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		From:           w.Start,
		To:             w.End,
		Currency:       a.BaseCurrency(),
		Total:          total,
		ProviderTotals: providerTotals,
		TagCoverage:    BuildHygieneByProvider(records, requiredFor),
		Freshness:      freshness,
	}, nil
}
