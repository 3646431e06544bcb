package analytics

import (
	"context"
	"sort"

	"github.com/uccc/cloud-cost-ledger/internal/ledger"
)

// DefaultAnomalyThreshold flags days whose converted total grew at least
// 30% over the prior day.
const DefaultAnomalyThreshold = 0.3

// DayOverDay computes the ratio series for per-day totals. The first entry
// is nil (no prior day), and any entry following a zero day is nil: a
// percentage change from zero is undefined, not infinite. The caller is
// responsible for partitioning records into independent series first; this
// function never mixes groups.
func DayOverDay(totals []float64) []*float64 {
	if len(totals) == 0 {
		return []*float64{}
	}
	ratios := make([]*float64, len(totals))
	for i := 1; i < len(totals); i++ {
		prev := totals[i-1]
		if prev == 0 {
			continue
		}
		ratio := (totals[i] - prev) / prev
		ratios[i] = &ratio
	}
	return ratios
}

// DailyDelta is one day of a provider's series annotated with its
// day-over-day ratio.
type DailyDelta struct {
	Provider        string   `json:"provider"`
	Date            string   `json:"date"`
	TotalCost       float64  `json:"total_cost"`
	PreviousDayCost *float64 `json:"previous_day_cost"`
	DeltaRatio      *float64 `json:"delta_ratio"`
}

// DayOverDayDeltas computes independent day-over-day series per provider
// over the window, in provider order then chronological order.
func (a *Aggregator) DayOverDayDeltas(ctx context.Context, w ledger.Window) ([]DailyDelta, error) {
	series, err := a.DailyTotalsByProvider(ctx, w)
	if err != nil {
		return nil, err
	}

	providers := make([]string, 0, len(series))
	for provider := range series {
		providers = append(providers, provider)
	}
	sort.Strings(providers)

	var deltas []DailyDelta
	for _, provider := range providers {
		days := series[provider]
		totals := make([]float64, len(days))
		for i, day := range days {
			totals[i] = day.TotalCost
		}
		ratios := DayOverDay(totals)
		for i, day := range days {
			entry := DailyDelta{
				Provider:   provider,
				Date:       day.Date,
				TotalCost:  day.TotalCost,
				DeltaRatio: ratios[i],
			}
			if i > 0 {
				prev := totals[i-1]
				entry.PreviousDayCost = &prev
			}
			deltas = append(deltas, entry)
		}
	}
	return deltas, nil
}

// FlagAnomalies keeps the days whose ratio is defined and at or above the
// threshold, optionally restricted to one provider.
func FlagAnomalies(deltas []DailyDelta, threshold float64, provider string) []DailyDelta {
	var flagged []DailyDelta
	for _, delta := range deltas {
		if provider != "" && delta.Provider != provider {
			continue
		}
		if delta.DeltaRatio == nil || *delta.DeltaRatio < threshold {
			continue
		}
		flagged = append(flagged, delta)
	}
	return flagged
}
