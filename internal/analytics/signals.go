package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/samber/lo"

	"github.com/uccc/cloud-cost-ledger/internal/ledger"
)

// Severity buckets a signal by how much spend it moved.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// SeverityFloors are the cost cutoffs for severity classification. They
// are deployment configuration, not hardcoded business law.
type SeverityFloors struct {
	HighCost   float64
	MediumCost float64
}

// DefaultSeverityFloors mirror the historical cutoffs.
var DefaultSeverityFloors = SeverityFloors{HighCost: 500, MediumCost: 200}

// ClassifySeverity buckets an impact by cost and ratio: high needs the high
// cost floor and twice the threshold, medium the medium floor and the
// threshold itself.
func ClassifySeverity(impactCost, impactRatio, threshold float64, floors SeverityFloors) Severity {
	if impactCost >= floors.HighCost && impactRatio >= threshold*2 {
		return SeverityHigh
	}
	if impactCost >= floors.MediumCost && impactRatio >= threshold {
		return SeverityMedium
	}
	return SeverityLow
}

// Timeframe pairs a reporting window with the equal-length window
// immediately preceding it.
type Timeframe struct {
	Start        string `json:"start"`
	End          string `json:"end"`
	CompareStart string `json:"compare_start"`
	CompareEnd   string `json:"compare_end"`
}

// BuildTimeframe derives the comparison window: same length, ending the day
// before the reporting window starts.
func BuildTimeframe(w ledger.Window) (Timeframe, error) {
	if err := w.Validate(); err != nil {
		return Timeframe{}, err
	}
	start, _ := ledger.ParseDay(w.Start)
	end, _ := ledger.ParseDay(w.End)
	span := end.Sub(start)
	compareEnd := start.AddDate(0, 0, -1)
	compareStart := compareEnd.Add(-span)
	return Timeframe{
		Start:        w.Start,
		End:          w.End,
		CompareStart: ledger.FormatDay(compareStart),
		CompareEnd:   ledger.FormatDay(compareEnd),
	}, nil
}

// Signal is one surfaced cost movement worth attention.
type Signal struct {
	Severity      Severity  `json:"severity"`
	Provider      string    `json:"provider"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	ImpactCost    float64   `json:"impact_cost"`
	ImpactPct     float64   `json:"impact_pct"`
	Timeframe     Timeframe `json:"timeframe"`
	RootCauseHint string    `json:"root_cause_hint"`
}

// signalSpec names one dimension scanned for spikes.
type signalSpec struct {
	entityType string
	groupKey   GroupKey
	hint       string
}

var signalSpecs = []signalSpec{
	{entityType: "service", groupKey: GroupByService, hint: "Service cost spike vs previous period"},
	{entityType: "account", groupKey: GroupByAccount, hint: "Account cost spike vs previous period"},
}

// BuildSignals scans per-provider service and account deltas against the
// preceding equal-length window and surfaces positive movements at or above
// the threshold, classified by severity, ordered by absolute impact and
// truncated to limit.
func (a *Aggregator) BuildSignals(ctx context.Context, w ledger.Window, threshold float64, limit int, provider string, floors SeverityFloors) ([]Signal, error) {
	timeframe, err := BuildTimeframe(w)
	if err != nil {
		return nil, err
	}

	providers := []string{provider}
	if provider == "" {
		records, err := a.Records(ctx, w, "")
		if err != nil {
			return nil, err
		}
		providers = lo.Uniq(lo.Map(records, func(record ledger.CostRecord, _ int) string {
			return record.Provider
		}))
		sort.Strings(providers)
	}
	if len(providers) == 0 {
		return []Signal{}, nil
	}

	comparison := ledger.Window{Start: timeframe.CompareStart, End: timeframe.CompareEnd}
	// Over-sample each dimension so truncation happens on the merged set.
	sampleLimit := limit * 5
	if sampleLimit < 20 {
		sampleLimit = 20
	}

	var signals []Signal
	for _, providerName := range providers {
		for _, spec := range signalSpecs {
			deltas, err := a.GroupedDelta(ctx, w, comparison, spec.groupKey, providerName, sampleLimit)
			if err != nil {
				return nil, fmt.Errorf("failed to scan %s deltas for %s: %w", spec.entityType, providerName, err)
			}
			for _, delta := range deltas {
				if delta.Key == "" {
					continue
				}
				if delta.DeltaRatio == nil || *delta.DeltaRatio < threshold {
					continue
				}
				if delta.Delta <= 0 {
					continue
				}
				signals = append(signals, Signal{
					Severity:      ClassifySeverity(delta.Delta, *delta.DeltaRatio, threshold, floors),
					Provider:      providerName,
					EntityType:    spec.entityType,
					EntityID:      delta.Key,
					ImpactCost:    delta.Delta,
					ImpactPct:     *delta.DeltaRatio,
					Timeframe:     timeframe,
					RootCauseHint: spec.hint,
				})
			}
		}
	}

	sort.Slice(signals, func(i, j int) bool {
		return math.Abs(signals[i].ImpactCost) > math.Abs(signals[j].ImpactCost)
	})
	if limit > 0 && limit < len(signals) {
		signals = signals[:limit]
	}
	return signals, nil
}
