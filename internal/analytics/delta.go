package analytics

import (
	"context"
	"sort"

	"github.com/samber/lo"

	"github.com/uccc/cloud-cost-ledger/internal/ledger"
)

// DeltaEntry compares one group key's converted cost across two windows.
// DeltaRatio is nil when the comparison window had no spend for the key:
// brand-new spend has no defined percentage change.
type DeltaEntry struct {
	Key          string   `json:"key"`
	CurrentCost  float64  `json:"current_cost"`
	PreviousCost float64  `json:"previous_cost"`
	Delta        float64  `json:"delta"`
	DeltaRatio   *float64 `json:"delta_ratio"`
}

// GroupedDelta compares grouped totals between the current and comparison
// windows. The result covers the union of keys seen in either window, with
// a key absent from one side contributing zero there. Entries are ordered
// by delta descending (largest increase first) and truncated to limit.
func (a *Aggregator) GroupedDelta(ctx context.Context, current, comparison ledger.Window, key GroupKey, provider string, limit int) ([]DeltaEntry, error) {
	currentRows, err := a.Grouped(ctx, current, key, GroupedOptions{Provider: provider})
	if err != nil {
		return nil, err
	}
	previousRows, err := a.Grouped(ctx, comparison, key, GroupedOptions{Provider: provider})
	if err != nil {
		return nil, err
	}

	currentMap := lo.SliceToMap(currentRows, func(row GroupTotal) (string, float64) {
		return row.Key, row.TotalCost
	})
	previousMap := lo.SliceToMap(previousRows, func(row GroupTotal) (string, float64) {
		return row.Key, row.TotalCost
	})

	keys := lo.Union(lo.Keys(currentMap), lo.Keys(previousMap))
	entries := make([]DeltaEntry, 0, len(keys))
	for _, groupKey := range keys {
		curr := currentMap[groupKey]
		prev := previousMap[groupKey]
		entry := DeltaEntry{
			Key:          groupKey,
			CurrentCost:  curr,
			PreviousCost: prev,
			Delta:        curr - prev,
		}
		if prev != 0 {
			ratio := entry.Delta / prev
			entry.DeltaRatio = &ratio
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Delta != entries[j].Delta {
			return entries[i].Delta > entries[j].Delta
		}
		return entries[i].Key < entries[j].Key
	})

	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}
