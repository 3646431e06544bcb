package analytics

import (
	"context"
	"sort"
	"strings"

	"github.com/uccc/cloud-cost-ledger/internal/fx"
	"github.com/uccc/cloud-cost-ledger/internal/ledger"
)

// MissingTagBucket is the group key assigned to records that do not carry
// the tag being grouped by. Absent tags are surfaced explicitly, never
// silently dropped.
const MissingTagBucket = "(missing)"

// RecordSource is the narrow read interface the analytics layer needs from
// the persistence engine.
type RecordSource interface {
	QueryRange(ctx context.Context, start, end string) ([]ledger.CostRecord, error)
	Freshness(ctx context.Context) ([]ledger.ProviderFreshness, error)
}

// GroupKey selects the dimension grouped sums are keyed by.
type GroupKey string

// Supported grouping dimensions. Tag grouping is built with TagKey.
const (
	GroupByProvider GroupKey = "provider"
	GroupByService  GroupKey = "service"
	GroupByAccount  GroupKey = "account"
	GroupByDate     GroupKey = "date"
)

// TagKey builds the group key for an arbitrary tag name.
func TagKey(name string) GroupKey {
	return GroupKey("tag:" + name)
}

// valueOf resolves the record's value for this grouping dimension.
func (k GroupKey) valueOf(record ledger.CostRecord) string {
	switch k {
	case GroupByProvider:
		return record.Provider
	case GroupByService:
		return record.Service
	case GroupByAccount:
		return record.AccountID
	case GroupByDate:
		return record.Date
	}
	if name, ok := strings.CutPrefix(string(k), "tag:"); ok {
		if value := record.Tags[name]; value != "" {
			return value
		}
		return MissingTagBucket
	}
	return ""
}

// GroupTotal is one grouped-sum row in the reporting currency.
type GroupTotal struct {
	Key       string  `json:"key"`
	TotalCost float64 `json:"total_cost"`
}

// GroupedOptions restricts and pages a grouped query. Search matches the
// group key's value case-insensitively as a substring. Limit <= 0 means
// no limit; Offset applies after ordering.
type GroupedOptions struct {
	Provider string
	Search   string
	Limit    int
	Offset   int
}

// Aggregator computes monetary rollups over stored records. Every sum is
// taken after FX conversion, never over mixed-currency raw costs.
type Aggregator struct {
	source    RecordSource
	converter *fx.Converter
}

// NewAggregator creates an Aggregator over the given source and converter.
func NewAggregator(source RecordSource, converter *fx.Converter) *Aggregator {
	return &Aggregator{source: source, converter: converter}
}

// BaseCurrency returns the reporting currency totals are expressed in.
func (a *Aggregator) BaseCurrency() string {
	return a.converter.BaseCurrency()
}

// Records returns the raw records inside the window, optionally restricted
// to one provider. Tag hygiene consumes these unconverted.
func (a *Aggregator) Records(ctx context.Context, w ledger.Window, provider string) ([]ledger.CostRecord, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	records, err := a.source.QueryRange(ctx, w.Start, w.End)
	if err != nil {
		return nil, err
	}
	if provider == "" {
		return records, nil
	}
	filtered := records[:0:0]
	for _, record := range records {
		if record.Provider == provider {
			filtered = append(filtered, record)
		}
	}
	return filtered, nil
}

// Freshness reports per-provider data recency.
func (a *Aggregator) Freshness(ctx context.Context) ([]ledger.ProviderFreshness, error) {
	return a.source.Freshness(ctx)
}

// Total returns the window's converted cost sum.
func (a *Aggregator) Total(ctx context.Context, w ledger.Window) (float64, error) {
	records, err := a.Records(ctx, w, "")
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, record := range records {
		amount, err := a.converter.Convert(ctx, record)
		if err != nil {
			return 0, err
		}
		total += amount
	}
	return total, nil
}

// Grouped returns converted cost sums keyed by the grouping dimension.
// Rows are ordered by descending total with ties broken by key ascending,
// except when grouping by date, which is chronological ascending.
func (a *Aggregator) Grouped(ctx context.Context, w ledger.Window, key GroupKey, opts GroupedOptions) ([]GroupTotal, error) {
	records, err := a.Records(ctx, w, opts.Provider)
	if err != nil {
		return nil, err
	}

	search := strings.ToLower(opts.Search)
	totals := map[string]float64{}
	for _, record := range records {
		value := key.valueOf(record)
		if search != "" && !strings.Contains(strings.ToLower(value), search) {
			continue
		}
		amount, err := a.converter.Convert(ctx, record)
		if err != nil {
			return nil, err
		}
		totals[value] += amount
	}

	rows := make([]GroupTotal, 0, len(totals))
	for value, total := range totals {
		rows = append(rows, GroupTotal{Key: value, TotalCost: total})
	}

	if key == GroupByDate {
		sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	} else {
		sort.Slice(rows, func(i, j int) bool {
			if rows[i].TotalCost != rows[j].TotalCost {
				return rows[i].TotalCost > rows[j].TotalCost
			}
			return rows[i].Key < rows[j].Key
		})
	}

	return paginate(rows, opts.Limit, opts.Offset), nil
}

// TopServices is grouped-by-service with an enforced limit.
func (a *Aggregator) TopServices(ctx context.Context, w ledger.Window, n int) ([]GroupTotal, error) {
	if n < 1 {
		n = 1
	}
	return a.Grouped(ctx, w, GroupByService, GroupedOptions{Limit: n})
}

// DailyTotal is one day's converted cost sum.
type DailyTotal struct {
	Date      string  `json:"date"`
	TotalCost float64 `json:"total_cost"`
}

// DailyTotals returns the window's converted per-day sums in chronological
// order. Days with no records are absent, not zero-filled.
func (a *Aggregator) DailyTotals(ctx context.Context, w ledger.Window) ([]DailyTotal, error) {
	rows, err := a.Grouped(ctx, w, GroupByDate, GroupedOptions{})
	if err != nil {
		return nil, err
	}
	totals := make([]DailyTotal, len(rows))
	for i, row := range rows {
		totals[i] = DailyTotal{Date: row.Key, TotalCost: row.TotalCost}
	}
	return totals, nil
}

// DailyTotalsByProvider partitions the window's converted per-day sums into
// one independent chronological series per provider.
func (a *Aggregator) DailyTotalsByProvider(ctx context.Context, w ledger.Window) (map[string][]DailyTotal, error) {
	records, err := a.Records(ctx, w, "")
	if err != nil {
		return nil, err
	}

	type cell struct{ provider, date string }
	totals := map[cell]float64{}
	for _, record := range records {
		amount, err := a.converter.Convert(ctx, record)
		if err != nil {
			return nil, err
		}
		totals[cell{record.Provider, record.Date}] += amount
	}

	series := map[string][]DailyTotal{}
	for key, total := range totals {
		series[key.provider] = append(series[key.provider], DailyTotal{Date: key.date, TotalCost: total})
	}
	for provider := range series {
		sort.Slice(series[provider], func(i, j int) bool {
			return series[provider][i].Date < series[provider][j].Date
		})
	}
	return series, nil
}

func paginate(rows []GroupTotal, limit, offset int) []GroupTotal {
	if offset > 0 {
		if offset >= len(rows) {
			return []GroupTotal{}
		}
		rows = rows[offset:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
