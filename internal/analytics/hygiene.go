package analytics

import (
	"sort"

	"github.com/uccc/cloud-cost-ledger/internal/ledger"
)

// DefaultRequiredTags is the baseline governance tag set.
var DefaultRequiredTags = []string{"owner", "cost_center", "environment"}

// EvaluateTags reports whether all required tags carry a non-empty value,
// and which are missing. The missing list preserves the order of required.
func EvaluateTags(tags map[string]string, required []string) (bool, []string) {
	var missing []string
	for _, name := range required {
		if tags[name] == "" {
			missing = append(missing, name)
		}
	}
	return len(missing) == 0, missing
}

// Coverage partitions spend into three mutually exclusive buckets that sum
// to TotalCost: fully tagged (all required tags present), untagged (no tags
// at all), and partially tagged (some but not all required tags). Costs are
// raw, not FX-converted; hygiene measures governance, not money movement.
type Coverage struct {
	RequiredTags        []string `json:"required_tags"`
	TotalCost           float64  `json:"total_cost"`
	FullyTaggedCost     float64  `json:"fully_tagged_cost"`
	PartiallyTaggedCost float64  `json:"partially_tagged_cost"`
	UntaggedCost        float64  `json:"untagged_cost"`
}

func (c *Coverage) add(record ledger.CostRecord, fullyTagged bool) {
	c.TotalCost += record.Cost
	switch {
	case fullyTagged:
		c.FullyTaggedCost += record.Cost
	case len(record.Tags) == 0:
		c.UntaggedCost += record.Cost
	default:
		c.PartiallyTaggedCost += record.Cost
	}
}

// UntaggedRecord surfaces one non-compliant record with its specific
// missing tags, to support remediation.
type UntaggedRecord struct {
	ID          string   `json:"id"`
	Date        string   `json:"date"`
	Provider    string   `json:"provider"`
	AccountID   string   `json:"account_id"`
	Service     string   `json:"service"`
	Region      string   `json:"region,omitempty"`
	Cost        float64  `json:"cost"`
	Currency    string   `json:"currency"`
	MissingTags []string `json:"missing_tags"`
}

// HygieneReport is the full tag-governance evaluation of a record set.
type HygieneReport struct {
	Coverage        Coverage         `json:"coverage"`
	UntaggedRecords []UntaggedRecord `json:"untagged_entries"`
}

// BuildHygiene evaluates every record against one required-tag set.
func BuildHygiene(records []ledger.CostRecord, required []string) HygieneReport {
	report := HygieneReport{Coverage: Coverage{RequiredTags: required}}
	for _, record := range records {
		fullyTagged, missing := EvaluateTags(record.Tags, required)
		report.Coverage.add(record, fullyTagged)
		if len(missing) > 0 {
			report.UntaggedRecords = append(report.UntaggedRecords, UntaggedRecord{
				ID:          record.ID,
				Date:        record.Date,
				Provider:    record.Provider,
				AccountID:   record.AccountID,
				Service:     record.Service,
				Region:      record.Region,
				Cost:        record.Cost,
				Currency:    record.Currency,
				MissingTags: missing,
			})
		}
	}
	return report
}

// ProviderCoverage pairs a provider with its coverage under that
// provider's own required-tag set.
type ProviderCoverage struct {
	Provider string   `json:"provider"`
	Coverage Coverage `json:"coverage"`
}

// BuildHygieneByProvider evaluates coverage independently per provider,
// resolving each provider's required-tag set through requiredFor. Tag sets
// are never mixed across providers within one bucket.
func BuildHygieneByProvider(records []ledger.CostRecord, requiredFor func(provider string) []string) []ProviderCoverage {
	byProvider := map[string]*Coverage{}
	for _, record := range records {
		coverage, ok := byProvider[record.Provider]
		if !ok {
			coverage = &Coverage{RequiredTags: requiredFor(record.Provider)}
			byProvider[record.Provider] = coverage
		}
		fullyTagged, _ := EvaluateTags(record.Tags, coverage.RequiredTags)
		coverage.add(record, fullyTagged)
	}

	providers := make([]string, 0, len(byProvider))
	for provider := range byProvider {
		providers = append(providers, provider)
	}
	sort.Strings(providers)

	result := make([]ProviderCoverage, 0, len(providers))
	for _, provider := range providers {
		result = append(result, ProviderCoverage{Provider: provider, Coverage: *byProvider[provider]})
	}
	return result
}

// UntaggedBreakdown sums non-compliant spend by service or account,
// ordered by descending total.
func UntaggedBreakdown(records []ledger.CostRecord, required []string, group GroupKey) []GroupTotal {
	totals := map[string]float64{}
	for _, record := range records {
		fullyTagged, _ := EvaluateTags(record.Tags, required)
		if fullyTagged {
			continue
		}
		key := record.Service
		if group == GroupByAccount {
			key = record.AccountID
		}
		totals[key] += record.Cost
	}

	rows := make([]GroupTotal, 0, len(totals))
	for key, total := range totals {
		rows = append(rows, GroupTotal{Key: key, TotalCost: total})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalCost != rows[j].TotalCost {
			return rows[i].TotalCost > rows[j].TotalCost
		}
		return rows[i].Key < rows[j].Key
	})
	return rows
}
