package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// RawRecord is a provider-supplied cost row before normalization. Optional
// fields (account name, region, tags) may be empty.
type RawRecord struct {
	Date        string            `json:"date"`
	Provider    string            `json:"provider"`
	AccountID   string            `json:"account_id"`
	AccountName string            `json:"account_name"`
	Service     string            `json:"service"`
	Region      string            `json:"region"`
	Cost        float64           `json:"cost"`
	Currency    string            `json:"currency"`
	Tags        map[string]string `json:"tags"`
}

// CostID derives the content-based identity of a cost record from its
// identity tuple. The digest is deterministic, so re-ingesting the same
// source data produces the same ID and upserts over itself.
func CostID(date, provider, accountID, service, region, currency string) string {
	raw := strings.Join([]string{date, provider, accountID, service, region, currency}, "|")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Normalize turns a raw provider row into a canonical CostRecord. A missing
// region normalizes to the empty string and missing tags to an empty map so
// the derived identity stays stable. Rows missing a required field are
// rejected with a ValidationError.
func Normalize(raw RawRecord, ingestedAt time.Time) (CostRecord, error) {
	if _, err := ParseDay(raw.Date); err != nil {
		return CostRecord{}, &ValidationError{Field: "date", Reason: "expected YYYY-MM-DD, got " + quoteOrEmpty(raw.Date)}
	}
	if raw.Provider == "" {
		return CostRecord{}, &ValidationError{Field: "provider", Reason: "missing"}
	}
	if raw.AccountID == "" {
		return CostRecord{}, &ValidationError{Field: "account_id", Reason: "missing"}
	}
	if raw.Service == "" {
		return CostRecord{}, &ValidationError{Field: "service", Reason: "missing"}
	}
	if raw.Currency == "" {
		return CostRecord{}, &ValidationError{Field: "currency", Reason: "missing"}
	}
	if raw.Cost < 0 {
		return CostRecord{}, &ValidationError{Field: "cost", Reason: "must be non-negative"}
	}

	tags := raw.Tags
	if tags == nil {
		tags = map[string]string{}
	}

	return CostRecord{
		ID:          CostID(raw.Date, raw.Provider, raw.AccountID, raw.Service, raw.Region, raw.Currency),
		Date:        raw.Date,
		Provider:    raw.Provider,
		AccountID:   raw.AccountID,
		AccountName: raw.AccountName,
		Service:     raw.Service,
		Region:      raw.Region,
		Cost:        raw.Cost,
		Currency:    raw.Currency,
		Tags:        tags,
		IngestedAt:  ingestedAt,
	}, nil
}

// NormalizeBatch normalizes every row it can. A malformed row is rejected
// individually and reported in the returned error slice; it never aborts
// the rest of the batch.
func NormalizeBatch(raws []RawRecord, ingestedAt time.Time) ([]CostRecord, []error) {
	records := make([]CostRecord, 0, len(raws))
	var rejected []error
	for _, raw := range raws {
		record, err := Normalize(raw, ingestedAt)
		if err != nil {
			rejected = append(rejected, err)
			continue
		}
		records = append(records, record)
	}
	return records, rejected
}

func quoteOrEmpty(s string) string {
	if s == "" {
		return "empty"
	}
	return "\"" + s + "\""
}
