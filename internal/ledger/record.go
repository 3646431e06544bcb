package ledger

import (
	"fmt"
	"time"
)

// DateLayout is the canonical day format used throughout the ledger.
const DateLayout = "2006-01-02"

// CostRecord is one billed-cost observation for a
// (date, provider, account, service, region, currency) tuple.
type CostRecord struct {
	ID          string            `json:"id"`
	Date        string            `json:"date"` // YYYY-MM-DD
	Provider    string            `json:"provider"`
	AccountID   string            `json:"account_id"`
	AccountName string            `json:"account_name,omitempty"`
	Service     string            `json:"service"`
	Region      string            `json:"region,omitempty"`
	Cost        float64           `json:"cost"`
	Currency    string            `json:"currency"`
	Tags        map[string]string `json:"tags"`
	IngestedAt  time.Time         `json:"ingested_at"`
}

// FxRate is the conversion rate from a currency to the reporting base
// currency, valid as of a date. Rates are append-only; lookups always
// select the most recent rate at or before a target date.
type FxRate struct {
	ID           string  `json:"id"`
	Date         string  `json:"date"` // YYYY-MM-DD
	BaseCurrency string  `json:"base_currency"`
	Currency     string  `json:"currency"`
	Rate         float64 `json:"rate"`
}

/// RateID derives the natural key for an FX rate: one rate per (date, currency).
func RateID(date, currency string) string {
	return date + "_" + currency
}

// ProviderFreshness reports the most recent record date and ingest time
// seen for one provider.
type ProviderFreshness struct {
	Provider       string    `json:"provider"`
	LastEntryDate  string    `json:"last_entry_date"`
	LastIngestedAt time.Time `json:"last_ingested_at"`
}

// Window is a closed date interval [Start, End], both YYYY-MM-DD.
type Window struct {
	Start string
	End   string
}

// Validate checks that both bounds parse and that Start does not
// exceed End.
func (w Window) Validate() error {
	start, err := ParseDay(w.Start)
	if err != nil {
		return &ValidationError{Field: "from", Reason: err.Error()}
	}
	end, err := ParseDay(w.End)
	if err != nil {
		return &ValidationError{Field: "to", Reason: err.Error()}
	}
	if start.After(end) {
		return &ValidationError{Field: "from", Reason: fmt.Sprintf("start %s is after end %s", w.Start, w.End)}
	}
	return nil
}

// ParseDay parses a YYYY-MM-DD day string.
func ParseDay(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// FormatDay renders t as a YYYY-MM-DD day string.
func FormatDay(t time.Time) string {
	return t.Format(DateLayout)
}

// LastNDays returns the closed window of n days ending at end.
func LastNDays(end time.Time, n int) Window {
	if n < 1 {
		n = 1
	}
	return Window{
		Start: FormatDay(end.AddDate(0, 0, -(n - 1))),
		End:   FormatDay(end),
	}
}

/// ValidationError marks malformed input rejected at the boundary: a raw
// record missing a required field, or an invalid date range.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
