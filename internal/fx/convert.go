package fx

import (
	"context"

	"github.com/uccc/cloud-cost-ledger/internal/ledger"
)

// RateLookup resolves the most recent FX rate at or before a target date.
// The bool result is false when no rate exists on or before that date.
type RateLookup interface {
	LatestRateAtOrBefore(ctx context.Context, currency, date string) (ledger.FxRate, bool, error)
}

// Converter reprices cost records into the reporting base currency using
// point-in-time rates. Rates are always selected at or before the record's
// date, never forward, so historical totals stay reproducible as new rates
// are ingested.
type Converter struct {
	base  string
	rates RateLookup
}

// NewConverter creates a Converter reporting in the given base currency.
func NewConverter(baseCurrency string, rates RateLookup) *Converter {
	return &Converter{base: baseCurrency, rates: rates}
}

// BaseCurrency returns the reporting currency all conversions target.
func (c *Converter) BaseCurrency() string {
	return c.base
}

// Convert returns the record's cost in the reporting currency as of the
// record's date. When the record is already in the base currency the cost
// is returned untouched, with no rounding drift. When FX history is
// incomplete for either leg of the cross rate, the raw cost is returned
// unconverted: a documented approximation, not an error, so incomplete rate
// tables never drop spend from totals.
func (c *Converter) Convert(ctx context.Context, record ledger.CostRecord) (float64, error) {
	if record.Currency == c.base {
		return record.Cost, nil
	}

	local, ok, err := c.rates.LatestRateAtOrBefore(ctx, record.Currency, record.Date)
	if err != nil {
		return 0, err
	}
	if !ok {
		return record.Cost, nil
	}

	base, ok, err := c.rates.LatestRateAtOrBefore(ctx, c.base, record.Date)
	if err != nil {
		return 0, err
	}
	if !ok {
		return record.Cost, nil
	}

	// Two-hop cross rate through the rate table's base currency. Rates are
	// quoted as units of currency per one unit of that base.
	return record.Cost / local.Rate * base.Rate, nil
}
