// Package fx provides temporal currency conversion into the reporting
// base currency.
//
// The Converter reprices heterogeneous-currency cost records using a
// two-hop cross rate through the rate table's base currency, always
// selecting the latest rate at or before the record's date. When no rate
// exists for either leg the raw cost is passed through unconverted; this
// degraded behavior trades precision for completeness so totals never
// silently lose records.
//
// ECBClient ingests the European Central Bank historical reference-rate
// feed as the rate table source.
package fx
