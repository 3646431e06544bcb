// Package ledger defines the canonical cost data model and normalization.
//
// Every cost observation ingested from a cloud provider is normalized into
// a CostRecord whose identity is derived from its
// (date, provider, account, service, region, currency) tuple with a
// cryptographic digest. The derived identity makes ingestion idempotent:
// re-submitting identical source data produces the same ID and the storage
// layer upserts it over itself instead of duplicating it.
//
// The package also defines FxRate, the date-effective conversion rate from
// a currency to the reporting base currency, and the shared date-window
// helpers used by the analytics layer.
package ledger
