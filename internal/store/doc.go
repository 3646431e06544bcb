// Package store persists cost records and FX rates in SQLite.
//
// The store is the only durable state in the system. Both tables are
// written exclusively through replace-by-identity upserts keyed on derived
// natural keys (the record identity digest, the date_currency rate key), so
// repeated ingestion of the same source data is idempotent and concurrent
// runs converge to last-write-wins per identity tuple.
//
// The driver is modernc.org/sqlite (pure Go, no cgo).
package store
