package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/uccc/cloud-cost-ledger/internal/ledger"
)

const schema = `
CREATE TABLE IF NOT EXISTS cost_records (
	id           TEXT PRIMARY KEY,
	date         TEXT NOT NULL,
	provider     TEXT NOT NULL,
	account_id   TEXT NOT NULL,
	account_name TEXT NOT NULL DEFAULT '',
	service      TEXT NOT NULL,
	region       TEXT NOT NULL DEFAULT '',
	cost         REAL NOT NULL,
	currency     TEXT NOT NULL,
	tags         TEXT NOT NULL DEFAULT '{}',
	ingested_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cost_records_date ON cost_records(date);
CREATE INDEX IF NOT EXISTS idx_cost_records_date_provider ON cost_records(date, provider);

CREATE TABLE IF NOT EXISTS fx_rates (
	id            TEXT PRIMARY KEY,
	date          TEXT NOT NULL,
	base_currency TEXT NOT NULL,
	currency      TEXT NOT NULL,
	rate          REAL NOT NULL,
	UNIQUE(date, currency)
);
CREATE INDEX IF NOT EXISTS idx_fx_rates_currency_date ON fx_rates(currency, date);
`

// Store persists cost records and FX rates in a SQLite database. All writes
// are replace-by-identity upserts keyed on the derived natural key, so
// interleaved writers converge to last-write-wins without torn rows.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the database at path and applies the
// schema. Use path ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc.org/sqlite serializes writes itself; a single connection
	// avoids SQLITE_BUSY under concurrent collector runs.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// UpsertRecords writes the batch in one transaction. Each record is a
// full-value replace keyed by its derived identity; re-ingesting the same
// identity tuple overwrites the prior row, never duplicates it.
func (s *Store) UpsertRecords(ctx context.Context, records []ledger.CostRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cost_records
			(id, date, provider, account_id, account_name, service, region, cost, currency, tags, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			provider = excluded.provider,
			account_id = excluded.account_id,
			account_name = excluded.account_name,
			service = excluded.service,
			region = excluded.region,
			cost = excluded.cost,
			currency = excluded.currency,
			tags = excluded.tags,
			ingested_at = excluded.ingested_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		tags, err := json.Marshal(record.Tags)
		if err != nil {
			return fmt.Errorf("failed to encode tags for %s: %w", record.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			record.ID, record.Date, record.Provider, record.AccountID,
			record.AccountName, record.Service, record.Region,
			record.Cost, record.Currency, string(tags),
			record.IngestedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("failed to upsert record %s: %w", record.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}
	return nil
}

// QueryRange returns all records whose date falls inside the closed window,
// ordered by date then provider.
func (s *Store) QueryRange(ctx context.Context, start, end string) ([]ledger.CostRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, provider, account_id, account_name, service, region, cost, currency, tags, ingested_at
		FROM cost_records
		WHERE date BETWEEN ? AND ?
		ORDER BY date, provider, id`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []ledger.CostRecord
	for rows.Next() {
		var record ledger.CostRecord
		var tags, ingestedAt string
		if err := rows.Scan(
			&record.ID, &record.Date, &record.Provider, &record.AccountID,
			&record.AccountName, &record.Service, &record.Region,
			&record.Cost, &record.Currency, &tags, &ingestedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &record.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags for %s: %w", record.ID, err)
		}
		if record.Tags == nil {
			record.Tags = map[string]string{}
		}
		if ts, err := time.Parse(time.RFC3339Nano, ingestedAt); err == nil {
			record.IngestedAt = ts
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// CountRecords returns the total number of stored cost records.
func (s *Store) CountRecords(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cost_records`).Scan(&count)
	return count, err
}

// Freshness reports, per provider, the most recent record date and the most
// recent ingest time, ordered by provider.
func (s *Store) Freshness(ctx context.Context) ([]ledger.ProviderFreshness, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider, MAX(date), MAX(ingested_at)
		FROM cost_records
		GROUP BY provider
		ORDER BY provider`)
	if err != nil {
		return nil, fmt.Errorf("failed to query freshness: %w", err)
	}
	defer rows.Close()

	var result []ledger.ProviderFreshness
	for rows.Next() {
		var f ledger.ProviderFreshness
		var ingestedAt string
		if err := rows.Scan(&f.Provider, &f.LastEntryDate, &ingestedAt); err != nil {
			return nil, fmt.Errorf("failed to scan freshness: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, ingestedAt); err == nil {
			f.LastIngestedAt = ts
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

// UpsertRates writes the rate batch in one transaction, replacing any prior
// rate for the same (date, currency).
func (s *Store) UpsertRates(ctx context.Context, rates []ledger.FxRate) error {
	if len(rates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO fx_rates (id, date, base_currency, currency, rate)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			base_currency = excluded.base_currency,
			currency = excluded.currency,
			rate = excluded.rate`)
	if err != nil {
		return fmt.Errorf("failed to prepare rate upsert: %w", err)
	}
	defer stmt.Close()

	for _, rate := range rates {
		if _, err := stmt.ExecContext(ctx, rate.ID, rate.Date, rate.BaseCurrency, rate.Currency, rate.Rate); err != nil {
			return fmt.Errorf("failed to upsert rate %s: %w", rate.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rate upsert: %w", err)
	}
	return nil
}

// LatestRateAtOrBefore returns the most recent rate for currency whose date
// does not exceed the target date. The bool result is false when no such
// rate exists.
func (s *Store) LatestRateAtOrBefore(ctx context.Context, currency, date string) (ledger.FxRate, bool, error) {
	var rate ledger.FxRate
	err := s.db.QueryRowContext(ctx, `
		SELECT id, date, base_currency, currency, rate
		FROM fx_rates
		WHERE currency = ? AND date <= ?
		ORDER BY date DESC
		LIMIT 1`, currency, date).
		Scan(&rate.ID, &rate.Date, &rate.BaseCurrency, &rate.Currency, &rate.Rate)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.FxRate{}, false, nil
	}
	if err != nil {
		return ledger.FxRate{}, false, fmt.Errorf("failed to query rate: %w", err)
	}
	return rate, true, nil
}
