// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

package quota

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"
)

// SQLLedger implements Ledger on a relational database. Both PostgreSQL
// (lib/pq) and MySQL (go-sql-driver) are supported; queries are written with
// $N placeholders and rebound for MySQL.
//
// All counters live in a single request_limits table keyed by identity. Daily
// reset is logical, via the reset_date column.
type SQLLedger struct {
	db     *sql.DB
	driver string

	// Now is the clock source, overridable in tests
	Now func() time.Time
}

var placeholderRe = regexp.MustCompile(`\$\d+`)

// NewSQLLedger creates a ledger over an open database handle. driver is the
// database/sql driver name ("postgres" or "mysql").
func NewSQLLedger(db *sql.DB, driver string) *SQLLedger {
	return &SQLLedger{
		db:     db,
		driver: driver,
		Now:    time.Now,
	}
}

// EnsureSchema creates the request_limits table when it does not exist
func (l *SQLLedger) EnsureSchema(ctx context.Context) error {
	timestampType := "TIMESTAMPTZ"
	floatType := "DOUBLE PRECISION"
	if l.driver == "mysql" {
		timestampType = "DATETIME"
		floatType = "DOUBLE"
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS request_limits (
			identity        VARCHAR(255) NOT NULL,
			reset_date      CHAR(10) NOT NULL,
			message_count   INT NOT NULL DEFAULT 0,
			token_count     INT NOT NULL DEFAULT 0,
			cost_usd        %s NOT NULL DEFAULT 0,
			last_message_at %s NULL,
			PRIMARY KEY (identity)
		)`, floatType, timestampType)

	if _, err := l.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create request_limits table: %w", err)
	}
	return nil
}

// rebind converts $N placeholders to ? for the MySQL driver
func (l *SQLLedger) rebind(query string) string {
	if l.driver != "mysql" {
		return query
	}
	return placeholderRe.ReplaceAllString(query, "?")
}

// Get returns the identity's current-day record. Stale or missing rows are
// replaced with a zeroed row stamped with today's date.
func (l *SQLLedger) Get(ctx context.Context, identity string) (*UsageRecord, error) {
	if identity == "" {
		return nil, ErrInvalidIdentity
	}

	now := l.Now()
	rec, err := l.selectRecord(ctx, l.db, identity)
	if err != nil {
		return nil, err
	}

	if rec == nil || rec.Stale(now) {
		rec = NewUsageRecord(identity, now)
		if err := l.upsertZero(ctx, rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// Apply increments the identity's counters inside a transaction with a row
// lock, so concurrent updates for the same identity are serialized by the
// database.
func (l *SQLLedger) Apply(ctx context.Context, identity string, delta UsageDelta) error {
	if err := validateApply(identity, delta); err != nil {
		return err
	}

	now := l.Now()
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rec, err := l.selectRecordForUpdate(ctx, tx, identity)
	if err != nil {
		return err
	}

	if rec == nil || rec.Stale(now) {
		rec = NewUsageRecord(identity, now)
	}
	rec.MessageCount += delta.Messages
	rec.TokenCount += delta.Tokens
	rec.CumulativeCostUSD += delta.CostUSD
	if !delta.At.IsZero() {
		at := delta.At.UTC()
		rec.LastMessageAt = &at
	}

	query := l.rebind(`
		INSERT INTO request_limits
			(identity, reset_date, message_count, token_count, cost_usd, last_message_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (identity) DO UPDATE SET
			reset_date = EXCLUDED.reset_date,
			message_count = EXCLUDED.message_count,
			token_count = EXCLUDED.token_count,
			cost_usd = EXCLUDED.cost_usd,
			last_message_at = EXCLUDED.last_message_at`)
	if l.driver == "mysql" {
		query = `
		INSERT INTO request_limits
			(identity, reset_date, message_count, token_count, cost_usd, last_message_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			reset_date = VALUES(reset_date),
			message_count = VALUES(message_count),
			token_count = VALUES(token_count),
			cost_usd = VALUES(cost_usd),
			last_message_at = VALUES(last_message_at)`
	}

	if _, err := tx.ExecContext(ctx, query,
		rec.Identity, rec.ResetDate, rec.MessageCount, rec.TokenCount,
		rec.CumulativeCostUSD, nullTime(rec.LastMessageAt),
	); err != nil {
		return fmt.Errorf("failed to upsert usage record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit usage update: %w", err)
	}
	return nil
}

// Reset clears all usage counters
func (l *SQLLedger) Reset(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM request_limits`); err != nil {
		return fmt.Errorf("failed to reset request_limits: %w", err)
	}
	return nil
}

// Ping verifies database connectivity
func (l *SQLLedger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const selectRecordQuery = `
	SELECT identity, reset_date, message_count, token_count, cost_usd, last_message_at
	FROM request_limits
	WHERE identity = $1`

func (l *SQLLedger) selectRecord(ctx context.Context, q rowQuerier, identity string) (*UsageRecord, error) {
	return l.scanRecord(q.QueryRowContext(ctx, l.rebind(selectRecordQuery), identity))
}

func (l *SQLLedger) selectRecordForUpdate(ctx context.Context, tx *sql.Tx, identity string) (*UsageRecord, error) {
	return l.scanRecord(tx.QueryRowContext(ctx, l.rebind(selectRecordQuery+` FOR UPDATE`), identity))
}

func (l *SQLLedger) scanRecord(row *sql.Row) (*UsageRecord, error) {
	var rec UsageRecord
	var last sql.NullTime
	err := row.Scan(&rec.Identity, &rec.ResetDate, &rec.MessageCount,
		&rec.TokenCount, &rec.CumulativeCostUSD, &last)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read usage record: %w", err)
	}
	if last.Valid {
		t := last.Time
		rec.LastMessageAt = &t
	}
	return &rec, nil
}

func (l *SQLLedger) upsertZero(ctx context.Context, rec *UsageRecord) error {
	query := l.rebind(`
		INSERT INTO request_limits
			(identity, reset_date, message_count, token_count, cost_usd, last_message_at)
		VALUES ($1, $2, 0, 0, 0, NULL)
		ON CONFLICT (identity) DO UPDATE SET
			reset_date = EXCLUDED.reset_date,
			message_count = 0,
			token_count = 0,
			cost_usd = 0,
			last_message_at = NULL`)
	if l.driver == "mysql" {
		query = `
		INSERT INTO request_limits
			(identity, reset_date, message_count, token_count, cost_usd, last_message_at)
		VALUES (?, ?, 0, 0, 0, NULL)
		ON DUPLICATE KEY UPDATE
			reset_date = VALUES(reset_date),
			message_count = 0,
			token_count = 0,
			cost_usd = 0,
			last_message_at = NULL`
	}

	if _, err := l.db.ExecContext(ctx, query, rec.Identity, rec.ResetDate); err != nil {
		return fmt.Errorf("failed to reset stale usage record: %w", err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
