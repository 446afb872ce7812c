// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package pricing

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const quoteColumns = `id, model, provider, input_per_1k, output_per_1k, currency, tier, source, effective_from, effective_to, created_at`

// InsertQuote closes the model's open quote and inserts the new one in a
// single transaction. Concurrent readers see either the old or the new quote
// set, never an intermediate overlap.
func (r *PostgresRepository) InsertQuote(ctx context.Context, quote *PriceQuote) error {
	if err := quote.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin pricing update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var openID int64
	var openFrom time.Time
	err = tx.QueryRowContext(ctx, `
		SELECT id, effective_from
		FROM price_quotes
		WHERE model = $1 AND effective_to IS NULL
		FOR UPDATE
	`, quote.Model).Scan(&openID, &openFrom)
	switch {
	case err == sql.ErrNoRows:
		// No open quote; nothing to close.
	case err != nil:
		return fmt.Errorf("failed to lock open quote: %w", err)
	default:
		if !openFrom.Before(quote.EffectiveFrom) {
			return ErrQuoteOverlap
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE price_quotes SET effective_to = $1 WHERE id = $2
		`, quote.EffectiveFrom, openID); err != nil {
			return fmt.Errorf("failed to close open quote: %w", err)
		}
	}

	// Closed history must not overlap the new range either.
	var overlaps bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM price_quotes
			WHERE model = $1
			  AND effective_from < COALESCE($3, 'infinity'::timestamptz)
			  AND COALESCE(effective_to, 'infinity'::timestamptz) > $2
		)
	`, quote.Model, quote.EffectiveFrom, nullTime(quote.EffectiveTo)).Scan(&overlaps)
	if err != nil {
		return fmt.Errorf("failed to check quote overlap: %w", err)
	}
	if overlaps {
		return ErrQuoteOverlap
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO price_quotes (
			model, provider, input_per_1k, output_per_1k, currency, tier,
			source, effective_from, effective_to, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`,
		quote.Model, quote.Provider, quote.InputPer1K, quote.OutputPer1K,
		defaultCurrency(quote.Currency), string(quote.Tier), string(quote.Source),
		quote.EffectiveFrom, nullTime(quote.EffectiveTo), time.Now().UTC(),
	).Scan(&quote.ID)
	if err != nil {
		return fmt.Errorf("failed to insert quote: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit pricing update: %w", err)
	}
	return nil
}

// CurrentQuote returns the open quote for a model.
func (r *PostgresRepository) CurrentQuote(ctx context.Context, model string) (*PriceQuote, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM price_quotes
		WHERE model = $1 AND effective_to IS NULL
	`, quoteColumns), model)

	quote, err := scanQuote(row)
	if err == sql.ErrNoRows {
		return nil, ErrNoPricing
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current quote: %w", err)
	}
	return quote, nil
}

// ListQuotes returns quote history, newest first.
func (r *PostgresRepository) ListQuotes(ctx context.Context, model string) ([]PriceQuote, error) {
	query := fmt.Sprintf(`SELECT %s FROM price_quotes`, quoteColumns)
	var args []interface{}
	if model != "" {
		query += ` WHERE model = $1`
		args = append(args, model)
	}
	query += ` ORDER BY model, effective_from DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list quotes: %w", err)
	}
	defer rows.Close()

	var quotes []PriceQuote
	for rows.Next() {
		quote, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}
		quotes = append(quotes, *quote)
	}
	return quotes, rows.Err()
}

// Ping checks database connectivity.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQuote(row rowScanner) (*PriceQuote, error) {
	var quote PriceQuote
	var tier, source string
	var effectiveTo sql.NullTime

	if err := row.Scan(
		&quote.ID, &quote.Model, &quote.Provider,
		&quote.InputPer1K, &quote.OutputPer1K, &quote.Currency,
		&tier, &source, &quote.EffectiveFrom, &effectiveTo, &quote.CreatedAt,
	); err != nil {
		return nil, err
	}

	quote.Tier = ModelTier(tier)
	quote.Source = QuoteSource(source)
	if effectiveTo.Valid {
		quote.EffectiveTo = &effectiveTo.Time
	}
	return &quote, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func defaultCurrency(c string) string {
	if c == "" {
		return "USD"
	}
	return c
}
