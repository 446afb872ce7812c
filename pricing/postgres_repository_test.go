// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package pricing

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQuote(from time.Time) *PriceQuote {
	return &PriceQuote{
		Model:         "gpt-4",
		Provider:      "openai",
		InputPer1K:    decimal.RequireFromString("0.025"),
		OutputPer1K:   decimal.RequireFromString("0.05"),
		Source:        SourceAdminOverride,
		EffectiveFrom: from,
	}
}

func TestInsertQuoteClosesOpenQuote(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	openFrom := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	newFrom := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, effective_from`).
		WithArgs("gpt-4").
		WillReturnRows(sqlmock.NewRows([]string{"id", "effective_from"}).AddRow(7, openFrom))
	mock.ExpectExec(`UPDATE price_quotes SET effective_to`).
		WithArgs(newFrom, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO price_quotes`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(8))
	mock.ExpectCommit()

	repo := NewPostgresRepository(db)
	quote := newQuote(newFrom)
	require.NoError(t, repo.InsertQuote(context.Background(), quote))
	assert.Equal(t, int64(8), quote.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertQuoteFirstQuoteForModel(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, effective_from`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "effective_from"}))
	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO price_quotes`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	repo := NewPostgresRepository(db)
	require.NoError(t, repo.InsertQuote(context.Background(), newQuote(time.Now().UTC())))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertQuoteRejectsBackdatedUpdate(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	openFrom := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, effective_from`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "effective_from"}).AddRow(7, openFrom))
	mock.ExpectRollback()

	repo := NewPostgresRepository(db)
	err = repo.InsertQuote(context.Background(), newQuote(openFrom.Add(-time.Hour)))
	require.ErrorIs(t, err, ErrQuoteOverlap)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertQuoteRejectsHistoricalOverlap(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, effective_from`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "effective_from"}))
	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	repo := NewPostgresRepository(db)
	err = repo.InsertQuote(context.Background(), newQuote(time.Now().UTC()))
	require.ErrorIs(t, err, ErrQuoteOverlap)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCurrentQuoteNotFound(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM price_quotes`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "model", "provider", "input_per_1k", "output_per_1k",
			"currency", "tier", "source", "effective_from", "effective_to", "created_at",
		}))

	repo := NewPostgresRepository(db)
	_, err = repo.CurrentQuote(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNoPricing)
}
