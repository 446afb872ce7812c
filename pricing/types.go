// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

// Package pricing maintains the time-versioned model pricing table and the
// cost calculator. For any model and instant at most one quote is effective;
// quote histories are non-overlapping, ordered ranges closed by each
// successive update.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteSource identifies where a quote came from. Default-catalog quotes may
// be replaced by SyncDefaults; admin overrides are always preserved.
type QuoteSource string

const (
	SourceDefault       QuoteSource = "default"
	SourceAdminOverride QuoteSource = "admin_override"
)

// ModelTier is a coarse capability/cost class used by the optimizer to find
// downgrade candidates.
type ModelTier string

const (
	TierPremium  ModelTier = "premium"
	TierStandard ModelTier = "standard"
	TierEconomy  ModelTier = "economy"
)

// PriceQuote is a time-bounded unit price for a model. Prices are per 1K
// tokens in the quote currency. EffectiveTo is nil while the quote is the
// current one for its model.
type PriceQuote struct {
	ID            int64           `json:"id,omitempty"`
	Model         string          `json:"model"`
	Provider      string          `json:"provider"`
	InputPer1K    decimal.Decimal `json:"input_per_1k"`
	OutputPer1K   decimal.Decimal `json:"output_per_1k"`
	Currency      string          `json:"currency"`
	Tier          ModelTier       `json:"tier"`
	Source        QuoteSource     `json:"source"`
	EffectiveFrom time.Time       `json:"effective_from"`
	EffectiveTo   *time.Time      `json:"effective_to,omitempty"`
	CreatedAt     time.Time       `json:"created_at,omitempty"`
}

// EffectiveAt reports whether the quote covers the given instant. Ranges are
// half-open: [EffectiveFrom, EffectiveTo).
func (q *PriceQuote) EffectiveAt(at time.Time) bool {
	if at.Before(q.EffectiveFrom) {
		return false
	}
	return q.EffectiveTo == nil || at.Before(*q.EffectiveTo)
}

// Validate checks a quote before it is inserted.
func (q *PriceQuote) Validate() error {
	if q.Model == "" {
		return ErrInvalidQuote
	}
	if q.InputPer1K.IsNegative() || q.OutputPer1K.IsNegative() {
		return ErrInvalidQuote
	}
	if q.EffectiveFrom.IsZero() {
		return ErrInvalidQuote
	}
	if q.EffectiveTo != nil && !q.EffectiveFrom.Before(*q.EffectiveTo) {
		return ErrInvalidQuote
	}
	return nil
}

// SyncResult reports what a defaults sync changed.
type SyncResult struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Preserved int `json:"preserved"`
}
