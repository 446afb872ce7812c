// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package pricing

import "errors"

var (
	// ErrNoPricing is returned when no quote is effective for a model at the
	// requested instant. Callers decide whether to reject or record an
	// unknown cost; this is never silently treated as zero.
	ErrNoPricing = errors.New("no pricing available for model")

	// ErrInvalidQuote is returned for a quote with missing model, negative
	// prices, or an inverted effective range.
	ErrInvalidQuote = errors.New("invalid price quote")

	// ErrQuoteOverlap is returned when inserting a quote whose effective
	// range would overlap an existing quote for the same model.
	ErrQuoteOverlap = errors.New("price quote overlaps an existing quote")

	// ErrStorageUnavailable is returned for transient storage failures.
	ErrStorageUnavailable = errors.New("pricing storage unavailable")
)
