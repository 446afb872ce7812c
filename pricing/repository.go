// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package pricing

import (
	"context"
)

// Repository defines the interface for price quote persistence. Quote
// histories are shared process-wide across tenants; only writes go through
// the repository directly, reads are served from the service snapshot.
type Repository interface {
	// InsertQuote atomically closes the model's open quote at the new
	// quote's effective-from and inserts the new quote. The update either
	// fully applies or is rejected; an overlapping range returns
	// ErrQuoteOverlap.
	InsertQuote(ctx context.Context, quote *PriceQuote) error

	// CurrentQuote returns the open quote for a model, or ErrNoPricing.
	CurrentQuote(ctx context.Context, model string) (*PriceQuote, error)

	// ListQuotes returns the full quote history, newest first. An empty
	// model returns quotes for all models.
	ListQuotes(ctx context.Context, model string) ([]PriceQuote, error)

	// Ping checks storage connectivity.
	Ping(ctx context.Context) error
}
