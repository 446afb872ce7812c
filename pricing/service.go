// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package pricing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agentcost-ai/agentcost-backend/shared/logger"
)

// seedEpoch is the effective-from used when seeding an empty table so that
// historical backfills still resolve to a quote.
var seedEpoch = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

// Service resolves model prices against the quote history. Reads are served
// from a read-mostly in-process snapshot that is replaced wholesale after
// every write, so a request never observes a half-updated quote set.
type Service struct {
	repo Repository
	log  *logger.Logger

	mu       sync.RWMutex
	snapshot map[string][]PriceQuote // per model, ordered by effective_from
}

// NewService creates a pricing service and loads the initial snapshot.
func NewService(ctx context.Context, repo Repository) (*Service, error) {
	s := &Service{
		repo: repo,
		log:  logger.New("pricing"),
	}
	if err := s.reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Resolve returns the quote effective for the model at the given instant.
// An unknown model or an instant outside all quote ranges returns
// ErrNoPricing; the caller decides between rejecting and recording an
// unknown cost.
func (s *Service) Resolve(model string, at time.Time) (*PriceQuote, error) {
	s.mu.RLock()
	quotes := s.snapshot[model]
	s.mu.RUnlock()

	for i := range quotes {
		if quotes[i].EffectiveAt(at) {
			q := quotes[i]
			return &q, nil
		}
	}
	return nil, ErrNoPricing
}

// UpdateQuote inserts an admin-supplied quote, closing the previous open
// quote at the new effective-from, and refreshes the snapshot.
func (s *Service) UpdateQuote(ctx context.Context, quote *PriceQuote) error {
	if quote.Source == "" {
		quote.Source = SourceAdminOverride
	}
	if quote.EffectiveFrom.IsZero() {
		quote.EffectiveFrom = time.Now().UTC()
	}
	if quote.Tier == "" {
		quote.Tier = CatalogTier(quote.Model)
	}
	if err := quote.Validate(); err != nil {
		return err
	}
	if err := s.repo.InsertQuote(ctx, quote); err != nil {
		return err
	}

	s.log.Info("", "", "price quote updated", map[string]interface{}{
		"model":  quote.Model,
		"source": string(quote.Source),
	})
	return s.reload(ctx)
}

// SyncDefaults seeds or refreshes the baseline catalog. Only models whose
// current quote is default-origin are updated; admin overrides are
// preserved. The sync either fully applies per model or leaves that model
// untouched.
func (s *Service) SyncDefaults(ctx context.Context) (*SyncResult, error) {
	now := time.Now().UTC()
	result := &SyncResult{}

	for _, entry := range DefaultCatalog {
		current, err := s.repo.CurrentQuote(ctx, entry.Model)
		switch {
		case err == ErrNoPricing:
			quote := catalogQuote(entry, seedEpoch)
			if err := s.repo.InsertQuote(ctx, quote); err != nil {
				return nil, fmt.Errorf("failed to seed %s: %w", entry.Model, err)
			}
			result.Created++
		case err != nil:
			return nil, err
		case current.Source == SourceAdminOverride:
			result.Preserved++
		case current.InputPer1K.Equal(entry.InputPer1K) && current.OutputPer1K.Equal(entry.OutputPer1K):
			result.Skipped++
		default:
			quote := catalogQuote(entry, now)
			if err := s.repo.InsertQuote(ctx, quote); err != nil {
				return nil, fmt.Errorf("failed to update %s: %w", entry.Model, err)
			}
			result.Updated++
		}
	}

	s.log.Info("", "", "pricing defaults synced", map[string]interface{}{
		"created":   result.Created,
		"updated":   result.Updated,
		"skipped":   result.Skipped,
		"preserved": result.Preserved,
	})
	return result, s.reload(ctx)
}

// ListQuotes returns quote history from storage, newest first.
func (s *Service) ListQuotes(ctx context.Context, model string) ([]PriceQuote, error) {
	return s.repo.ListQuotes(ctx, model)
}

// Models returns the models with at least one quote in the snapshot.
func (s *Service) Models() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	models := make([]string, 0, len(s.snapshot))
	for model := range s.snapshot {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

// IsHealthy checks if pricing storage is reachable.
func (s *Service) IsHealthy(ctx context.Context) bool {
	return s.repo.Ping(ctx) == nil
}

// reload rebuilds the snapshot from storage and swaps it in atomically.
func (s *Service) reload(ctx context.Context) error {
	quotes, err := s.repo.ListQuotes(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to load pricing snapshot: %w", err)
	}

	snapshot := make(map[string][]PriceQuote)
	for _, q := range quotes {
		snapshot[q.Model] = append(snapshot[q.Model], q)
	}
	for model := range snapshot {
		qs := snapshot[model]
		sort.Slice(qs, func(i, j int) bool { return qs[i].EffectiveFrom.Before(qs[j].EffectiveFrom) })
	}

	s.mu.Lock()
	s.snapshot = snapshot
	s.mu.Unlock()
	return nil
}

func catalogQuote(entry CatalogEntry, from time.Time) *PriceQuote {
	return &PriceQuote{
		Model:         entry.Model,
		Provider:      entry.Provider,
		InputPer1K:    entry.InputPer1K,
		OutputPer1K:   entry.OutputPer1K,
		Currency:      "USD",
		Tier:          entry.Tier,
		Source:        SourceDefault,
		EffectiveFrom: from,
	}
}
