// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package optimize

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"github.com/agentcost-ai/agentcost-backend/analytics"
	"github.com/agentcost-ai/agentcost-backend/shared/logger"
)

// DefaultLookbackDays is the analysis window when the client does not ask
// for one.
const DefaultLookbackDays = 30

// cacheTTL keeps recomputation off the hot path without serving stale
// advice for long.
const cacheTTL = 5 * time.Minute

// StatsProvider is the slice of the analytics service the analyzer needs.
type StatsProvider interface {
	AgentModel(ctx context.Context, projectID string, window analytics.Window) ([]analytics.AgentModelStats, error)
	Overview(ctx context.Context, projectID string, window analytics.Window) (*analytics.Overview, error)
}

// Analyzer runs the rule set over per-(agent, model) aggregates and ranks
// the results.
type Analyzer struct {
	stats StatsProvider
	rules []Rule
	cache *redis.Client
	log   *logger.Logger
}

// NewAnalyzer creates an analyzer. cache may be nil to disable caching.
func NewAnalyzer(stats StatsProvider, cache *redis.Client, rules ...Rule) *Analyzer {
	return &Analyzer{
		stats: stats,
		rules: rules,
		cache: cache,
		log:   logger.New("optimize"),
	}
}

// Analyze computes ranked suggestions for the trailing lookback window.
// Results are deduplicated per (agent, type), floored at the actionable
// minimum and sorted by monthly savings, largest first.
func (a *Analyzer) Analyze(ctx context.Context, projectID string, lookbackDays int) ([]Suggestion, error) {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}

	cacheKey := fmt.Sprintf("optimizations:%s:%d", projectID, lookbackDays)
	if cached := a.fromCache(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	now := time.Now().UTC()
	window := analytics.Window{Start: now.AddDate(0, 0, -lookbackDays), End: now}

	stats, err := a.stats.AgentModel(ctx, projectID, window)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage aggregates: %w", err)
	}

	best := make(map[string]Suggestion)
	for _, st := range stats {
		for _, rule := range a.rules {
			s := rule.Evaluate(st)
			if s == nil || s.EstimatedMonthlySavings.LessThan(minActionableSavings) {
				continue
			}
			s.Priority = priorityFor(s.EstimatedMonthlySavings)

			key := s.AgentName + "|" + string(s.Type)
			if prev, ok := best[key]; !ok || s.EstimatedMonthlySavings.GreaterThan(prev.EstimatedMonthlySavings) {
				best[key] = *s
			}
		}
	}

	suggestions := make([]Suggestion, 0, len(best))
	for _, s := range best {
		suggestions = append(suggestions, s)
	}
	sort.Slice(suggestions, func(i, j int) bool {
		if !suggestions[i].EstimatedMonthlySavings.Equal(suggestions[j].EstimatedMonthlySavings) {
			return suggestions[i].EstimatedMonthlySavings.GreaterThan(suggestions[j].EstimatedMonthlySavings)
		}
		return suggestions[i].AgentName < suggestions[j].AgentName
	})

	a.toCache(ctx, cacheKey, suggestions)
	return suggestions, nil
}

// Summary computes the ranked suggestions and reduces them against the
// project's extrapolated monthly spend.
func (a *Analyzer) Summary(ctx context.Context, projectID string, lookbackDays int) (*Summary, error) {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}

	suggestions, err := a.Analyze(ctx, projectID, lookbackDays)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	window := analytics.Window{Start: now.AddDate(0, 0, -lookbackDays), End: now}
	overview, err := a.stats.Overview(ctx, projectID, window)
	if err != nil {
		return nil, fmt.Errorf("failed to load spend overview: %w", err)
	}

	monthlySpend := monthlyFrom(overview.TotalCost, window.Days())
	return Summarize(suggestions, monthlySpend), nil
}

// Summarize reduces a ranked suggestion list to the dashboard headline.
// monthlySpend is the project's extrapolated monthly spend; zero spend
// yields a zero savings percent.
func Summarize(suggestions []Suggestion, monthlySpend decimal.Decimal) *Summary {
	summary := &Summary{
		TotalMonthlySavings: decimal.Zero,
		SuggestionCount:     len(suggestions),
		ByType:              make(map[SuggestionType]int),
		ByPriority:          make(map[Priority]int),
	}

	for _, s := range suggestions {
		summary.TotalMonthlySavings = summary.TotalMonthlySavings.Add(s.EstimatedMonthlySavings)
		summary.ByType[s.Type]++
		summary.ByPriority[s.Priority]++
	}

	if monthlySpend.IsPositive() {
		percent, _ := summary.TotalMonthlySavings.
			Div(monthlySpend).
			Mul(decimal.NewFromInt(100)).
			Round(2).
			Float64()
		summary.SavingsPercent = percent
	}

	top := len(suggestions)
	if top > 3 {
		top = 3
	}
	summary.Top = append([]Suggestion(nil), suggestions[:top]...)
	return summary
}

func (a *Analyzer) fromCache(ctx context.Context, key string) []Suggestion {
	if a.cache == nil {
		return nil
	}
	raw, err := a.cache.Get(ctx, key).Bytes()
	if err != nil {
		return nil
	}

	var suggestions []Suggestion
	if err := json.Unmarshal(raw, &suggestions); err != nil {
		return nil
	}
	return suggestions
}

func (a *Analyzer) toCache(ctx context.Context, key string, suggestions []Suggestion) {
	if a.cache == nil {
		return
	}
	raw, err := json.Marshal(suggestions)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, key, raw, cacheTTL).Err(); err != nil {
		a.log.Warn("", "", "failed to cache suggestions", map[string]interface{}{"error": err.Error()})
	}
}
