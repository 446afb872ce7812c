// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package optimize

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcost-ai/agentcost-backend/analytics"
	"github.com/agentcost-ai/agentcost-backend/pricing"
)

// stubStats serves a fixed aggregate set regardless of window.
type stubStats struct {
	stats []analytics.AgentModelStats
	calls int
}

func (s *stubStats) AgentModel(ctx context.Context, projectID string, window analytics.Window) ([]analytics.AgentModelStats, error) {
	s.calls++
	out := make([]analytics.AgentModelStats, len(s.stats))
	for i, st := range s.stats {
		st.Window = window
		out[i] = st
	}
	return out, nil
}

func (s *stubStats) Overview(ctx context.Context, projectID string, window analytics.Window) (*analytics.Overview, error) {
	total := decimal.Zero
	for _, st := range s.stats {
		total = total.Add(st.TotalCost)
	}
	return &analytics.Overview{Stats: analytics.Stats{TotalCost: total}}, nil
}

// stubQuotes is a static pricing catalog.
type stubQuotes struct {
	quotes map[string]pricing.PriceQuote
}

func (q *stubQuotes) Resolve(model string, at time.Time) (*pricing.PriceQuote, error) {
	quote, ok := q.quotes[model]
	if !ok {
		return nil, pricing.ErrNoPricing
	}
	return &quote, nil
}

func (q *stubQuotes) Models() []string {
	models := make([]string, 0, len(q.quotes))
	for m := range q.quotes {
		models = append(models, m)
	}
	return models
}

func testQuotes() *stubQuotes {
	return &stubQuotes{quotes: map[string]pricing.PriceQuote{
		"gpt-4": {
			Model: "gpt-4", Tier: pricing.TierPremium,
			InputPer1K:  decimal.RequireFromString("0.03"),
			OutputPer1K: decimal.RequireFromString("0.06"),
		},
		"gpt-3.5-turbo": {
			Model: "gpt-3.5-turbo", Tier: pricing.TierStandard,
			InputPer1K:  decimal.RequireFromString("0.0015"),
			OutputPer1K: decimal.RequireFromString("0.002"),
		},
		"claude-3-haiku": {
			Model: "claude-3-haiku", Tier: pricing.TierEconomy,
			InputPer1K:  decimal.RequireFromString("0.00025"),
			OutputPer1K: decimal.RequireFromString("0.00125"),
		},
	}}
}

func agentModelStats(agent, model string, calls, successCalls, inputTokens, outputTokens int64, cost string) analytics.AgentModelStats {
	row := analytics.Row{
		Agent:        agent,
		Model:        model,
		Calls:        calls,
		SuccessCalls: successCalls,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalCost:    decimal.RequireFromString(cost),
	}
	return analytics.AgentModelStats{
		AgentName: agent,
		Model:     model,
		Stats:     analytics.NewStats(row),
	}
}

func TestDowngradeSuggestionForShortOutputsOnPremiumModel(t *testing.T) {
	// support-bot averages 50 output tokens per call on gpt-4.
	stats := &stubStats{stats: []analytics.AgentModelStats{
		agentModelStats("support-bot", "gpt-4", 100, 100, 100000, 5000, "3.3"),
	}}
	analyzer := NewAnalyzer(stats, nil, NewModelDowngradeRule(testQuotes()))

	suggestions, err := analyzer.Analyze(context.Background(), "proj-1", 30)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)

	s := suggestions[0]
	assert.Equal(t, TypeModelDowngrade, s.Type)
	assert.Equal(t, "support-bot", s.AgentName)
	assert.Equal(t, "gpt-4", s.Model)
	assert.Equal(t, "claude-3-haiku", s.AlternativeModel, "cheapest lower tier wins")
	assert.True(t, s.EstimatedMonthlySavings.GreaterThan(decimal.NewFromInt(1)))
}

func TestNoSuggestionsForIdleOrLongOutputAgents(t *testing.T) {
	stats := &stubStats{stats: []analytics.AgentModelStats{
		// Too little traffic to judge.
		agentModelStats("rarely-used", "gpt-4", 3, 3, 3000, 150, "0.1"),
		// Long outputs genuinely need the premium model.
		agentModelStats("writer", "gpt-4", 100, 100, 100000, 80000, "7.8"),
		// Already on a standard-tier model.
		agentModelStats("support-bot", "gpt-3.5-turbo", 100, 100, 100000, 5000, "0.16"),
	}}
	analyzer := NewAnalyzer(stats, nil, NewModelDowngradeRule(testQuotes()))

	suggestions, err := analyzer.Analyze(context.Background(), "proj-1", 30)
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestHighFailureRateSuggestion(t *testing.T) {
	stats := &stubStats{stats: []analytics.AgentModelStats{
		agentModelStats("flaky", "gpt-4", 50, 20, 50000, 25000, "100"),
	}}
	analyzer := NewAnalyzer(stats, nil, NewHighFailureRateRule())

	suggestions, err := analyzer.Analyze(context.Background(), "proj-1", 30)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)

	s := suggestions[0]
	assert.Equal(t, TypeHighFailureRate, s.Type)
	assert.Equal(t, PriorityHigh, s.Priority, "wasted spend of $60/month is high priority")
	assert.True(t, s.EstimatedMonthlySavings.Equal(decimal.NewFromInt(60)), "got %s", s.EstimatedMonthlySavings)
}

func TestSuggestionsSortedBySavings(t *testing.T) {
	stats := &stubStats{stats: []analytics.AgentModelStats{
		agentModelStats("flaky", "gpt-4", 50, 20, 50000, 25000, "100"),
		agentModelStats("support-bot", "gpt-4", 100, 100, 100000, 5000, "3.3"),
	}}
	analyzer := NewAnalyzer(stats, nil, NewModelDowngradeRule(testQuotes()), NewHighFailureRateRule())

	suggestions, err := analyzer.Analyze(context.Background(), "proj-1", 30)
	require.NoError(t, err)
	require.Len(t, suggestions, 2)
	assert.True(t, suggestions[0].EstimatedMonthlySavings.GreaterThanOrEqual(suggestions[1].EstimatedMonthlySavings))
	assert.Equal(t, "flaky", suggestions[0].AgentName)
}

func TestSubActionableSavingsDropped(t *testing.T) {
	// Tiny workload: savings well under a dollar a month.
	stats := &stubStats{stats: []analytics.AgentModelStats{
		agentModelStats("tiny", "gpt-4", 20, 20, 1000, 500, "0.06"),
	}}
	analyzer := NewAnalyzer(stats, nil, NewModelDowngradeRule(testQuotes()))

	suggestions, err := analyzer.Analyze(context.Background(), "proj-1", 30)
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestAnalyzeUsesCache(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	stats := &stubStats{stats: []analytics.AgentModelStats{
		agentModelStats("support-bot", "gpt-4", 100, 100, 100000, 5000, "3.3"),
	}}
	analyzer := NewAnalyzer(stats, client, NewModelDowngradeRule(testQuotes()))

	first, err := analyzer.Analyze(context.Background(), "proj-1", 30)
	require.NoError(t, err)
	second, err := analyzer.Analyze(context.Background(), "proj-1", 30)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	assert.Equal(t, first[0].Type, second[0].Type)
	assert.Equal(t, first[0].AgentName, second[0].AgentName)
	assert.True(t, first[0].EstimatedMonthlySavings.Equal(second[0].EstimatedMonthlySavings))
	assert.Equal(t, 1, stats.calls, "second call must be served from cache")

	// Different lookbacks are cached independently.
	_, err = analyzer.Analyze(context.Background(), "proj-1", 7)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.calls)
}

func TestSummarize(t *testing.T) {
	suggestions := []Suggestion{
		{Type: TypeHighFailureRate, Priority: PriorityHigh, EstimatedMonthlySavings: decimal.NewFromInt(60)},
		{Type: TypeModelDowngrade, Priority: PriorityLow, EstimatedMonthlySavings: decimal.NewFromInt(3)},
	}

	summary := Summarize(suggestions, decimal.NewFromInt(300))
	assert.True(t, summary.TotalMonthlySavings.Equal(decimal.NewFromInt(63)))
	assert.InDelta(t, 21.0, summary.SavingsPercent, 0.001)
	assert.Equal(t, 2, summary.SuggestionCount)
	assert.Equal(t, 1, summary.ByType[TypeModelDowngrade])
	assert.Equal(t, 1, summary.ByPriority[PriorityHigh])
	assert.Len(t, summary.Top, 2)
}

func TestSummarizeZeroSpend(t *testing.T) {
	summary := Summarize(nil, decimal.Zero)
	assert.Equal(t, float64(0), summary.SavingsPercent)
	assert.True(t, summary.TotalMonthlySavings.IsZero())
	assert.Empty(t, summary.Top)
}
