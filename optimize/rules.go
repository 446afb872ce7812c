// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package optimize

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agentcost-ai/agentcost-backend/analytics"
	"github.com/agentcost-ai/agentcost-backend/pricing"
)

// Rule evaluates one (agent, model) aggregate and returns a suggestion or
// nil. Rules are independent; adding one never changes how existing
// suggestions rank.
type Rule interface {
	Evaluate(stats analytics.AgentModelStats) *Suggestion
}

// QuoteSource is the slice of the pricing service the rules need.
type QuoteSource interface {
	Resolve(model string, at time.Time) (*pricing.PriceQuote, error)
	Models() []string
}

// ModelDowngradeRule suggests a cheaper model when a premium-tier model is
// used for short outputs, where a lower tier is usually adequate.
type ModelDowngradeRule struct {
	Quotes QuoteSource
	// AvgOutputBelow is the output-size ceiling that marks a workload as
	// light. MinCalls filters out agents with too little traffic to judge.
	AvgOutputBelow float64
	MinCalls       int64
}

// NewModelDowngradeRule creates the rule with the stock thresholds: average
// output under 100 tokens across at least 10 calls.
func NewModelDowngradeRule(quotes QuoteSource) *ModelDowngradeRule {
	return &ModelDowngradeRule{Quotes: quotes, AvgOutputBelow: 100, MinCalls: 10}
}

// Evaluate implements Rule.
func (r *ModelDowngradeRule) Evaluate(stats analytics.AgentModelStats) *Suggestion {
	if stats.Calls < r.MinCalls || stats.AvgOutputTokens() >= r.AvgOutputBelow {
		return nil
	}

	now := time.Now().UTC()
	current, err := r.Quotes.Resolve(stats.Model, now)
	if err != nil || current.Tier != pricing.TierPremium {
		return nil
	}

	candidate := r.cheapestLowerTier(current, stats, now)
	if candidate == nil {
		return nil
	}

	candidateCost := pricing.CalculateCost(stats.InputTokens, stats.OutputTokens, candidate)
	periodSavings := stats.TotalCost.Sub(candidateCost)
	if !periodSavings.IsPositive() {
		return nil
	}

	monthly := monthlyFrom(periodSavings, stats.Window.Days())
	percent := 0.0
	if stats.TotalCost.IsPositive() {
		percent, _ = periodSavings.Div(stats.TotalCost).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	}

	return &Suggestion{
		Type:             TypeModelDowngrade,
		Title:            fmt.Sprintf("Switch %s from %s to %s", stats.AgentName, stats.Model, candidate.Model),
		Description: fmt.Sprintf(
			"Agent %q averages %.0f output tokens per call on %s; %s handles responses this short at a fraction of the price.",
			stats.AgentName, stats.AvgOutputTokens(), stats.Model, candidate.Model),
		AgentName:               stats.AgentName,
		Model:                   stats.Model,
		AlternativeModel:        candidate.Model,
		EstimatedMonthlySavings: monthly.Round(4),
		SavingsPercent:          percent,
		Metrics: map[string]interface{}{
			"calls":             stats.Calls,
			"avg_output_tokens": stats.AvgOutputTokens(),
			"period_cost":       stats.TotalCost.String(),
		},
	}
}

// cheapestLowerTier finds the lowest-cost quote below the current tier for
// this workload's token mix.
func (r *ModelDowngradeRule) cheapestLowerTier(current *pricing.PriceQuote, stats analytics.AgentModelStats, now time.Time) *pricing.PriceQuote {
	var best *pricing.PriceQuote
	var bestCost decimal.Decimal

	for _, model := range r.Quotes.Models() {
		if model == current.Model {
			continue
		}
		quote, err := r.Quotes.Resolve(model, now)
		if err != nil || !tierBelow(quote.Tier, current.Tier) {
			continue
		}
		cost := pricing.CalculateCost(stats.InputTokens, stats.OutputTokens, quote)
		if best == nil || cost.LessThan(bestCost) {
			best = quote
			bestCost = cost
		}
	}
	return best
}

func tierBelow(tier, reference pricing.ModelTier) bool {
	rank := map[pricing.ModelTier]int{
		pricing.TierPremium:  3,
		pricing.TierStandard: 2,
		pricing.TierEconomy:  1,
	}
	return rank[tier] != 0 && rank[tier] < rank[reference]
}

// HighFailureRateRule flags agents burning spend on failed calls.
type HighFailureRateRule struct {
	// SuccessBelow is the success-rate floor in percent.
	SuccessBelow float64
	MinCalls     int64
}

// NewHighFailureRateRule creates the rule with the stock thresholds:
// success under 90% across at least 20 calls.
func NewHighFailureRateRule() *HighFailureRateRule {
	return &HighFailureRateRule{SuccessBelow: 90, MinCalls: 20}
}

// Evaluate implements Rule. The savings estimate is the spend on failed
// calls, extrapolated to a month; fixing the failures recovers it.
func (r *HighFailureRateRule) Evaluate(stats analytics.AgentModelStats) *Suggestion {
	if stats.Calls < r.MinCalls || stats.SuccessRate >= r.SuccessBelow {
		return nil
	}

	failedCalls := stats.Calls - stats.SuccessCalls
	if failedCalls == 0 || !stats.TotalCost.IsPositive() {
		return nil
	}
	wasted := stats.TotalCost.
		Mul(decimal.NewFromInt(failedCalls)).
		Div(decimal.NewFromInt(stats.Calls))

	monthly := monthlyFrom(wasted, stats.Window.Days())
	percent, _ := wasted.Div(stats.TotalCost).Mul(decimal.NewFromInt(100)).Round(2).Float64()

	return &Suggestion{
		Type:  TypeHighFailureRate,
		Title: fmt.Sprintf("Investigate failures in %s", stats.AgentName),
		Description: fmt.Sprintf(
			"Agent %q succeeds on only %.1f%% of %s calls; the failed calls are billed all the same.",
			stats.AgentName, stats.SuccessRate, stats.Model),
		AgentName:               stats.AgentName,
		Model:                   stats.Model,
		EstimatedMonthlySavings: monthly.Round(4),
		SavingsPercent:          percent,
		Metrics: map[string]interface{}{
			"calls":        stats.Calls,
			"failed_calls": failedCalls,
			"success_rate": stats.SuccessRate,
		},
	}
}
