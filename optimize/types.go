// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

// Package optimize turns usage aggregates into cost-saving suggestions.
// Suggestions are ephemeral: recomputed from analytics on demand and cached
// briefly, never stored.
package optimize

import (
	"github.com/shopspring/decimal"
)

// SuggestionType identifies the rule family that produced a suggestion.
type SuggestionType string

const (
	TypeModelDowngrade  SuggestionType = "model_downgrade"
	TypeHighFailureRate SuggestionType = "high_failure_rate"
)

// Priority buckets a suggestion by estimated monthly savings.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Suggestion is one actionable recommendation for an (agent, model) pair.
type Suggestion struct {
	Type                    SuggestionType         `json:"type"`
	Title                   string                 `json:"title"`
	Description             string                 `json:"description"`
	AgentName               string                 `json:"agent_name"`
	Model                   string                 `json:"model"`
	AlternativeModel        string                 `json:"alternative_model,omitempty"`
	EstimatedMonthlySavings decimal.Decimal        `json:"estimated_monthly_savings"`
	SavingsPercent          float64                `json:"savings_percent"`
	Priority                Priority               `json:"priority"`
	Metrics                 map[string]interface{} `json:"metrics,omitempty"`
}

// Summary condenses a suggestion list for the dashboard headline.
type Summary struct {
	TotalMonthlySavings decimal.Decimal        `json:"total_monthly_savings"`
	SavingsPercent      float64                `json:"savings_percent"`
	SuggestionCount     int                    `json:"suggestion_count"`
	ByType              map[SuggestionType]int `json:"by_type"`
	ByPriority          map[Priority]int       `json:"by_priority"`
	Top                 []Suggestion           `json:"top_suggestions"`
}

// minActionableSavings is the monthly-savings floor below which a
// suggestion is noise and gets dropped.
var minActionableSavings = decimal.NewFromInt(1)

// Savings thresholds for priority assignment.
var (
	highPriorityAt   = decimal.NewFromInt(50)
	mediumPriorityAt = decimal.NewFromInt(10)
)

// priorityFor maps monthly savings to a priority bucket.
func priorityFor(monthlySavings decimal.Decimal) Priority {
	switch {
	case monthlySavings.GreaterThanOrEqual(highPriorityAt):
		return PriorityHigh
	case monthlySavings.GreaterThanOrEqual(mediumPriorityAt):
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// monthlyFrom extrapolates a cost over a window of the given length in days
// to a 30-day month.
func monthlyFrom(cost decimal.Decimal, days float64) decimal.Decimal {
	if days <= 0 {
		return decimal.Zero
	}
	return cost.Div(decimal.NewFromFloat(days)).Mul(decimal.NewFromInt(30))
}
