// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

// Package analytics derives usage and cost aggregates from stored events.
// All groupings run through one aggregation shape, so the overview totals
// always equal the sum of any per-group breakdown over the same window.
package analytics

import (
	"time"

	"github.com/shopspring/decimal"
)

// GroupBy selects the aggregation key.
type GroupBy string

const (
	GroupNone       GroupBy = "none"
	GroupAgent      GroupBy = "agent"
	GroupModel      GroupBy = "model"
	GroupTimeBucket GroupBy = "time_bucket"
	// GroupAgentModel keys rows by (agent, model); used by the optimizer.
	GroupAgentModel GroupBy = "agent_model"
)

// Bucket is the time-bucket granularity for GroupTimeBucket.
type Bucket string

const (
	BucketHour Bucket = "hour"
	BucketDay  Bucket = "day"
)

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Days returns the window length in (fractional) days, at least a small
// positive value so monthly extrapolation never divides by zero.
func (w Window) Days() float64 {
	days := w.End.Sub(w.Start).Hours() / 24
	if days < 1.0/24 {
		return 1.0 / 24
	}
	return days
}

// Row is one aggregation result. Key is empty for GroupNone, the agent or
// model name, or "agent|model" for GroupAgentModel. BucketStart is set only
// for GroupTimeBucket.
type Row struct {
	Key            string
	Agent          string
	Model          string
	BucketStart    *time.Time
	Calls          int64
	SuccessCalls   int64
	InputTokens    int64
	OutputTokens   int64
	TotalCost      decimal.Decimal
	TotalLatencyMS int64
}

// Stats are the derived metrics for one Row. All derivation lives in
// NewStats so every endpoint reports identical numbers for identical rows.
type Stats struct {
	Calls          int64           `json:"total_calls"`
	SuccessCalls   int64           `json:"successful_calls"`
	InputTokens    int64           `json:"input_tokens"`
	OutputTokens   int64           `json:"output_tokens"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	AvgCostPerCall decimal.Decimal `json:"avg_cost_per_call"`
	AvgLatencyMS   float64         `json:"avg_latency_ms"`
	SuccessRate    float64         `json:"success_rate"`
}

// NewStats derives metrics from a row. Zero calls yields all-zero stats,
// never a division by zero.
func NewStats(row Row) Stats {
	s := Stats{
		Calls:        row.Calls,
		SuccessCalls: row.SuccessCalls,
		InputTokens:  row.InputTokens,
		OutputTokens: row.OutputTokens,
		TotalCost:    row.TotalCost,
	}
	if row.Calls == 0 {
		return s
	}
	s.AvgCostPerCall = row.TotalCost.Div(decimal.NewFromInt(row.Calls)).Round(8)
	s.AvgLatencyMS = float64(row.TotalLatencyMS) / float64(row.Calls)
	s.SuccessRate = float64(row.SuccessCalls) / float64(row.Calls) * 100
	return s
}

// Overview is the project-wide summary for a window.
type Overview struct {
	Stats
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// AgentStats is the per-agent breakdown entry.
type AgentStats struct {
	AgentName string `json:"agent_name"`
	Stats
}

// ModelStats is the per-model breakdown entry.
type ModelStats struct {
	Model string `json:"model"`
	Stats
}

// TimeSeriesPoint is one bucket of the cost/usage time series.
type TimeSeriesPoint struct {
	BucketStart time.Time `json:"bucket_start"`
	Stats
}

// AgentModelStats carries per-(agent, model) aggregates plus the window
// they cover; the optimizer's rules evaluate these.
type AgentModelStats struct {
	AgentName string `json:"agent_name"`
	Model     string `json:"model"`
	Stats
	Window Window `json:"-"`
}

// AvgOutputTokens is the mean output size per call.
func (s AgentModelStats) AvgOutputTokens() float64 {
	if s.Calls == 0 {
		return 0
	}
	return float64(s.OutputTokens) / float64(s.Calls)
}
