// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package analytics

import (
	"sort"
	"time"

	"github.com/agentcost-ai/agentcost-backend/tracking"
)

// Accumulator folds an event stream into the same rows the SQL push-down
// produces. It backs deployments without an analytics-capable store and the
// in-memory tests that pin down the aggregation semantics.
type Accumulator struct {
	window  Window
	groupBy GroupBy
	bucket  Bucket
	rows    map[string]*Row
}

// NewAccumulator creates an accumulator for one aggregation run.
func NewAccumulator(window Window, groupBy GroupBy, bucket Bucket) *Accumulator {
	return &Accumulator{
		window:  window,
		groupBy: groupBy,
		bucket:  bucket,
		rows:    make(map[string]*Row),
	}
}

// Add folds one event. Events outside the half-open window are ignored.
func (a *Accumulator) Add(event *tracking.Event) {
	if event.Timestamp.Before(a.window.Start) || !event.Timestamp.Before(a.window.End) {
		return
	}

	row := a.row(event)
	row.Calls++
	if event.Success {
		row.SuccessCalls++
	}
	row.InputTokens += event.InputTokens
	row.OutputTokens += event.OutputTokens
	row.TotalLatencyMS += event.LatencyMS
	if event.Cost != nil {
		row.TotalCost = row.TotalCost.Add(*event.Cost)
	}
}

// Rows returns the accumulated rows in the same order the push-down uses:
// cost descending for keyed groupings, bucket ascending for time series.
func (a *Accumulator) Rows() []Row {
	out := make([]Row, 0, len(a.rows))
	for _, row := range a.rows {
		out = append(out, *row)
	}

	if a.groupBy == GroupTimeBucket {
		sort.Slice(out, func(i, j int) bool { return out[i].BucketStart.Before(*out[j].BucketStart) })
	} else {
		sort.Slice(out, func(i, j int) bool {
			if !out[i].TotalCost.Equal(out[j].TotalCost) {
				return out[i].TotalCost.GreaterThan(out[j].TotalCost)
			}
			return out[i].Key < out[j].Key
		})
	}
	return out
}

func (a *Accumulator) row(event *tracking.Event) *Row {
	var key string
	var bucketStart *time.Time

	switch a.groupBy {
	case GroupAgent:
		key = event.AgentName
	case GroupModel:
		key = event.Model
	case GroupAgentModel:
		key = event.AgentName + "|" + event.Model
	case GroupTimeBucket:
		t := truncate(event.Timestamp.UTC(), a.bucket)
		bucketStart = &t
		key = t.Format(time.RFC3339)
	}

	row, ok := a.rows[key]
	if !ok {
		row = &Row{Key: key, BucketStart: bucketStart}
		switch a.groupBy {
		case GroupAgent:
			row.Agent = event.AgentName
		case GroupModel:
			row.Model = event.Model
		case GroupAgentModel:
			row.Agent = event.AgentName
			row.Model = event.Model
		}
		a.rows[key] = row
	}
	return row
}

func truncate(t time.Time, bucket Bucket) time.Time {
	if bucket == BucketHour {
		return t.Truncate(time.Hour)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
