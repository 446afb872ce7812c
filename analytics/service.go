// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/agentcost-ai/agentcost-backend/shared/logger"
)

// DefaultMaxWindowDays bounds analytics queries when no limit is configured.
const DefaultMaxWindowDays = 366

// Service answers analytics queries over stored events.
type Service struct {
	repo      Repository
	maxWindow time.Duration
	log       *logger.Logger
}

// NewService creates an analytics service. maxWindowDays <= 0 falls back to
// DefaultMaxWindowDays.
func NewService(repo Repository, maxWindowDays int) *Service {
	if maxWindowDays <= 0 {
		maxWindowDays = DefaultMaxWindowDays
	}
	return &Service{
		repo:      repo,
		maxWindow: time.Duration(maxWindowDays) * 24 * time.Hour,
		log:       logger.New("analytics"),
	}
}

// ValidateWindow checks the half-open window bounds against the configured
// maximum span.
func (s *Service) ValidateWindow(window Window) error {
	if window.Start.IsZero() || window.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidWindow)
	}
	if !window.Start.Before(window.End) {
		return fmt.Errorf("%w: start must be before end", ErrInvalidWindow)
	}
	if window.End.Sub(window.Start) > s.maxWindow {
		return fmt.Errorf("%w: maximum is %s", ErrWindowTooLarge, s.maxWindow)
	}
	return nil
}

// Overview returns the project-wide summary for the window.
func (s *Service) Overview(ctx context.Context, projectID string, window Window) (*Overview, error) {
	rows, err := s.aggregate(ctx, projectID, window, GroupNone, "")
	if err != nil {
		return nil, err
	}

	overview := &Overview{Start: window.Start, End: window.End}
	if len(rows) > 0 {
		overview.Stats = NewStats(rows[0])
	} else {
		overview.Stats = NewStats(Row{})
	}
	return overview, nil
}

// Agents returns the per-agent breakdown, highest spend first.
func (s *Service) Agents(ctx context.Context, projectID string, window Window) ([]AgentStats, error) {
	rows, err := s.aggregate(ctx, projectID, window, GroupAgent, "")
	if err != nil {
		return nil, err
	}

	out := make([]AgentStats, len(rows))
	for i, row := range rows {
		out[i] = AgentStats{AgentName: row.Agent, Stats: NewStats(row)}
	}
	return out, nil
}

// Models returns the per-model breakdown, highest spend first.
func (s *Service) Models(ctx context.Context, projectID string, window Window) ([]ModelStats, error) {
	rows, err := s.aggregate(ctx, projectID, window, GroupModel, "")
	if err != nil {
		return nil, err
	}

	out := make([]ModelStats, len(rows))
	for i, row := range rows {
		out[i] = ModelStats{Model: row.Model, Stats: NewStats(row)}
	}
	return out, nil
}

// Timeseries returns bucketed usage over the window, oldest bucket first.
// Buckets with no events are absent rather than zero-filled.
func (s *Service) Timeseries(ctx context.Context, projectID string, window Window, bucket Bucket) ([]TimeSeriesPoint, error) {
	rows, err := s.aggregate(ctx, projectID, window, GroupTimeBucket, bucket)
	if err != nil {
		return nil, err
	}

	out := make([]TimeSeriesPoint, len(rows))
	for i, row := range rows {
		out[i] = TimeSeriesPoint{BucketStart: *row.BucketStart, Stats: NewStats(row)}
	}
	return out, nil
}

// FullReport bundles every breakdown for one window.
type FullReport struct {
	Overview   *Overview         `json:"overview"`
	Agents     []AgentStats      `json:"agents"`
	Models     []ModelStats      `json:"models"`
	Timeseries []TimeSeriesPoint `json:"timeseries"`
}

// Full returns the overview plus all breakdowns in one shot for dashboards.
func (s *Service) Full(ctx context.Context, projectID string, window Window, bucket Bucket) (*FullReport, error) {
	overview, err := s.Overview(ctx, projectID, window)
	if err != nil {
		return nil, err
	}
	agents, err := s.Agents(ctx, projectID, window)
	if err != nil {
		return nil, err
	}
	models, err := s.Models(ctx, projectID, window)
	if err != nil {
		return nil, err
	}
	timeseries, err := s.Timeseries(ctx, projectID, window, bucket)
	if err != nil {
		return nil, err
	}
	return &FullReport{Overview: overview, Agents: agents, Models: models, Timeseries: timeseries}, nil
}

// AgentModel returns per-(agent, model) aggregates for the window; this is
// the input the optimizer's rules evaluate.
func (s *Service) AgentModel(ctx context.Context, projectID string, window Window) ([]AgentModelStats, error) {
	rows, err := s.aggregate(ctx, projectID, window, GroupAgentModel, "")
	if err != nil {
		return nil, err
	}

	out := make([]AgentModelStats, len(rows))
	for i, row := range rows {
		out[i] = AgentModelStats{
			AgentName: row.Agent,
			Model:     row.Model,
			Stats:     NewStats(row),
			Window:    window,
		}
	}
	return out, nil
}

// IsHealthy checks if analytics storage is reachable.
func (s *Service) IsHealthy(ctx context.Context) bool {
	return s.repo.Ping(ctx) == nil
}

func (s *Service) aggregate(ctx context.Context, projectID string, window Window, groupBy GroupBy, bucket Bucket) ([]Row, error) {
	if err := s.ValidateWindow(window); err != nil {
		return nil, err
	}
	return s.repo.Aggregate(ctx, projectID, window, groupBy, bucket)
}
