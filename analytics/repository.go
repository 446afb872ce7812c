// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package analytics

import "context"

// Repository defines the interface for event aggregation.
type Repository interface {
	// Aggregate folds the project's events inside the half-open window
	// into rows keyed by the grouping. bucket is only consulted for
	// GroupTimeBucket.
	Aggregate(ctx context.Context, projectID string, window Window, groupBy GroupBy, bucket Bucket) ([]Row, error)

	Ping(ctx context.Context) error
}
