// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package tracking

import "context"

// Repository defines the interface for event persistence.
type Repository interface {
	// InsertEvent stores an event. A duplicate (project_id,
	// idempotency_key) is not an error: stored is false and the event is
	// treated as already accepted.
	InsertEvent(ctx context.Context, event *Event) (stored bool, err error)

	Ping(ctx context.Context) error
}
