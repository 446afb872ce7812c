// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package analytics

import "errors"

var (
	// ErrInvalidWindow is returned when start >= end or a bound is missing.
	ErrInvalidWindow = errors.New("invalid time window")
	// ErrWindowTooLarge is returned when the window exceeds the configured
	// maximum span.
	ErrWindowTooLarge = errors.New("time window exceeds maximum span")
	// ErrInvalidGroupBy is returned for an unknown grouping or bucket.
	ErrInvalidGroupBy = errors.New("invalid grouping")
)
