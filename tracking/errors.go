// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package tracking

import "errors"

var (
	// ErrValidation marks a malformed event or batch.
	ErrValidation = errors.New("event validation failed")
	// ErrTenantMismatch is returned when a payload names a project other
	// than the authenticated one. The whole request is rejected before any
	// write.
	ErrTenantMismatch = errors.New("event project does not match authenticated project")
	// ErrBatchTooLarge is returned for batches above MaxBatchSize.
	ErrBatchTooLarge = errors.New("batch exceeds maximum size")
	// ErrStorageUnavailable marks a transient storage failure; the client
	// may retry the batch, idempotency keys make that safe.
	ErrStorageUnavailable = errors.New("event storage unavailable")
)
