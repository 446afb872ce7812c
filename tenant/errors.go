// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package tenant

import "errors"

var (
	// ErrUnauthorized is returned when a request carries no valid credential.
	ErrUnauthorized = errors.New("missing or invalid credentials")

	// ErrKeyRevoked is returned when the presented API key has been revoked.
	ErrKeyRevoked = errors.New("api key revoked")

	// ErrProjectNotFound is returned when a project does not exist or is
	// outside the authenticated scope.
	ErrProjectNotFound = errors.New("project not found")

	// ErrProjectInactive is returned when the project has been deactivated.
	ErrProjectInactive = errors.New("project is not active")

	// ErrRateLimited is returned when a project exceeds its request budget.
	ErrRateLimited = errors.New("rate limit exceeded")
)
