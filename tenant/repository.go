// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package tenant

import "context"

// Repository defines the interface for project and API key persistence.
type Repository interface {
	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	UpdateProject(ctx context.Context, project *Project) error

	// CreateAPIKey stores the hash of a freshly issued key.
	CreateAPIKey(ctx context.Context, key *APIKey) error
	// LookupAPIKey resolves a key hash to its key record and owning
	// project. Revoked keys return ErrKeyRevoked, unknown hashes
	// ErrUnauthorized.
	LookupAPIKey(ctx context.Context, keyHash string) (*APIKey, *Project, error)
	// TouchAPIKey records when a key was last used. Best effort.
	TouchAPIKey(ctx context.Context, keyID string) error
	RevokeAPIKey(ctx context.Context, keyID string) error

	Ping(ctx context.Context) error
}
