// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

// Package tenant owns the project boundary: projects, their API keys, and
// the middleware that resolves a request to an authenticated principal.
// Every domain handler downstream trusts only the principal's project id,
// never payload-supplied identifiers.
package tenant

import (
	"context"
	"time"
)

// Project is the tenant and billing boundary owning events and suggestions.
type Project struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// APIKey is one credential for a project. Only the SHA-256 hash of the key
// material is stored.
type APIKey struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"project_id"`
	Name      string     `json:"name"`
	KeyHash   string     `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	LastUsed  *time.Time `json:"last_used,omitempty"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// Scope is a coarse permission attached to a principal.
type Scope string

const (
	ScopeIngest Scope = "ingest"
	ScopeRead   Scope = "read"
	ScopeAdmin  Scope = "admin"
)

// Principal is the authenticated identity attached to a request after the
// auth middleware has resolved its credential.
type Principal struct {
	ProjectID string
	KeyID     string
	Scopes    []Scope
}

// HasScope reports whether the principal carries the scope. Admin implies
// everything.
func (p *Principal) HasScope(scope Scope) bool {
	for _, s := range p.Scopes {
		if s == scope || s == ScopeAdmin {
			return true
		}
	}
	return false
}

type contextKey int

const principalKey contextKey = iota

// WithPrincipal returns a context carrying the principal.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext extracts the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok
}
