// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package tenant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepository is an in-memory Repository for auth tests.
type mockRepository struct {
	projects map[string]*Project
	keys     map[string]*APIKey // by hash
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		projects: make(map[string]*Project),
		keys:     make(map[string]*APIKey),
	}
}

func (m *mockRepository) CreateProject(ctx context.Context, p *Project) error {
	m.projects[p.ID] = p
	return nil
}

func (m *mockRepository) GetProject(ctx context.Context, id string) (*Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, ErrProjectNotFound
	}
	return p, nil
}

func (m *mockRepository) UpdateProject(ctx context.Context, p *Project) error {
	if _, ok := m.projects[p.ID]; !ok {
		return ErrProjectNotFound
	}
	m.projects[p.ID] = p
	return nil
}

func (m *mockRepository) CreateAPIKey(ctx context.Context, key *APIKey) error {
	m.keys[key.KeyHash] = key
	return nil
}

func (m *mockRepository) LookupAPIKey(ctx context.Context, keyHash string) (*APIKey, *Project, error) {
	key, ok := m.keys[keyHash]
	if !ok {
		return nil, nil, ErrUnauthorized
	}
	if key.RevokedAt != nil {
		return nil, nil, ErrKeyRevoked
	}
	project, ok := m.projects[key.ProjectID]
	if !ok {
		return nil, nil, ErrProjectNotFound
	}
	if !project.IsActive {
		return nil, nil, ErrProjectInactive
	}
	return key, project, nil
}

func (m *mockRepository) TouchAPIKey(ctx context.Context, keyID string) error { return nil }

func (m *mockRepository) RevokeAPIKey(ctx context.Context, keyID string) error {
	for _, key := range m.keys {
		if key.ID == keyID && key.RevokedAt == nil {
			now := time.Now().UTC()
			key.RevokedAt = &now
			return nil
		}
	}
	return ErrUnauthorized
}

func (m *mockRepository) Ping(ctx context.Context) error { return nil }

func testSetup(t *testing.T) (*mockRepository, *Authenticator) {
	t.Helper()
	repo := newMockRepository()
	repo.projects["proj-1"] = &Project{ID: "proj-1", Name: "test", IsActive: true}
	return repo, NewAuthenticator(repo, "test-secret", nil)
}

func TestIssueAndAuthenticateKey(t *testing.T) {
	_, auth := testSetup(t)

	plaintext, key, err := auth.IssueKey(context.Background(), "proj-1", "sdk")
	require.NoError(t, err)
	assert.Contains(t, plaintext, keyPrefix)
	assert.NotContains(t, key.KeyHash, plaintext, "only the hash is stored")

	principal, err := auth.Authenticate(context.Background(), plaintext)
	require.NoError(t, err)
	assert.Equal(t, "proj-1", principal.ProjectID)
	assert.Equal(t, key.ID, principal.KeyID)
	assert.True(t, principal.HasScope(ScopeIngest))
	assert.True(t, principal.HasScope(ScopeRead))
	assert.False(t, principal.HasScope(ScopeAdmin))
}

func TestAuthenticateUnknownKey(t *testing.T) {
	_, auth := testSetup(t)

	_, err := auth.Authenticate(context.Background(), "ac_deadbeef")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticateRevokedKey(t *testing.T) {
	repo, auth := testSetup(t)

	plaintext, key, err := auth.IssueKey(context.Background(), "proj-1", "sdk")
	require.NoError(t, err)
	require.NoError(t, repo.RevokeAPIKey(context.Background(), key.ID))

	_, err = auth.Authenticate(context.Background(), plaintext)
	require.ErrorIs(t, err, ErrKeyRevoked)
}

func TestAuthenticateInactiveProject(t *testing.T) {
	repo, auth := testSetup(t)
	plaintext, _, err := auth.IssueKey(context.Background(), "proj-1", "sdk")
	require.NoError(t, err)

	repo.projects["proj-1"].IsActive = false
	_, err = auth.Authenticate(context.Background(), plaintext)
	require.ErrorIs(t, err, ErrProjectInactive)
}

func TestIssueAndAuthenticateToken(t *testing.T) {
	_, auth := testSetup(t)

	token, err := auth.IssueToken("proj-1", []Scope{ScopeRead, ScopeAdmin}, time.Hour)
	require.NoError(t, err)

	principal, err := auth.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "proj-1", principal.ProjectID)
	assert.True(t, principal.HasScope(ScopeAdmin))
	assert.True(t, principal.HasScope(ScopeIngest), "admin implies every scope")
}

func TestExpiredTokenRejected(t *testing.T) {
	_, auth := testSetup(t)

	token, err := auth.IssueToken("proj-1", []Scope{ScopeRead}, -time.Minute)
	require.NoError(t, err)

	_, err = auth.Authenticate(context.Background(), token)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestTokenSignedWithWrongSecretRejected(t *testing.T) {
	_, auth := testSetup(t)
	other := NewAuthenticator(newMockRepository(), "other-secret", nil)

	token, err := other.IssueToken("proj-1", []Scope{ScopeRead}, time.Hour)
	require.NoError(t, err)

	_, err = auth.Authenticate(context.Background(), token)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestMiddlewareAttachesPrincipal(t *testing.T) {
	_, auth := testSetup(t)
	plaintext, _, err := auth.IssueKey(context.Background(), "proj-1", "sdk")
	require.NoError(t, err)

	var got *Principal
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/api/v1/analytics/overview", nil)
	req.Header.Set("Authorization", "Bearer "+plaintext)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "proj-1", got.ProjectID)
}

func TestMiddlewareRejectsMissingCredential(t *testing.T) {
	_, auth := testSetup(t)

	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest("GET", "/api/v1/analytics/overview", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareAcceptsAPIKeyHeader(t *testing.T) {
	_, auth := testSetup(t)
	plaintext, _, err := auth.IssueKey(context.Background(), "proj-1", "sdk")
	require.NoError(t, err)

	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("POST", "/api/v1/events", nil)
	req.Header.Set("X-API-Key", plaintext)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareRateLimits(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	repo := newMockRepository()
	repo.projects["proj-1"] = &Project{ID: "proj-1", Name: "test", IsActive: true}
	auth := NewAuthenticator(repo, "test-secret", NewRateLimiter(client, 3))

	plaintext, _, err := auth.IssueKey(context.Background(), "proj-1", "sdk")
	require.NoError(t, err)

	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	var last int
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("POST", "/api/v1/events", nil)
		req.Header.Set("Authorization", "Bearer "+plaintext)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestRateLimiterLocalFallback(t *testing.T) {
	limiter := NewRateLimiter(nil, 2)

	require.NoError(t, limiter.Allow(context.Background(), "proj-1"))
	require.NoError(t, limiter.Allow(context.Background(), "proj-1"))
	require.ErrorIs(t, limiter.Allow(context.Background(), "proj-1"), ErrRateLimited)

	// Other projects have their own window.
	require.NoError(t, limiter.Allow(context.Background(), "proj-2"))
}
