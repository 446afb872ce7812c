// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package tenant

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/agentcost-ai/agentcost-backend/shared/logger"
)

// keyPrefix marks AgentCost API keys so they are recognizable in configs
// and can be told apart from JWTs in the Authorization header.
const keyPrefix = "ac_"

// Authenticator resolves request credentials to principals. Two credential
// kinds are accepted: project API keys (SDK ingestion) and short-lived
// project JWTs issued by the dashboard.
type Authenticator struct {
	repo      Repository
	jwtSecret []byte
	limiter   *RateLimiter
	log       *logger.Logger
}

// NewAuthenticator creates an authenticator. limiter may be nil to disable
// rate limiting.
func NewAuthenticator(repo Repository, jwtSecret string, limiter *RateLimiter) *Authenticator {
	return &Authenticator{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
		limiter:   limiter,
		log:       logger.New("tenant"),
	}
}

// IssueKey generates a new API key for a project and stores its hash. The
// plaintext key is returned exactly once.
func (a *Authenticator) IssueKey(ctx context.Context, projectID, name string) (string, *APIKey, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, fmt.Errorf("failed to generate key material: %w", err)
	}
	plaintext := keyPrefix + hex.EncodeToString(raw)

	key := &APIKey{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Name:      name,
		KeyHash:   HashKey(plaintext),
		CreatedAt: time.Now().UTC(),
	}
	if err := a.repo.CreateAPIKey(ctx, key); err != nil {
		return "", nil, err
	}
	return plaintext, key, nil
}

// IssueToken signs a short-lived JWT carrying the project id and scopes.
func (a *Authenticator) IssueToken(projectID string, scopes []Scope, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":    projectID,
		"scopes": scopeStrings(scopes),
		"iat":    time.Now().Unix(),
		"exp":    time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

// Authenticate resolves a bearer credential to a principal.
func (a *Authenticator) Authenticate(ctx context.Context, credential string) (*Principal, error) {
	if credential == "" {
		return nil, ErrUnauthorized
	}
	if strings.HasPrefix(credential, keyPrefix) {
		return a.authenticateKey(ctx, credential)
	}
	return a.authenticateToken(credential)
}

func (a *Authenticator) authenticateKey(ctx context.Context, credential string) (*Principal, error) {
	key, project, err := a.repo.LookupAPIKey(ctx, HashKey(credential))
	if err != nil {
		return nil, err
	}

	// Best effort; a failed touch must not fail the request.
	if err := a.repo.TouchAPIKey(ctx, key.ID); err != nil {
		a.log.Warn(project.ID, "", "failed to record key usage", map[string]interface{}{"error": err.Error()})
	}

	return &Principal{
		ProjectID: project.ID,
		KeyID:     key.ID,
		Scopes:    []Scope{ScopeIngest, ScopeRead},
	}, nil
}

func (a *Authenticator) authenticateToken(credential string) (*Principal, error) {
	token, err := jwt.Parse(credential, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return a.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrUnauthorized
	}
	projectID, _ := claims["sub"].(string)
	if projectID == "" {
		return nil, ErrUnauthorized
	}

	var scopes []Scope
	if raw, ok := claims["scopes"].([]interface{}); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				scopes = append(scopes, Scope(s))
			}
		}
	}
	if len(scopes) == 0 {
		scopes = []Scope{ScopeRead}
	}

	return &Principal{ProjectID: projectID, Scopes: scopes}, nil
}

// Middleware authenticates every request and attaches the principal to the
// request context. Unauthenticated requests are rejected before reaching
// any domain handler; rate-limited projects get 429.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credential := bearerToken(r)
		principal, err := a.Authenticate(r.Context(), credential)
		if err != nil {
			status := http.StatusUnauthorized
			if err == ErrProjectInactive || err == ErrProjectNotFound {
				status = http.StatusForbidden
			}
			writeAuthError(w, err, status)
			return
		}

		if a.limiter != nil {
			if err := a.limiter.Allow(r.Context(), principal.ProjectID); err != nil {
				writeAuthError(w, ErrRateLimited, http.StatusTooManyRequests)
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// HashKey returns the hex SHA-256 of the key material; only hashes are
// stored and compared.
func HashKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	// SDK convenience header.
	return r.Header.Get("X-API-Key")
}

func writeAuthError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"error":%q,"message":%q}`, http.StatusText(status), err.Error())
}

func scopeStrings(scopes []Scope) []string {
	out := make([]string, len(scopes))
	for i, s := range scopes {
		out[i] = string(s)
	}
	return out
}
