// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package tenant

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateProject inserts a new project.
func (r *PostgresRepository) CreateProject(ctx context.Context, project *Project) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, description, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, project.ID, project.Name, nullString(project.Description), project.IsActive, project.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by id.
func (r *PostgresRepository) GetProject(ctx context.Context, id string) (*Project, error) {
	var project Project
	var description sql.NullString
	var deletedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, is_active, created_at, deleted_at
		FROM projects
		WHERE id = $1 AND deleted_at IS NULL
	`, id).Scan(&project.ID, &project.Name, &description, &project.IsActive, &project.CreatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	project.Description = description.String
	if deletedAt.Valid {
		project.DeletedAt = &deletedAt.Time
	}
	return &project, nil
}

// UpdateProject updates name, description and active flag.
func (r *PostgresRepository) UpdateProject(ctx context.Context, project *Project) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE projects SET name = $2, description = $3, is_active = $4
		WHERE id = $1 AND deleted_at IS NULL
	`, project.ID, project.Name, nullString(project.Description), project.IsActive)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// CreateAPIKey stores a key hash.
func (r *PostgresRepository) CreateAPIKey(ctx context.Context, key *APIKey) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, project_id, name, key_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, key.ID, key.ProjectID, key.Name, key.KeyHash, key.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate api key: %w", ErrUnauthorized)
		}
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// LookupAPIKey resolves a key hash to the key and its project.
func (r *PostgresRepository) LookupAPIKey(ctx context.Context, keyHash string) (*APIKey, *Project, error) {
	var key APIKey
	var project Project
	var keyRevoked, projectDeleted sql.NullTime
	var description sql.NullString
	var lastUsed sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT k.id, k.project_id, k.name, k.key_hash, k.created_at, k.last_used, k.revoked_at,
		       p.id, p.name, p.description, p.is_active, p.created_at, p.deleted_at
		FROM api_keys k
		JOIN projects p ON p.id = k.project_id
		WHERE k.key_hash = $1
	`, keyHash).Scan(
		&key.ID, &key.ProjectID, &key.Name, &key.KeyHash, &key.CreatedAt, &lastUsed, &keyRevoked,
		&project.ID, &project.Name, &description, &project.IsActive, &project.CreatedAt, &projectDeleted,
	)
	if err == sql.ErrNoRows {
		return nil, nil, ErrUnauthorized
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up api key: %w", err)
	}

	if keyRevoked.Valid {
		return nil, nil, ErrKeyRevoked
	}
	if projectDeleted.Valid {
		return nil, nil, ErrProjectNotFound
	}
	if !project.IsActive {
		return nil, nil, ErrProjectInactive
	}

	project.Description = description.String
	if lastUsed.Valid {
		key.LastUsed = &lastUsed.Time
	}
	return &key, &project, nil
}

// TouchAPIKey records key usage.
func (r *PostgresRepository) TouchAPIKey(ctx context.Context, keyID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE api_keys SET last_used = $2 WHERE id = $1
	`, keyID, time.Now().UTC())
	return err
}

// RevokeAPIKey revokes a key.
func (r *PostgresRepository) RevokeAPIKey(ctx context.Context, keyID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE api_keys SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL
	`, keyID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return ErrUnauthorized
	}
	return nil
}

// Ping checks database connectivity.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
