// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package tracking

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// InsertEvent stores an event. The (project_id, idempotency_key) unique
// constraint resolves concurrent duplicates; ON CONFLICT DO NOTHING turns
// the race loser into an already-accepted result instead of an error.
func (r *PostgresRepository) InsertEvent(ctx context.Context, event *Event) (bool, error) {
	var metadata []byte
	if event.Metadata != nil {
		var err error
		metadata, err = json.Marshal(event.Metadata)
		if err != nil {
			return false, fmt.Errorf("failed to encode metadata: %w", err)
		}
	}

	var cost sql.NullString
	if event.Cost != nil {
		cost = sql.NullString{String: event.Cost.String(), Valid: true}
	}

	var id string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO events (
			id, project_id, agent_name, model, provider,
			input_tokens, output_tokens, latency_ms, success, error,
			timestamp, cost, metadata, idempotency_key, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (project_id, idempotency_key) DO NOTHING
		RETURNING id
	`,
		event.ID, event.ProjectID, event.AgentName, event.Model, nullString(event.Provider),
		event.InputTokens, event.OutputTokens, event.LatencyMS, event.Success, nullString(event.Error),
		event.Timestamp, cost, nullBytes(metadata), event.IdempotencyKey, event.CreatedAt,
	).Scan(&id)
	if err == sql.ErrNoRows {
		// Conflict: the event is already stored.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert event: %w", err)
	}
	return true, nil
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

func nullBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}
