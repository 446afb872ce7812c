// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PostgresRepository implements Repository by pushing the aggregation down
// to PostgreSQL. Every grouping shares one query shape, only the key
// expression differs.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const aggregateBody = `
		COUNT(*) AS calls,
		COUNT(*) FILTER (WHERE success) AS success_calls,
		COALESCE(SUM(input_tokens), 0) AS input_tokens,
		COALESCE(SUM(output_tokens), 0) AS output_tokens,
		COALESCE(SUM(cost), 0) AS total_cost,
		COALESCE(SUM(latency_ms), 0) AS total_latency_ms
	FROM events
	WHERE project_id = $1 AND timestamp >= $2 AND timestamp < $3`

// Aggregate runs the grouped query for the window.
func (r *PostgresRepository) Aggregate(ctx context.Context, projectID string, window Window, groupBy GroupBy, bucket Bucket) ([]Row, error) {
	var query string
	switch groupBy {
	case GroupNone:
		query = `SELECT` + aggregateBody
	case GroupAgent:
		query = `SELECT agent_name,` + aggregateBody + `
	GROUP BY agent_name ORDER BY total_cost DESC`
	case GroupModel:
		query = `SELECT model,` + aggregateBody + `
	GROUP BY model ORDER BY total_cost DESC`
	case GroupAgentModel:
		query = `SELECT agent_name, model,` + aggregateBody + `
	GROUP BY agent_name, model ORDER BY total_cost DESC`
	case GroupTimeBucket:
		trunc, err := bucketTrunc(bucket)
		if err != nil {
			return nil, err
		}
		query = fmt.Sprintf(`SELECT date_trunc('%s', timestamp) AS bucket_start,`, trunc) + aggregateBody + `
	GROUP BY bucket_start ORDER BY bucket_start ASC`
	default:
		return nil, ErrInvalidGroupBy
	}

	rows, err := r.db.QueryContext(ctx, query, projectID, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate events: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		row, err := scanAggregateRow(rows, groupBy)
		if err != nil {
			return nil, err
		}
		out = append(out, *row)
	}
	return out, rows.Err()
}

func scanAggregateRow(rows *sql.Rows, groupBy GroupBy) (*Row, error) {
	var row Row
	var cost string
	var bucketStart time.Time

	var err error
	switch groupBy {
	case GroupNone:
		err = rows.Scan(&row.Calls, &row.SuccessCalls, &row.InputTokens, &row.OutputTokens, &cost, &row.TotalLatencyMS)
	case GroupAgent:
		err = rows.Scan(&row.Agent, &row.Calls, &row.SuccessCalls, &row.InputTokens, &row.OutputTokens, &cost, &row.TotalLatencyMS)
		row.Key = row.Agent
	case GroupModel:
		err = rows.Scan(&row.Model, &row.Calls, &row.SuccessCalls, &row.InputTokens, &row.OutputTokens, &cost, &row.TotalLatencyMS)
		row.Key = row.Model
	case GroupAgentModel:
		err = rows.Scan(&row.Agent, &row.Model, &row.Calls, &row.SuccessCalls, &row.InputTokens, &row.OutputTokens, &cost, &row.TotalLatencyMS)
		row.Key = row.Agent + "|" + row.Model
	case GroupTimeBucket:
		err = rows.Scan(&bucketStart, &row.Calls, &row.SuccessCalls, &row.InputTokens, &row.OutputTokens, &cost, &row.TotalLatencyMS)
		t := bucketStart.UTC()
		row.BucketStart = &t
		row.Key = t.Format(time.RFC3339)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan aggregate row: %w", err)
	}

	row.TotalCost, err = decimal.NewFromString(cost)
	if err != nil {
		return nil, fmt.Errorf("failed to parse aggregate cost: %w", err)
	}
	return &row, nil
}

func bucketTrunc(bucket Bucket) (string, error) {
	switch bucket {
	case BucketHour:
		return "hour", nil
	case BucketDay, "":
		return "day", nil
	default:
		return "", ErrInvalidGroupBy
	}
}

// Ping checks database connectivity.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
