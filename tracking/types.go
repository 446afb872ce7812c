// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

// Package tracking ingests LLM usage events. Events are append-only and
// priced at their event timestamp, so late or replayed batches always cost
// out against the quote that was effective when the call actually happened.
package tracking

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is a stored usage event. Cost is nil when the event was accepted
// without pricing under the allow policy.
type Event struct {
	ID             string                 `json:"id"`
	ProjectID      string                 `json:"project_id"`
	AgentName      string                 `json:"agent_name"`
	Model          string                 `json:"model"`
	Provider       string                 `json:"provider,omitempty"`
	InputTokens    int64                  `json:"input_tokens"`
	OutputTokens   int64                  `json:"output_tokens"`
	LatencyMS      int64                  `json:"latency_ms"`
	Success        bool                   `json:"success"`
	Error          string                 `json:"error,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
	Cost           *decimal.Decimal       `json:"cost,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	IdempotencyKey string                 `json:"idempotency_key"`
	CreatedAt      time.Time              `json:"created_at,omitempty"`
}

// EventInput is one event as submitted by an SDK client. Timestamp is
// RFC 3339; when empty the ingest time is used. ProjectID may be present
// for older SDKs but must agree with the authenticated principal.
type EventInput struct {
	ProjectID      string                 `json:"project_id,omitempty"`
	AgentName      string                 `json:"agent_name"`
	Model          string                 `json:"model"`
	InputTokens    int64                  `json:"input_tokens"`
	OutputTokens   int64                  `json:"output_tokens"`
	LatencyMS      int64                  `json:"latency_ms"`
	Success        bool                   `json:"success"`
	Error          string                 `json:"error,omitempty"`
	Timestamp      string                 `json:"timestamp,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	IdempotencyKey string                 `json:"idempotency_key,omitempty"`
}

// RejectReason classifies why an event in a batch was not stored.
type RejectReason string

const (
	ReasonValidation RejectReason = "validation"
	ReasonNoPricing  RejectReason = "no_pricing"
	ReasonStorage    RejectReason = "storage_unavailable"
)

// AcceptedEvent is the per-event success entry in a batch response.
// Duplicate is set when the event was already stored by an earlier
// submission; the client treats both the same.
type AcceptedEvent struct {
	Index     int              `json:"index"`
	EventID   string           `json:"event_id,omitempty"`
	Cost      *decimal.Decimal `json:"cost,omitempty"`
	Duplicate bool             `json:"duplicate,omitempty"`
}

// RejectedEvent is the per-event failure entry in a batch response.
type RejectedEvent struct {
	Index   int          `json:"index"`
	Reason  RejectReason `json:"reason"`
	Message string       `json:"message"`
}

// BatchResult is the outcome of one ingest batch. len(Accepted) +
// len(Rejected) always equals the submitted batch size, and entries keep
// the submission order via Index.
type BatchResult struct {
	Accepted []AcceptedEvent `json:"accepted"`
	Rejected []RejectedEvent `json:"rejected"`
}

// MaxBatchSize bounds one ingest request.
const MaxBatchSize = 1000

// maxMetadataKeys bounds the shallow metadata map per event.
const maxMetadataKeys = 32
