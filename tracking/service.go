// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package tracking

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/agentcost-ai/agentcost-backend/pricing"
	"github.com/agentcost-ai/agentcost-backend/shared/logger"
)

var (
	eventsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agentcost_events_accepted_total",
		Help: "Number of usage events accepted and stored",
	})
	eventsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agentcost_events_duplicate_total",
		Help: "Number of usage events recognized as duplicates",
	})
	eventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentcost_events_rejected_total",
		Help: "Number of usage events rejected, by reason",
	}, []string{"reason"})
	batchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agentcost_ingest_batch_size",
		Help:    "Size of submitted ingest batches",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
)

// UnknownModelPolicy decides what happens to events whose model has no
// price quote at the event timestamp.
type UnknownModelPolicy string

const (
	// PolicyReject rejects the event with a no_pricing reason.
	PolicyReject UnknownModelPolicy = "reject"
	// PolicyAllow stores the event with a NULL cost.
	PolicyAllow UnknownModelPolicy = "allow"
)

// Pricer resolves the quote effective for a model at an instant.
type Pricer interface {
	Resolve(model string, at time.Time) (*pricing.PriceQuote, error)
}

// Service ingests usage event batches.
type Service struct {
	repo   Repository
	pricer Pricer
	policy UnknownModelPolicy
	log    *logger.Logger
}

// NewService creates an ingest service. An empty policy defaults to reject.
func NewService(repo Repository, pricer Pricer, policy UnknownModelPolicy) *Service {
	if policy == "" {
		policy = PolicyReject
	}
	return &Service{
		repo:   repo,
		pricer: pricer,
		policy: policy,
		log:    logger.New("tracking"),
	}
}

// IngestBatch validates, prices and stores a batch of events for the
// authenticated project. Partial success: each event is accepted or
// rejected independently and the result keeps submission order. A payload
// that names a different project fails the whole request before any write.
func (s *Service) IngestBatch(ctx context.Context, projectID string, inputs []EventInput) (*BatchResult, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrValidation)
	}
	if len(inputs) > MaxBatchSize {
		return nil, fmt.Errorf("%w: %d events, maximum is %d", ErrBatchTooLarge, len(inputs), MaxBatchSize)
	}
	for i := range inputs {
		if inputs[i].ProjectID != "" && inputs[i].ProjectID != projectID {
			return nil, ErrTenantMismatch
		}
	}
	batchSize.Observe(float64(len(inputs)))

	result := &BatchResult{
		Accepted: make([]AcceptedEvent, 0, len(inputs)),
		Rejected: make([]RejectedEvent, 0),
	}
	now := time.Now().UTC()

	for i := range inputs {
		event, reason, msg := s.buildEvent(projectID, &inputs[i], now)
		if reason != "" {
			result.Rejected = append(result.Rejected, RejectedEvent{Index: i, Reason: reason, Message: msg})
			eventsRejected.WithLabelValues(string(reason)).Inc()
			continue
		}

		stored, err := s.repo.InsertEvent(ctx, event)
		if err != nil {
			result.Rejected = append(result.Rejected, RejectedEvent{
				Index:   i,
				Reason:  ReasonStorage,
				Message: ErrStorageUnavailable.Error(),
			})
			eventsRejected.WithLabelValues(string(ReasonStorage)).Inc()
			s.log.Error(projectID, "", "failed to store event", map[string]interface{}{"error": err.Error()})
			continue
		}

		accepted := AcceptedEvent{Index: i, EventID: event.ID, Cost: event.Cost, Duplicate: !stored}
		if stored {
			eventsAccepted.Inc()
		} else {
			// The row already exists; report it without the fresh id.
			accepted.EventID = ""
			eventsDuplicate.Inc()
		}
		result.Accepted = append(result.Accepted, accepted)
	}

	s.log.Info(projectID, "", "batch ingested", map[string]interface{}{
		"accepted": len(result.Accepted),
		"rejected": len(result.Rejected),
	})
	return result, nil
}

// buildEvent validates one input and turns it into a priced Event. A
// non-empty reason means the event is rejected.
func (s *Service) buildEvent(projectID string, in *EventInput, now time.Time) (*Event, RejectReason, string) {
	if in.Model == "" {
		return nil, ReasonValidation, "model is required"
	}
	if in.AgentName == "" {
		return nil, ReasonValidation, "agent_name is required"
	}
	if in.InputTokens < 0 || in.OutputTokens < 0 {
		return nil, ReasonValidation, "token counts must be non-negative"
	}
	if in.LatencyMS < 0 {
		return nil, ReasonValidation, "latency_ms must be non-negative"
	}
	if len(in.Metadata) > maxMetadataKeys {
		return nil, ReasonValidation, fmt.Sprintf("metadata exceeds %d keys", maxMetadataKeys)
	}
	for k := range in.Metadata {
		if k == "" {
			return nil, ReasonValidation, "metadata keys must be non-empty"
		}
	}

	timestamp := now
	if in.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, in.Timestamp)
		if err != nil {
			return nil, ReasonValidation, "timestamp must be RFC 3339"
		}
		timestamp = parsed.UTC()
	}

	event := &Event{
		ID:             uuid.NewString(),
		ProjectID:      projectID,
		AgentName:      in.AgentName,
		Model:          in.Model,
		InputTokens:    in.InputTokens,
		OutputTokens:   in.OutputTokens,
		LatencyMS:      in.LatencyMS,
		Success:        in.Success,
		Error:          in.Error,
		Timestamp:      timestamp,
		Metadata:       in.Metadata,
		IdempotencyKey: in.IdempotencyKey,
		CreatedAt:      now,
	}
	if event.IdempotencyKey == "" {
		event.IdempotencyKey = deriveIdempotencyKey(event)
	}

	// Pricing is resolved at the event timestamp, never the ingest time.
	quote, err := s.pricer.Resolve(in.Model, timestamp)
	switch {
	case err == pricing.ErrNoPricing && s.policy == PolicyAllow:
		event.Cost = nil
	case err == pricing.ErrNoPricing:
		return nil, ReasonNoPricing, fmt.Sprintf("no pricing for model %q", in.Model)
	case err != nil:
		return nil, ReasonStorage, ErrStorageUnavailable.Error()
	default:
		cost := pricing.CalculateCost(in.InputTokens, in.OutputTokens, quote)
		event.Cost = &cost
		event.Provider = quote.Provider
	}

	return event, "", ""
}

// deriveIdempotencyKey hashes the identifying content of an event so that
// a resubmitted batch without client keys still deduplicates.
func deriveIdempotencyKey(e *Event) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d|%d|%d|%t|%s",
		e.ProjectID, e.AgentName, e.Model,
		e.InputTokens, e.OutputTokens, e.LatencyMS,
		e.Success, e.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	return hex.EncodeToString(h.Sum(nil))
}

// IsHealthy checks if event storage is reachable.
func (s *Service) IsHealthy(ctx context.Context) bool {
	return s.repo.Ping(ctx) == nil
}
