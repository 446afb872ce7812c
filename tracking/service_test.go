// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcost-ai/agentcost-backend/pricing"
)

// mockRepository is an in-memory Repository keyed by idempotency key.
type mockRepository struct {
	events  map[string]*Event
	failing bool
}

func newMockRepository() *mockRepository {
	return &mockRepository{events: make(map[string]*Event)}
}

func (m *mockRepository) InsertEvent(ctx context.Context, event *Event) (bool, error) {
	if m.failing {
		return false, errors.New("connection refused")
	}
	key := event.ProjectID + "|" + event.IdempotencyKey
	if _, ok := m.events[key]; ok {
		return false, nil
	}
	m.events[key] = event
	return true, nil
}

func (m *mockRepository) Ping(ctx context.Context) error { return nil }

// stubPricer serves quotes from a static per-model history.
type stubPricer struct {
	quotes map[string][]pricing.PriceQuote
}

func (p *stubPricer) Resolve(model string, at time.Time) (*pricing.PriceQuote, error) {
	for _, q := range p.quotes[model] {
		if q.EffectiveAt(at) {
			quote := q
			return &quote, nil
		}
	}
	return nil, pricing.ErrNoPricing
}

func testPricer() *stubPricer {
	return &stubPricer{quotes: map[string][]pricing.PriceQuote{
		"gpt-4": {{
			Model:         "gpt-4",
			Provider:      "openai",
			InputPer1K:    decimal.RequireFromString("0.03"),
			OutputPer1K:   decimal.RequireFromString("0.06"),
			EffectiveFrom: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		}},
		"gpt-3.5-turbo": {{
			Model:         "gpt-3.5-turbo",
			Provider:      "openai",
			InputPer1K:    decimal.RequireFromString("0.0015"),
			OutputPer1K:   decimal.RequireFromString("0.002"),
			EffectiveFrom: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		}},
	}}
}

func TestIngestBatchPartialSuccess(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo, testPricer(), PolicyReject)

	inputs := []EventInput{
		{AgentName: "support-bot", Model: "gpt-4", InputTokens: 1000, OutputTokens: 500, LatencyMS: 1200, Success: true},
		{AgentName: "support-bot", Model: "", InputTokens: 10, OutputTokens: 10},
		{AgentName: "summarizer", Model: "unknown-model", InputTokens: 10, OutputTokens: 10},
		{AgentName: "summarizer", Model: "gpt-3.5-turbo", InputTokens: -5, OutputTokens: 10},
	}

	result, err := service.IngestBatch(context.Background(), "proj-1", inputs)
	require.NoError(t, err)

	assert.Len(t, result.Accepted, 1)
	assert.Len(t, result.Rejected, 3)
	assert.Equal(t, len(inputs), len(result.Accepted)+len(result.Rejected))

	assert.Equal(t, 0, result.Accepted[0].Index)
	require.NotNil(t, result.Accepted[0].Cost)
	assert.True(t, result.Accepted[0].Cost.Equal(decimal.RequireFromString("0.06")),
		"got cost %s", result.Accepted[0].Cost)

	reasons := map[int]RejectReason{}
	for _, r := range result.Rejected {
		reasons[r.Index] = r.Reason
	}
	assert.Equal(t, ReasonValidation, reasons[1])
	assert.Equal(t, ReasonNoPricing, reasons[2])
	assert.Equal(t, ReasonValidation, reasons[3])
}

func TestIngestBatchScenarioCosts(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo, testPricer(), PolicyReject)

	inputs := []EventInput{
		{AgentName: "support-bot", Model: "gpt-4", InputTokens: 1000, OutputTokens: 500, LatencyMS: 900, Success: true},
		{AgentName: "support-bot", Model: "gpt-3.5-turbo", InputTokens: 2000, OutputTokens: 1000, LatencyMS: 400, Success: true},
		{AgentName: "summarizer", Model: "gpt-4", InputTokens: 500, OutputTokens: 100, Success: false, Error: "timeout"},
	}

	result, err := service.IngestBatch(context.Background(), "proj-1", inputs)
	require.NoError(t, err)
	require.Len(t, result.Accepted, 3)

	total := decimal.Zero
	for _, a := range result.Accepted {
		require.NotNil(t, a.Cost)
		total = total.Add(*a.Cost)
	}
	// 0.06 + 0.005 + (0.015 + 0.006)
	assert.True(t, total.Equal(decimal.RequireFromString("0.086")), "got total %s", total)
}

func TestIngestBatchIdempotentResubmission(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo, testPricer(), PolicyReject)

	inputs := []EventInput{{
		AgentName:      "support-bot",
		Model:          "gpt-4",
		InputTokens:    100,
		OutputTokens:   50,
		Timestamp:      "2025-06-01T12:00:00Z",
		IdempotencyKey: "evt-1",
	}}

	first, err := service.IngestBatch(context.Background(), "proj-1", inputs)
	require.NoError(t, err)
	require.Len(t, first.Accepted, 1)
	assert.False(t, first.Accepted[0].Duplicate)

	second, err := service.IngestBatch(context.Background(), "proj-1", inputs)
	require.NoError(t, err)
	require.Len(t, second.Accepted, 1)
	assert.True(t, second.Accepted[0].Duplicate)

	assert.Len(t, repo.events, 1, "resubmission must not store a second row")
}

func TestIngestBatchDerivedIdempotencyKey(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo, testPricer(), PolicyReject)

	inputs := []EventInput{{
		AgentName:    "support-bot",
		Model:        "gpt-4",
		InputTokens:  100,
		OutputTokens: 50,
		Timestamp:    "2025-06-01T12:00:00Z",
	}}

	_, err := service.IngestBatch(context.Background(), "proj-1", inputs)
	require.NoError(t, err)
	second, err := service.IngestBatch(context.Background(), "proj-1", inputs)
	require.NoError(t, err)

	assert.True(t, second.Accepted[0].Duplicate)
	assert.Len(t, repo.events, 1)
}

func TestIngestBatchEventTimePricing(t *testing.T) {
	// gpt-4 price changed on July 1st; an event timestamped in June must
	// cost out against the June quote even when ingested after the change.
	cut := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	pricer := &stubPricer{quotes: map[string][]pricing.PriceQuote{
		"gpt-4": {
			{
				Model:         "gpt-4",
				InputPer1K:    decimal.RequireFromString("0.03"),
				OutputPer1K:   decimal.RequireFromString("0.06"),
				EffectiveFrom: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
				EffectiveTo:   &cut,
			},
			{
				Model:         "gpt-4",
				InputPer1K:    decimal.RequireFromString("0.01"),
				OutputPer1K:   decimal.RequireFromString("0.02"),
				EffectiveFrom: cut,
			},
		},
	}}
	service := NewService(newMockRepository(), pricer, PolicyReject)

	result, err := service.IngestBatch(context.Background(), "proj-1", []EventInput{
		{AgentName: "a", Model: "gpt-4", InputTokens: 1000, OutputTokens: 0, Timestamp: "2025-06-15T00:00:00Z", IdempotencyKey: "june"},
		{AgentName: "a", Model: "gpt-4", InputTokens: 1000, OutputTokens: 0, Timestamp: "2025-07-15T00:00:00Z", IdempotencyKey: "july"},
	})
	require.NoError(t, err)
	require.Len(t, result.Accepted, 2)

	assert.True(t, result.Accepted[0].Cost.Equal(decimal.RequireFromString("0.03")))
	assert.True(t, result.Accepted[1].Cost.Equal(decimal.RequireFromString("0.01")))
}

func TestIngestBatchUnknownModelAllowPolicy(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo, testPricer(), PolicyAllow)

	result, err := service.IngestBatch(context.Background(), "proj-1", []EventInput{
		{AgentName: "a", Model: "mystery-model", InputTokens: 10, OutputTokens: 10, IdempotencyKey: "m1"},
	})
	require.NoError(t, err)
	require.Len(t, result.Accepted, 1)
	assert.Nil(t, result.Accepted[0].Cost)

	stored := repo.events["proj-1|m1"]
	require.NotNil(t, stored)
	assert.Nil(t, stored.Cost)
}

func TestIngestBatchTenantMismatch(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo, testPricer(), PolicyReject)

	_, err := service.IngestBatch(context.Background(), "proj-1", []EventInput{
		{AgentName: "a", Model: "gpt-4", InputTokens: 1, OutputTokens: 1},
		{ProjectID: "proj-2", AgentName: "a", Model: "gpt-4", InputTokens: 1, OutputTokens: 1},
	})
	require.ErrorIs(t, err, ErrTenantMismatch)
	assert.Empty(t, repo.events, "mismatched batch must not write anything")
}

func TestIngestBatchSizeLimit(t *testing.T) {
	service := NewService(newMockRepository(), testPricer(), PolicyReject)

	inputs := make([]EventInput, MaxBatchSize+1)
	for i := range inputs {
		inputs[i] = EventInput{AgentName: "a", Model: "gpt-4"}
	}

	_, err := service.IngestBatch(context.Background(), "proj-1", inputs)
	require.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestIngestBatchStorageFailureIsPerEvent(t *testing.T) {
	repo := newMockRepository()
	repo.failing = true
	service := NewService(repo, testPricer(), PolicyReject)

	result, err := service.IngestBatch(context.Background(), "proj-1", []EventInput{
		{AgentName: "a", Model: "gpt-4", InputTokens: 1, OutputTokens: 1},
	})
	require.NoError(t, err)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, ReasonStorage, result.Rejected[0].Reason)
}

func TestIngestBatchRejectsInvalidTimestamp(t *testing.T) {
	service := NewService(newMockRepository(), testPricer(), PolicyReject)

	result, err := service.IngestBatch(context.Background(), "proj-1", []EventInput{
		{AgentName: "a", Model: "gpt-4", Timestamp: "yesterday"},
	})
	require.NoError(t, err)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, ReasonValidation, result.Rejected[0].Reason)
}
