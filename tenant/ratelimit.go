// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package tenant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RateLimiter enforces a per-project requests-per-minute budget using a
// Redis sliding window. When Redis is not configured it falls back to an
// in-process window, which is good enough for single-instance deployments.
type RateLimiter struct {
	client    *redis.Client
	perMinute int

	mu      sync.Mutex
	windows map[string][]time.Time
}

// NewRateLimiter creates a limiter. client may be nil for the in-memory
// fallback.
func NewRateLimiter(client *redis.Client, perMinute int) *RateLimiter {
	return &RateLimiter{
		client:    client,
		perMinute: perMinute,
		windows:   make(map[string][]time.Time),
	}
}

// Allow records one request for the project and returns ErrRateLimited when
// the sliding one-minute window is full.
func (l *RateLimiter) Allow(ctx context.Context, projectID string) error {
	if l.perMinute <= 0 {
		return nil
	}
	if l.client == nil {
		return l.allowLocal(projectID)
	}

	now := time.Now()
	key := fmt.Sprintf("ratelimit:%s", projectID)

	pipe := l.client.Pipeline()
	minScore := now.Add(-time.Minute).UnixNano()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", minScore))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, &redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	pipe.Expire(ctx, key, 2*time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		// Redis trouble must not take ingestion down with it.
		return l.allowLocal(projectID)
	}

	if countCmd.Val() >= int64(l.perMinute) {
		return ErrRateLimited
	}
	return nil
}

func (l *RateLimiter) allowLocal(projectID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-time.Minute)

	window := l.windows[projectID]
	kept := window[:0]
	for _, t := range window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.perMinute {
		l.windows[projectID] = kept
		return ErrRateLimited
	}
	l.windows[projectID] = append(kept, now)
	return nil
}
