package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sss97133/nuke-sub008/internal/domain"
)

// dedupKeyPrefix namespaces idempotency keys in Redis.
const dedupKeyPrefix = "auction-events:dedup:"

// defaultDedupTTL keeps idempotency keys long enough to outlive any
// plausible re-poll of a concluded auction.
const defaultDedupTTL = 30 * 24 * time.Hour

// RedisSink publishes events to a Redis stream and tracks idempotency
// keys with SETNX. It implements both Handler and Deduper.
type RedisSink struct {
	client   *redis.Client
	dedupTTL time.Duration
}

// NewRedisSink creates a Redis-backed event sink. Returns nil if client
// is nil.
func NewRedisSink(client *redis.Client) *RedisSink {
	if client == nil {
		return nil
	}
	return &RedisSink{client: client, dedupTTL: defaultDedupTTL}
}

// FirstEmission atomically claims an idempotency key.
func (s *RedisSink) FirstEmission(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, dedupKeyPrefix+key, 1, s.dedupTTL).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}
	return ok, nil
}

// Handle appends the event to the auction events stream.
func (s *RedisSink) Handle(ctx context.Context, event domain.AuctionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.EventID, err)
	}

	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: domain.StreamName,
		Values: map[string]any{
			"kind":    string(event.Kind),
			"payload": payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", event.IdempotencyKey, err)
	}
	return nil
}
