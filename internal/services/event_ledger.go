package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventLedger remembers which provider webhook events were already applied.
type EventLedger interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Remember(ctx context.Context, eventID string) error
}

type RedisEventLedger struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisEventLedger(client *redis.Client, ttl time.Duration) *RedisEventLedger {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &RedisEventLedger{client: client, ttl: ttl, prefix: "paymongo:event:"}
}

func (l *RedisEventLedger) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := l.client.Exists(ctx, l.prefix+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *RedisEventLedger) Remember(ctx context.Context, eventID string) error {
	return l.client.SetNX(ctx, l.prefix+eventID, time.Now().UTC().Format(time.RFC3339), l.ttl).Err()
}

// NoopEventLedger is used when Redis is not configured. Reconciliation is
// idempotent on its own, so redeliveries are still safe.
type NoopEventLedger struct{}

func (NoopEventLedger) Seen(context.Context, string) (bool, error) { return false, nil }

func (NoopEventLedger) Remember(context.Context, string) error { return nil }
