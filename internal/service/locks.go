package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisOrderLocker serializes pipeline work per order id with a redis SetNX
// lock. The TTL bounds how long a crashed holder can wedge an order.
type RedisOrderLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisOrderLocker(client *redis.Client) *RedisOrderLocker {
	return &RedisOrderLocker{client: client, ttl: 30 * time.Second}
}

func (l *RedisOrderLocker) Acquire(ctx context.Context, orderID uuid.UUID) (func(), error) {
	key := fmt.Sprintf("order_lock:%s", orderID)
	for {
		ok, err := l.client.SetNX(ctx, key, "1", l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire order lock: %w", err)
		}
		if ok {
			release := func() {
				l.client.Del(context.Background(), key)
			}
			return release, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// RedisFallbackFlags stores the buyer-facing manual-confirmation affordance.
// The TTL is set to the remainder of the waiting window so stale flags clean
// themselves up.
type RedisFallbackFlags struct {
	client *redis.Client
}

func NewRedisFallbackFlags(client *redis.Client) *RedisFallbackFlags {
	return &RedisFallbackFlags{client: client}
}

func flagKey(orderID uuid.UUID) string {
	return fmt.Sprintf("order_manual_fallback:%s", orderID)
}

func (f *RedisFallbackFlags) Set(ctx context.Context, orderID uuid.UUID, ttl time.Duration) error {
	return f.client.Set(ctx, flagKey(orderID), "1", ttl).Err()
}

func (f *RedisFallbackFlags) Active(ctx context.Context, orderID uuid.UUID) (bool, error) {
	n, err := f.client.Exists(ctx, flagKey(orderID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (f *RedisFallbackFlags) Clear(ctx context.Context, orderID uuid.UUID) error {
	return f.client.Del(ctx, flagKey(orderID)).Err()
}
