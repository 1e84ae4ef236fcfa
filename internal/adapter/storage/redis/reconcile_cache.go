package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ReconcileCache implements ports.ReconcileCache using Redis. Only finalized
// reconcile results are stored, so a hit never hides a state change.
type ReconcileCache struct {
	client *goredis.Client
	prefix string
}

// NewReconcileCache creates a new Redis-backed reconcile result cache.
func NewReconcileCache(client *goredis.Client) *ReconcileCache {
	return &ReconcileCache{
		client: client,
		prefix: "wallet:",
	}
}

// Get retrieves a cached reconcile result.
// Returns nil, nil if the key does not exist.
func (c *ReconcileCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis reconcile get: %w", err)
	}
	return val, nil
}

// Set stores a reconcile result with TTL.
func (c *ReconcileCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis reconcile set: %w", err)
	}
	return nil
}
