package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SinkKeyCache maps business keys to sink record IDs in Redis so the worker
// can usually skip the sink's lookup round trip on repeat deliveries. Entries
// are advisory: a miss or a stale ID only costs an extra lookup, never a
// wrong write, because the sink upsert re-resolves on 404.
type SinkKeyCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewSinkKeyCache creates a new SinkKeyCache with the given Redis client and entry TTL.
func NewSinkKeyCache(client redis.UniversalClient, ttl time.Duration) *SinkKeyCache {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SinkKeyCache{client: client, ttl: ttl}
}

func cacheKey(externalKey string) string {
	return "erpsync:sinkid:" + externalKey
}

// Get returns the cached sink record ID for a business key, or "" on a miss.
func (c *SinkKeyCache) Get(ctx context.Context, externalKey string) (string, error) {
	if externalKey == "" {
		return "", errors.New("external key cannot be empty")
	}

	result, err := c.client.Get(ctx, cacheKey(externalKey)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil // Key doesn't exist
		}
		return "", fmt.Errorf("redis get: %w", err)
	}
	return result, nil
}

// Set stores the sink record ID for a business key.
func (c *SinkKeyCache) Set(ctx context.Context, externalKey, sinkID string) error {
	if externalKey == "" {
		return errors.New("external key cannot be empty")
	}
	if sinkID == "" {
		return errors.New("sink id cannot be empty")
	}

	return c.client.Set(ctx, cacheKey(externalKey), sinkID, c.ttl).Err()
}

// Delete drops the cached sink record ID for a business key.
func (c *SinkKeyCache) Delete(ctx context.Context, externalKey string) error {
	if externalKey == "" {
		return errors.New("external key cannot be empty")
	}

	if err := c.client.Del(ctx, cacheKey(externalKey)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Health checks the health of the Redis connection.
func (c *SinkKeyCache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
