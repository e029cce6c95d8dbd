// Package cache provides a Redis-backed read cache for per-user aggregates.
// A nil *Cache or a Cache without a client is a valid no-op cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/starford/hashnote/internal/models"
)

// Cache stores derived per-user views (tag counts) with a TTL and drops them
// whenever the user's notes change.
type Cache struct {
	redis *redis.Client
	ttl   time.Duration
}

// New returns a Cache using client. A zero or negative ttl disables writes.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{redis: client, ttl: ttl}
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr string, ttl time.Duration) (*Cache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return New(client, ttl), nil
}

// TagCounts returns cached tag counts for userID.
func (c *Cache) TagCounts(ctx context.Context, userID string) ([]models.TagCount, bool) {
	if c == nil || c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, tagsKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			// On redis errors fall back to the store without failing.
			_ = c.redis.Del(ctx, tagsKey(userID)).Err()
		}
		return nil, false
	}
	var counts []models.TagCount
	if err := json.Unmarshal(data, &counts); err != nil {
		_ = c.redis.Del(ctx, tagsKey(userID)).Err()
		return nil, false
	}
	return counts, true
}

// StoreTagCounts caches counts for userID.
func (c *Cache) StoreTagCounts(ctx context.Context, userID string, counts []models.TagCount) {
	if c == nil || c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(counts)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, tagsKey(userID), data, c.ttl).Err()
}

// Evict drops every cached view of userID.
func (c *Cache) Evict(ctx context.Context, userID string) {
	if c == nil || c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, tagsKey(userID)).Result()
}

// Close releases the Redis client.
func (c *Cache) Close() error {
	if c == nil || c.redis == nil {
		return nil
	}
	return c.redis.Close()
}

func tagsKey(userID string) string {
	return "hashnote:tags:" + userID
}
