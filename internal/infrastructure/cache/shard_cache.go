package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shardbase/backend/internal/domain/shard"
	"github.com/redis/go-redis/v9"
)

// RedisShardCache implements shard.Cache over Redis. It is the shared
// cache-aside store for the heavy shard payload; TTL is the staleness
// backstop for processes that missed an invalidation broadcast.
type RedisShardCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisShardCache creates a cache over an existing Redis client.
// The caller retains ownership of the client.
func NewRedisShardCache(client *redis.Client) *RedisShardCache {
	return &RedisShardCache{
		client:    client,
		keyPrefix: "cache:",
	}
}

// Get retrieves a cache entry; (nil, nil) means miss
func (c *RedisShardCache) Get(ctx context.Context, key string) (*shard.CacheEntry, error) {
	data, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var entry shard.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		// A corrupt entry behaves like a miss; the next Set overwrites it
		return nil, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}
	return &entry, nil
}

// Set stores a cache entry under the TTL backstop
func (c *RedisShardCache) Set(ctx context.Context, key string, entry shard.CacheEntry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Delete removes a cache entry. Called only from the write path.
func (c *RedisShardCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// DeleteByPrefix removes every cache entry whose key starts with prefix,
// walking the keyspace with SCAN so large tenants do not block Redis.
func (c *RedisShardCache) DeleteByPrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	pattern := c.keyPrefix + prefix + "*"
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan cache entries: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete cache entries: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Ensure RedisShardCache implements the cache contract
var _ shard.Cache = (*RedisShardCache)(nil)
