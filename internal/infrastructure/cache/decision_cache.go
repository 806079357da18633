package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shardbase/backend/internal/domain/access"
	"github.com/redis/go-redis/v9"
)

// RedisDecisionCache implements access.DecisionCache over Redis.
// Decisions are tiny and short-lived, so entries carry their own TTL and
// prefix eviction walks the keyspace with SCAN rather than tracking sets.
type RedisDecisionCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisDecisionCache creates a decision cache over an existing Redis
// client. The caller retains ownership of the client.
func NewRedisDecisionCache(client *redis.Client) *RedisDecisionCache {
	return &RedisDecisionCache{
		client:    client,
		keyPrefix: "cache:",
	}
}

// Get retrieves a cached decision; (nil, nil) means miss
func (c *RedisDecisionCache) Get(ctx context.Context, key string) (*access.Decision, error) {
	data, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read decision: %w", err)
	}

	var decision access.Decision
	if err := json.Unmarshal(data, &decision); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decision: %w", err)
	}
	return &decision, nil
}

// Set stores a decision under the configured TTL
func (c *RedisDecisionCache) Set(ctx context.Context, key string, decision access.Decision, ttl time.Duration) error {
	data, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("failed to marshal decision: %w", err)
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write decision: %w", err)
	}
	return nil
}

// DeleteByPrefix removes every decision whose key starts with prefix
func (c *RedisDecisionCache) DeleteByPrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	pattern := c.keyPrefix + prefix + "*"
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan decisions: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete decisions: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Ensure RedisDecisionCache implements the cache contract
var _ access.DecisionCache = (*RedisDecisionCache)(nil)
