package shard

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CacheKeyPrefix namespaces shard cache keys on the invalidation bus
const CacheKeyPrefix = "shard:"

// CacheKey derives the cache key for a shard: shard:{tenantId}:{shardId}
func CacheKey(tenantID, shardID uuid.UUID) string {
	return CacheKeyPrefix + tenantID.String() + ":" + shardID.String()
}

// CacheEntry is the cached heavy portion of a shard. CachedVersion records
// the shard version the value was read at; correctness does not depend on
// re-checking it, because writers invalidate before acking, but it makes
// staleness observable.
type CacheEntry struct {
	TypeID         uuid.UUID              `json:"type_id"`
	Status         Status                 `json:"status"`
	CachedVersion  int                    `json:"cached_version"`
	StructuredData map[string]interface{} `json:"structured_data"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// TenantCachePrefix derives the key prefix covering every cached shard
// of a tenant: shard:{tenantId}:
func TenantCachePrefix(tenantID uuid.UUID) string {
	return CacheKeyPrefix + tenantID.String() + ":"
}

// Cache is the cache-aside store for shards. Get returns (nil, nil) on a
// miss; callers load from the repository and call Set. Only writers may
// Delete, via the invalidation path. DeleteByPrefix drops every entry
// under a prefix, for tenant-wide invalidation.
type Cache interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Set(ctx context.Context, key string, entry CacheEntry, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}
