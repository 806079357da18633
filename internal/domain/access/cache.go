package access

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DecisionCachePrefix namespaces ACL decision keys on the invalidation bus
const DecisionCachePrefix = "acl:"

// DecisionCacheKey derives the cache key for one decision:
// acl:{tenantId}:{principalId}:{shardId}:{action}
func DecisionCacheKey(tenantID, principalID, shardID uuid.UUID, action Action) string {
	return PrincipalCachePrefix(tenantID, principalID) + shardID.String() + ":" + string(action)
}

// PrincipalCachePrefix is the key prefix covering every cached decision
// for one principal in one tenant. Evicting by this prefix is how role or
// binding mutations push-invalidate a principal's decisions.
func PrincipalCachePrefix(tenantID, principalID uuid.UUID) string {
	return DecisionCachePrefix + tenantID.String() + ":" + principalID.String() + ":"
}

// TenantCachePrefix covers every cached decision in a tenant. Used when a
// role-targeted binding changes and the affected principals are unknown.
func TenantCachePrefix(tenantID uuid.UUID) string {
	return DecisionCachePrefix + tenantID.String() + ":"
}

// DecisionCache stores recent decisions under a short TTL. Get returns
// (nil, nil) on a miss. Namespacing per tenant+principal is what prevents
// cross-tenant leakage of cached decisions.
type DecisionCache interface {
	Get(ctx context.Context, key string) (*Decision, error)
	Set(ctx context.Context, key string, d Decision, ttl time.Duration) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}
