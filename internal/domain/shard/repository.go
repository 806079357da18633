package shard

import (
	"context"

	"github.com/shardbase/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Repository is the authoritative store for shards. It owns the version
// counter: UpdateWithVersion performs an atomic compare-and-set so that
// exactly one of any set of racing writers for a given version wins.
type Repository interface {
	// Create persists a new shard at version 1
	Create(ctx context.Context, s *Shard) error

	// FindByIDForTenant loads a shard by ID within a tenant. Soft-deleted
	// shards are returned only when includeDeleted is true.
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID, includeDeleted bool) (*Shard, error)

	// FindAllForTenant lists shards for a tenant. Soft-deleted shards are
	// excluded unless includeDeleted is true.
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter, includeDeleted bool) ([]Shard, int64, error)

	// UpdateWithVersion persists the shard conditionally on the stored row
	// still being at expectedVersion. The shard's own Version must already
	// be expectedVersion+1. Returns shared.ErrConcurrencyConflict when the
	// precondition fails.
	UpdateWithVersion(ctx context.Context, s *Shard, expectedVersion int) error
}

// RevisionRepository is the append-only revision log. It is the single
// writer of revisions and enforces sequence contiguity on append.
type RevisionRepository interface {
	// Append writes a revision. The revision number must equal the current
	// latest number plus one (or 1 for the first revision); otherwise the
	// append is rejected with shared.ErrRevisionSequence.
	Append(ctx context.Context, rev *Revision) error

	// FindByNumber loads one revision of a shard
	FindByNumber(ctx context.Context, tenantID, shardID uuid.UUID, number int) (*Revision, error)

	// FindLatest loads the highest-numbered revision of a shard
	FindLatest(ctx context.Context, tenantID, shardID uuid.UUID) (*Revision, error)

	// FindAllForShard lists a shard's revisions in ascending number order
	FindAllForShard(ctx context.Context, tenantID, shardID uuid.UUID) ([]Revision, error)
}
