package shard

import (
	"context"
	"errors"
	"time"

	"github.com/shardbase/backend/internal/domain/access"
	"github.com/shardbase/backend/internal/domain/shard"
	"github.com/shardbase/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultCacheTTL = 20 * time.Minute

// Authorizer gates every coordinator operation. Implemented by the ACL
// service; a Deny decision is a value, never an error.
type Authorizer interface {
	Authorize(ctx context.Context, p access.Principal, tenantID, shardID uuid.UUID, action access.Action) (access.Decision, error)
}

// Coordinator sequences every shard operation: ACL check first and
// always, then the repository as the single durability boundary, then
// cache invalidation and revision append, then non-blocking event
// emission. Nothing before the repository commit leaves partial state;
// everything after it is best effort with monitoring.
type Coordinator struct {
	authz     Authorizer
	repo      shard.Repository
	revisions shard.RevisionRepository
	cache     shard.Cache
	bus       shared.InvalidationPublisher
	events    shared.EventPublisher
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// CoordinatorOption is a functional option for configuring the coordinator
type CoordinatorOption func(*Coordinator)

// WithEventPublisher wires the optional event publisher. Without it, no
// domain events are emitted.
func WithEventPublisher(pub shared.EventPublisher) CoordinatorOption {
	return func(c *Coordinator) {
		c.events = pub
	}
}

// WithCacheTTL overrides the shard cache TTL backstop
func WithCacheTTL(ttl time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.cacheTTL = ttl
	}
}

// WithCoordinatorLogger sets the coordinator logger
func WithCoordinatorLogger(logger *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// NewCoordinator creates a new consistency coordinator
func NewCoordinator(
	authz Authorizer,
	repo shard.Repository,
	revisions shard.RevisionRepository,
	cache shard.Cache,
	bus shared.InvalidationPublisher,
	opts ...CoordinatorOption,
) *Coordinator {
	c := &Coordinator{
		authz:     authz,
		repo:      repo,
		revisions: revisions,
		cache:     cache,
		bus:       bus,
		cacheTTL:  defaultCacheTTL,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create creates a new shard at version 1 with revision 1
func (c *Coordinator) Create(ctx context.Context, p access.Principal, tenantID, typeID uuid.UUID, data map[string]interface{}) (*ShardResponse, error) {
	if err := c.authorize(ctx, p, tenantID, uuid.Nil, access.ActionCreate); err != nil {
		return nil, err
	}

	s, err := shard.NewShard(tenantID, typeID, data)
	if err != nil {
		return nil, err
	}
	s.SetCreatedBy(p.UserID)

	if err := c.repo.Create(ctx, s); err != nil {
		return nil, err
	}

	summary := shard.DiffFromEmpty(s.Snapshot())
	pending := c.afterCommit(ctx, s, summary, p.UserID, shard.NewShardCreatedEvent(s))

	resp := ToShardResponse(s)
	resp.RevisionPending = pending
	return resp, nil
}

// Get reads a shard, cache-aside. Soft-deleted shards come back only when
// includeDeleted is set.
func (c *Coordinator) Get(ctx context.Context, p access.Principal, tenantID, shardID uuid.UUID, includeDeleted bool) (*ShardResponse, error) {
	if err := c.authorize(ctx, p, tenantID, shardID, access.ActionRead); err != nil {
		return nil, err
	}

	key := shard.CacheKey(tenantID, shardID)

	entry, err := c.cache.Get(ctx, key)
	if err != nil {
		// Cache trouble degrades to a miss
		c.logger.Warn("shard cache read failed",
			zap.String("key", key),
			zap.Error(err))
		entry = nil
	}
	if entry != nil {
		if entry.Status == shard.StatusDeleted && !includeDeleted {
			return nil, shared.ErrNotFound
		}
		return &ShardResponse{
			ID:             shardID,
			TenantID:       tenantID,
			TypeID:         entry.TypeID,
			Version:        entry.CachedVersion,
			Status:         string(entry.Status),
			StructuredData: entry.StructuredData,
			UpdatedAt:      entry.UpdatedAt,
		}, nil
	}

	s, err := c.repo.FindByIDForTenant(ctx, tenantID, shardID, true)
	if err != nil {
		return nil, err
	}

	c.populateCache(ctx, s)

	if s.IsDeleted() && !includeDeleted {
		return nil, shared.ErrNotFound
	}
	return ToShardResponse(s), nil
}

// List pages shards for a tenant, excluding soft-deleted ones by default
func (c *Coordinator) List(ctx context.Context, p access.Principal, tenantID uuid.UUID, filter ListFilter) (*shared.Paginated[ShardResponse], error) {
	if err := c.authorize(ctx, p, tenantID, uuid.Nil, access.ActionRead); err != nil {
		return nil, err
	}

	domainFilter := shared.DefaultFilter()
	if filter.Page > 0 && filter.PageSize > 0 {
		domainFilter.Page = filter.Page
		domainFilter.PageSize = filter.PageSize
	}
	if filter.SortBy != "" {
		domainFilter.OrderBy = filter.SortBy
		domainFilter.OrderDir = filter.SortDir
	}
	if filter.TypeID != nil {
		domainFilter.Filters["type_id"] = *filter.TypeID
	}

	shards, total, err := c.repo.FindAllForTenant(ctx, tenantID, domainFilter, filter.IncludeDeleted)
	if err != nil {
		return nil, err
	}

	items := make([]ShardResponse, len(shards))
	for i := range shards {
		items[i] = *ToShardResponse(&shards[i])
	}
	page := shared.NewPaginated(items, total, domainFilter.Page, domainFilter.PageSize)
	return &page, nil
}

// Update replaces a shard's data under an optimistic-concurrency
// precondition: expectedVersion must match the stored version or the
// write fails with a concurrency conflict and no side effects.
func (c *Coordinator) Update(ctx context.Context, p access.Principal, tenantID, shardID uuid.UUID, expectedVersion int, data map[string]interface{}) (*ShardResponse, error) {
	return c.write(ctx, p, tenantID, shardID, expectedVersion, access.ActionUpdate, func(s *shard.Shard) (shared.DomainEvent, *shard.Diff, error) {
		before := s.Snapshot()
		if err := s.ApplyData(data); err != nil {
			return nil, nil, err
		}
		s.IncrementVersion()
		summary := shard.CompareSnapshots(before, s.Snapshot())
		return shard.NewShardUpdatedEvent(s, summary, false), &summary, nil
	})
}

// Patch merges partial data into a shard under the same precondition as Update
func (c *Coordinator) Patch(ctx context.Context, p access.Principal, tenantID, shardID uuid.UUID, expectedVersion int, partial map[string]interface{}) (*ShardResponse, error) {
	return c.write(ctx, p, tenantID, shardID, expectedVersion, access.ActionUpdate, func(s *shard.Shard) (shared.DomainEvent, *shard.Diff, error) {
		before := s.Snapshot()
		if err := s.MergeData(partial); err != nil {
			return nil, nil, err
		}
		s.IncrementVersion()
		summary := shard.CompareSnapshots(before, s.Snapshot())
		return shard.NewShardUpdatedEvent(s, summary, true), &summary, nil
	})
}

// Delete soft deletes a shard. It is a normal write: it produces a
// revision, invalidates cache and emits an event.
func (c *Coordinator) Delete(ctx context.Context, p access.Principal, tenantID, shardID uuid.UUID, expectedVersion int) error {
	_, err := c.write(ctx, p, tenantID, shardID, expectedVersion, access.ActionDelete, func(s *shard.Shard) (shared.DomainEvent, *shard.Diff, error) {
		before := s.Snapshot()
		if err := s.MarkDeleted(); err != nil {
			return nil, nil, err
		}
		s.IncrementVersion()
		summary := shard.CompareSnapshots(before, s.Snapshot())
		return shard.NewShardDeletedEvent(s), &summary, nil
	})
	return err
}

// ListRevisions returns a shard's revision history in ascending order
func (c *Coordinator) ListRevisions(ctx context.Context, p access.Principal, tenantID, shardID uuid.UUID) ([]RevisionResponse, error) {
	if err := c.authorize(ctx, p, tenantID, shardID, access.ActionRead); err != nil {
		return nil, err
	}

	revs, err := c.revisions.FindAllForShard(ctx, tenantID, shardID)
	if err != nil {
		return nil, err
	}
	return toRevisionResponses(revs), nil
}

// CompareRevisions computes the structural diff between two revisions
func (c *Coordinator) CompareRevisions(ctx context.Context, p access.Principal, tenantID, shardID uuid.UUID, a, b int) (*shard.Diff, error) {
	if err := c.authorize(ctx, p, tenantID, shardID, access.ActionCompare); err != nil {
		return nil, err
	}

	revA, err := c.revisions.FindByNumber(ctx, tenantID, shardID, a)
	if err != nil {
		return nil, err
	}
	revB, err := c.revisions.FindByNumber(ctx, tenantID, shardID, b)
	if err != nil {
		return nil, err
	}

	diff := shard.CompareSnapshots(revA.Snapshot, revB.Snapshot)
	return &diff, nil
}

// Revert restores a shard to a prior revision's state by performing a
// normal forward write. History is never rewritten: revert appends a new
// revision whose snapshot equals the target's.
func (c *Coordinator) Revert(ctx context.Context, p access.Principal, tenantID, shardID uuid.UUID, targetRevision int) (*ShardResponse, error) {
	if err := c.authorize(ctx, p, tenantID, shardID, access.ActionRevert); err != nil {
		return nil, err
	}

	target, err := c.revisions.FindByNumber(ctx, tenantID, shardID, targetRevision)
	if err != nil {
		return nil, err
	}

	s, err := c.repo.FindByIDForTenant(ctx, tenantID, shardID, true)
	if err != nil {
		return nil, err
	}
	expectedVersion := s.Version

	before := s.Snapshot()
	if err := s.ApplyData(target.Snapshot.StructuredData); err != nil {
		return nil, err
	}
	s.Status = target.Snapshot.Status
	s.IncrementVersion()

	if err := c.repo.UpdateWithVersion(ctx, s, expectedVersion); err != nil {
		return nil, err
	}

	summary := shard.CompareSnapshots(before, s.Snapshot())
	pending := c.afterCommit(ctx, s, summary, p.UserID, shard.NewShardRevertedEvent(s, targetRevision))

	resp := ToShardResponse(s)
	resp.RevisionPending = pending
	return resp, nil
}

// mutate applies a domain mutation and returns the event and change
// summary the write should record. It runs after the current state is
// loaded and before the conditional write.
type mutate func(s *shard.Shard) (shared.DomainEvent, *shard.Diff, error)

// write is the shared write path: authorize, load, precondition check,
// mutate, conditional commit, then the after-commit tail.
func (c *Coordinator) write(ctx context.Context, p access.Principal, tenantID, shardID uuid.UUID, expectedVersion int, action access.Action, fn mutate) (*ShardResponse, error) {
	if err := c.authorize(ctx, p, tenantID, shardID, action); err != nil {
		return nil, err
	}

	s, err := c.repo.FindByIDForTenant(ctx, tenantID, shardID, true)
	if err != nil {
		return nil, err
	}
	if s.IsDeleted() && action != access.ActionDelete {
		return nil, shared.ErrInvalidState
	}
	if s.Version != expectedVersion {
		return nil, shared.ErrConcurrencyConflict
	}

	event, summary, err := fn(s)
	if err != nil {
		return nil, err
	}

	// The conditional update is the authoritative serialization point;
	// the early version check above only short-circuits obvious losers.
	if err := c.repo.UpdateWithVersion(ctx, s, expectedVersion); err != nil {
		return nil, err
	}

	pending := c.afterCommit(ctx, s, *summary, p.UserID, event)

	resp := ToShardResponse(s)
	resp.RevisionPending = pending
	return resp, nil
}

// afterCommit runs the post-durability tail of every write: synchronous
// cache invalidation, revision append, then detached event emission.
// Failures here never roll back the committed write. The returned flag
// reports a revision append failure for the caller-visible response.
func (c *Coordinator) afterCommit(ctx context.Context, s *shard.Shard, summary shard.Diff, author uuid.UUID, event shared.DomainEvent) (revisionPending bool) {
	key := shard.CacheKey(s.TenantID, s.GetID())

	deleteFailed := false
	if err := c.cache.Delete(ctx, key); err != nil {
		deleteFailed = true
		c.logger.Warn("shard cache delete failed after commit",
			zap.String("key", key),
			zap.Int("version", s.Version),
			zap.Error(err))
	}
	if err := c.bus.PublishInvalidation(ctx, key); err != nil {
		if deleteFailed {
			// Neither the delete nor the broadcast landed; readers are
			// bounded only by TTL until one of them does.
			c.logger.Error("consistency risk: cache invalidation fully failed",
				zap.String("key", key),
				zap.Int("version", s.Version),
				zap.Error(err))
		} else {
			c.logger.Warn("invalidation publish failed, shared cache already deleted",
				zap.String("key", key),
				zap.Error(err))
		}
	}

	rev := shard.NewRevision(s, summary, author)
	if err := c.revisions.Append(ctx, rev); err != nil {
		if errors.Is(err, shared.ErrRevisionSequence) {
			// Audit trail corruption; escalated, not retried.
			c.logger.Error("revision sequence violation",
				zap.String("shard_id", s.GetID().String()),
				zap.Int("revision", rev.Number),
				zap.Error(err))
		} else {
			c.logger.Error("revision append failed, shard flagged revision-pending",
				zap.String("shard_id", s.GetID().String()),
				zap.Int("revision", rev.Number),
				zap.Error(err))
		}
		revisionPending = true
	}

	c.emit(ctx, event)
	return revisionPending
}

// emit schedules event publication without blocking the write path. The
// publisher owns delivery; its failure never fails the operation.
func (c *Coordinator) emit(ctx context.Context, event shared.DomainEvent) {
	if c.events == nil || event == nil {
		return
	}
	// Detached from the request: a caller cancelling after commit must not
	// cancel the at-least-once publish attempt.
	if err := c.events.Publish(context.WithoutCancel(ctx), event); err != nil {
		c.logger.Warn("event publish attempt failed",
			zap.String("event_type", event.EventType()),
			zap.Error(err))
	}
}

// populateCache writes a freshly loaded shard into the cache-aside store
func (c *Coordinator) populateCache(ctx context.Context, s *shard.Shard) {
	key := shard.CacheKey(s.TenantID, s.GetID())
	entry := shard.CacheEntry{
		TypeID:         s.TypeID,
		Status:         s.Status,
		CachedVersion:  s.Version,
		StructuredData: s.StructuredData,
		UpdatedAt:      s.GetUpdatedAt(),
	}
	if err := c.cache.Set(ctx, key, entry, c.cacheTTL); err != nil {
		c.logger.Warn("shard cache populate failed",
			zap.String("key", key),
			zap.Error(err))
	}
}

// authorize runs the ACL check that opens every operation
func (c *Coordinator) authorize(ctx context.Context, p access.Principal, tenantID, shardID uuid.UUID, action access.Action) error {
	decision, err := c.authz.Authorize(ctx, p, tenantID, shardID, action)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return shared.NewDomainError("FORBIDDEN", decision.Reason)
	}
	return nil
}
