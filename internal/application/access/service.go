package access

import (
	"context"
	"time"

	"github.com/shardbase/backend/internal/domain/access"
	"github.com/shardbase/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultDecisionTTL = 60 * time.Second

// Service is the ACL engine's stateful front: it evaluates decisions via
// the pure evaluator and keeps them in a short-TTL decision cache that is
// push-invalidated whenever bindings change.
type Service struct {
	bindings access.BindingRepository
	cache    access.DecisionCache
	bus      shared.InvalidationPublisher
	policy   access.RolePolicy
	ttl      time.Duration
	logger   *zap.Logger
}

// Option is a functional option for configuring the service
type Option func(*Service)

// WithDecisionTTL overrides the decision cache TTL
func WithDecisionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

// WithRolePolicy overrides the built-in role policy
func WithRolePolicy(policy access.RolePolicy) Option {
	return func(s *Service) {
		s.policy = policy
	}
}

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a new ACL service
func NewService(bindings access.BindingRepository, cache access.DecisionCache, bus shared.InvalidationPublisher, opts ...Option) *Service {
	s := &Service{
		bindings: bindings,
		cache:    cache,
		bus:      bus,
		policy:   access.DefaultRolePolicy(),
		ttl:      defaultDecisionTTL,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authorize resolves whether the principal may perform the action.
// Deny comes back as a decision value; the error return is reserved for
// infrastructure failures (binding store unreachable), which callers must
// treat as an aborted operation, not a deny.
func (s *Service) Authorize(ctx context.Context, p access.Principal, tenantID, shardID uuid.UUID, action access.Action) (access.Decision, error) {
	key := access.DecisionCacheKey(tenantID, p.UserID, shardID, action)

	cached, err := s.cache.Get(ctx, key)
	if err != nil {
		// Cache trouble degrades to a miss
		s.logger.Warn("decision cache read failed",
			zap.String("key", key),
			zap.Error(err))
	} else if cached != nil {
		return *cached, nil
	}

	candidates, err := s.bindings.FindCandidates(ctx, tenantID, p.UserID, p.Roles)
	if err != nil {
		s.logger.Error("binding lookup failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("principal_id", p.UserID.String()),
			zap.Error(err))
		return access.Deny("authorization backend unavailable"), shared.ErrTransientStore
	}

	decision := access.Evaluate(p, tenantID, shardID, action, candidates, s.policy)

	if err := s.cache.Set(ctx, key, decision, s.ttl); err != nil {
		s.logger.Warn("decision cache write failed",
			zap.String("key", key),
			zap.Error(err))
	}

	return decision, nil
}

// Grant persists a binding and push-invalidates the decisions it affects
func (s *Service) Grant(ctx context.Context, b *access.Binding) error {
	if err := s.bindings.Save(ctx, b); err != nil {
		return err
	}
	s.invalidateFor(ctx, b)
	return nil
}

// Revoke deletes a binding and push-invalidates the decisions it affects
func (s *Service) Revoke(ctx context.Context, b *access.Binding) error {
	if err := s.bindings.Delete(ctx, b.TenantID, b.ID); err != nil {
		return err
	}
	s.invalidateFor(ctx, b)
	return nil
}

// EvictPrincipal drops every cached decision for a principal. The external
// role-management collaborator calls this when roles or membership change.
func (s *Service) EvictPrincipal(ctx context.Context, tenantID, principalID uuid.UUID) {
	s.evictPrefix(ctx, access.PrincipalCachePrefix(tenantID, principalID))
}

// HandleInvalidation applies an invalidation key broadcast by another
// process. Wired to the invalidation bus subscription at startup.
func (s *Service) HandleInvalidation(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.cache.DeleteByPrefix(ctx, key); err != nil {
		s.logger.Warn("decision cache eviction failed",
			zap.String("prefix", key),
			zap.Error(err))
	}
}

// invalidateFor evicts the narrowest decision namespace a binding touches.
// Principal bindings evict one principal; role bindings evict the tenant,
// since the affected principal set is unknown here.
func (s *Service) invalidateFor(ctx context.Context, b *access.Binding) {
	prefix := access.TenantCachePrefix(b.TenantID)
	if b.PrincipalID != nil {
		prefix = access.PrincipalCachePrefix(b.TenantID, *b.PrincipalID)
	}
	s.evictPrefix(ctx, prefix)
}

func (s *Service) evictPrefix(ctx context.Context, prefix string) {
	if err := s.cache.DeleteByPrefix(ctx, prefix); err != nil {
		s.logger.Warn("decision cache eviction failed",
			zap.String("prefix", prefix),
			zap.Error(err))
	}
	if err := s.bus.PublishInvalidation(ctx, prefix); err != nil {
		s.logger.Warn("decision invalidation publish failed",
			zap.String("prefix", prefix),
			zap.Error(err))
	}
}
