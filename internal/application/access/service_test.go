package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shardbase/backend/internal/domain/access"
	"github.com/shardbase/backend/internal/domain/shared"
)

// MockBindingRepository mocks access.BindingRepository
type MockBindingRepository struct {
	mock.Mock
}

func (m *MockBindingRepository) Save(ctx context.Context, b *access.Binding) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *MockBindingRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

func (m *MockBindingRepository) FindCandidates(ctx context.Context, tenantID, principalID uuid.UUID, roles []string) ([]access.Binding, error) {
	args := m.Called(ctx, tenantID, principalID, roles)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]access.Binding), args.Error(1)
}

// MockDecisionCache mocks access.DecisionCache
type MockDecisionCache struct {
	mock.Mock
}

func (m *MockDecisionCache) Get(ctx context.Context, key string) (*access.Decision, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*access.Decision), args.Error(1)
}

func (m *MockDecisionCache) Set(ctx context.Context, key string, decision access.Decision, ttl time.Duration) error {
	args := m.Called(ctx, key, decision, ttl)
	return args.Error(0)
}

func (m *MockDecisionCache) DeleteByPrefix(ctx context.Context, prefix string) error {
	args := m.Called(ctx, prefix)
	return args.Error(0)
}

// MockPublisher mocks shared.InvalidationPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishInvalidation(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func newTestPrincipal(tenantID uuid.UUID, roles ...string) access.Principal {
	return access.Principal{UserID: uuid.New(), TenantID: tenantID, Roles: roles}
}

func TestServiceAuthorize(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	shardID := uuid.New()

	t.Run("cached decision short-circuits evaluation", func(t *testing.T) {
		bindings := new(MockBindingRepository)
		cache := new(MockDecisionCache)
		bus := new(MockPublisher)
		svc := NewService(bindings, cache, bus)
		p := newTestPrincipal(tenantID, "viewer")

		cached := access.Allow()
		cache.On("Get", mock.Anything, mock.Anything).Return(&cached, nil)

		decision, err := svc.Authorize(ctx, p, tenantID, shardID, access.ActionRead)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		bindings.AssertNotCalled(t, "FindCandidates", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("miss evaluates bindings and caches the result", func(t *testing.T) {
		bindings := new(MockBindingRepository)
		cache := new(MockDecisionCache)
		bus := new(MockPublisher)
		svc := NewService(bindings, cache, bus)
		p := newTestPrincipal(tenantID, "viewer")

		cache.On("Get", mock.Anything, mock.Anything).Return(nil, nil)
		bindings.On("FindCandidates", mock.Anything, tenantID, p.UserID, p.Roles).Return([]access.Binding{}, nil)
		cache.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		// viewer role default allows read
		decision, err := svc.Authorize(ctx, p, tenantID, shardID, access.ActionRead)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)

		cache.AssertCalled(t, "Set", mock.Anything,
			access.DecisionCacheKey(tenantID, p.UserID, shardID, access.ActionRead),
			mock.Anything, mock.Anything)
	})

	t.Run("viewer denied update by role default", func(t *testing.T) {
		bindings := new(MockBindingRepository)
		cache := new(MockDecisionCache)
		bus := new(MockPublisher)
		svc := NewService(bindings, cache, bus)
		p := newTestPrincipal(tenantID, "viewer")

		cache.On("Get", mock.Anything, mock.Anything).Return(nil, nil)
		bindings.On("FindCandidates", mock.Anything, tenantID, p.UserID, p.Roles).Return([]access.Binding{}, nil)
		cache.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		decision, err := svc.Authorize(ctx, p, tenantID, shardID, access.ActionUpdate)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.NotEmpty(t, decision.Reason)
	})

	t.Run("cache error degrades to a miss", func(t *testing.T) {
		bindings := new(MockBindingRepository)
		cache := new(MockDecisionCache)
		bus := new(MockPublisher)
		svc := NewService(bindings, cache, bus)
		p := newTestPrincipal(tenantID, "viewer")

		cache.On("Get", mock.Anything, mock.Anything).Return(nil, errors.New("redis down"))
		bindings.On("FindCandidates", mock.Anything, tenantID, p.UserID, p.Roles).Return([]access.Binding{}, nil)
		cache.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		decision, err := svc.Authorize(ctx, p, tenantID, shardID, access.ActionRead)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	})

	t.Run("binding store failure aborts instead of denying", func(t *testing.T) {
		bindings := new(MockBindingRepository)
		cache := new(MockDecisionCache)
		bus := new(MockPublisher)
		svc := NewService(bindings, cache, bus)
		p := newTestPrincipal(tenantID, "admin")

		cache.On("Get", mock.Anything, mock.Anything).Return(nil, nil)
		bindings.On("FindCandidates", mock.Anything, tenantID, p.UserID, p.Roles).Return(nil, errors.New("pg down"))

		decision, err := svc.Authorize(ctx, p, tenantID, shardID, access.ActionRead)
		assert.ErrorIs(t, err, shared.ErrTransientStore)
		assert.False(t, decision.Allowed)
		cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("explicit deny wins over admin role default", func(t *testing.T) {
		bindings := new(MockBindingRepository)
		cache := new(MockDecisionCache)
		bus := new(MockPublisher)
		svc := NewService(bindings, cache, bus)
		p := newTestPrincipal(tenantID, "admin")

		deny, err := access.NewPrincipalBinding(tenantID, p.UserID, &shardID, access.ActionDelete, access.EffectDeny)
		require.NoError(t, err)

		cache.On("Get", mock.Anything, mock.Anything).Return(nil, nil)
		bindings.On("FindCandidates", mock.Anything, tenantID, p.UserID, p.Roles).Return([]access.Binding{*deny}, nil)
		cache.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		decision, err := svc.Authorize(ctx, p, tenantID, shardID, access.ActionDelete)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
	})
}

func TestServiceGrantRevoke(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("grant saves and invalidates the principal namespace", func(t *testing.T) {
		bindings := new(MockBindingRepository)
		cache := new(MockDecisionCache)
		bus := new(MockPublisher)
		svc := NewService(bindings, cache, bus)

		principalID := uuid.New()
		b, err := access.NewPrincipalBinding(tenantID, principalID, nil, access.ActionRead, access.EffectAllow)
		require.NoError(t, err)

		prefix := access.PrincipalCachePrefix(tenantID, principalID)
		bindings.On("Save", mock.Anything, b).Return(nil)
		cache.On("DeleteByPrefix", mock.Anything, prefix).Return(nil)
		bus.On("PublishInvalidation", mock.Anything, prefix).Return(nil)

		require.NoError(t, svc.Grant(ctx, b))
		bus.AssertCalled(t, "PublishInvalidation", mock.Anything, prefix)
	})

	t.Run("role binding invalidates the whole tenant namespace", func(t *testing.T) {
		bindings := new(MockBindingRepository)
		cache := new(MockDecisionCache)
		bus := new(MockPublisher)
		svc := NewService(bindings, cache, bus)

		b, err := access.NewRoleBinding(tenantID, "editor", nil, access.ActionUpdate, access.EffectDeny)
		require.NoError(t, err)

		prefix := access.TenantCachePrefix(tenantID)
		bindings.On("Save", mock.Anything, b).Return(nil)
		cache.On("DeleteByPrefix", mock.Anything, prefix).Return(nil)
		bus.On("PublishInvalidation", mock.Anything, prefix).Return(nil)

		require.NoError(t, svc.Grant(ctx, b))
	})

	t.Run("revoke deletes and invalidates", func(t *testing.T) {
		bindings := new(MockBindingRepository)
		cache := new(MockDecisionCache)
		bus := new(MockPublisher)
		svc := NewService(bindings, cache, bus)

		principalID := uuid.New()
		b, err := access.NewPrincipalBinding(tenantID, principalID, nil, access.ActionRead, access.EffectAllow)
		require.NoError(t, err)

		bindings.On("Delete", mock.Anything, tenantID, b.ID).Return(nil)
		cache.On("DeleteByPrefix", mock.Anything, mock.Anything).Return(nil)
		bus.On("PublishInvalidation", mock.Anything, mock.Anything).Return(nil)

		require.NoError(t, svc.Revoke(ctx, b))
	})

	t.Run("save failure skips invalidation", func(t *testing.T) {
		bindings := new(MockBindingRepository)
		cache := new(MockDecisionCache)
		bus := new(MockPublisher)
		svc := NewService(bindings, cache, bus)

		b, err := access.NewRoleBinding(tenantID, "editor", nil, access.ActionRead, access.EffectAllow)
		require.NoError(t, err)

		bindings.On("Save", mock.Anything, b).Return(errors.New("pg down"))

		require.Error(t, svc.Grant(ctx, b))
		bus.AssertNotCalled(t, "PublishInvalidation", mock.Anything, mock.Anything)
	})
}

func TestServiceHandleInvalidation(t *testing.T) {
	t.Run("applies a broadcast prefix to the local cache", func(t *testing.T) {
		bindings := new(MockBindingRepository)
		cache := new(MockDecisionCache)
		bus := new(MockPublisher)
		svc := NewService(bindings, cache, bus)

		prefix := access.TenantCachePrefix(uuid.New())
		cache.On("DeleteByPrefix", mock.Anything, prefix).Return(nil)

		svc.HandleInvalidation(prefix)
		cache.AssertCalled(t, "DeleteByPrefix", mock.Anything, prefix)
	})
}
