package access

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	tenantID := uuid.New()
	shardID := uuid.New()
	userID := uuid.New()
	policy := DefaultRolePolicy()

	principal := Principal{UserID: userID, TenantID: tenantID, Roles: []string{"viewer"}}

	t.Run("denies cross-tenant access regardless of bindings", func(t *testing.T) {
		otherTenant := uuid.New()
		b, err := NewPrincipalBinding(otherTenant, userID, nil, ActionRead, EffectAllow)
		require.NoError(t, err)

		d := Evaluate(principal, otherTenant, shardID, ActionRead, []Binding{*b}, policy)
		assert.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "tenant")
	})

	t.Run("explicit deny wins over explicit allow", func(t *testing.T) {
		allow, err := NewPrincipalBinding(tenantID, userID, &shardID, ActionRead, EffectAllow)
		require.NoError(t, err)
		deny, err := NewPrincipalBinding(tenantID, userID, &shardID, ActionRead, EffectDeny)
		require.NoError(t, err)

		// Order of bindings must not matter
		d := Evaluate(principal, tenantID, shardID, ActionRead, []Binding{*allow, *deny}, policy)
		assert.False(t, d.Allowed)

		d = Evaluate(principal, tenantID, shardID, ActionRead, []Binding{*deny, *allow}, policy)
		assert.False(t, d.Allowed)
	})

	t.Run("explicit deny wins over role default", func(t *testing.T) {
		deny, err := NewRoleBinding(tenantID, "viewer", nil, ActionRead, EffectDeny)
		require.NoError(t, err)

		d := Evaluate(principal, tenantID, shardID, ActionRead, []Binding{*deny}, policy)
		assert.False(t, d.Allowed)
	})

	t.Run("explicit allow grants action the role lacks", func(t *testing.T) {
		allow, err := NewPrincipalBinding(tenantID, userID, &shardID, ActionUpdate, EffectAllow)
		require.NoError(t, err)

		d := Evaluate(principal, tenantID, shardID, ActionUpdate, []Binding{*allow}, policy)
		assert.True(t, d.Allowed)
	})

	t.Run("role default grants without bindings", func(t *testing.T) {
		d := Evaluate(principal, tenantID, shardID, ActionRead, nil, policy)
		assert.True(t, d.Allowed)

		d = Evaluate(principal, tenantID, shardID, ActionCompare, nil, policy)
		assert.True(t, d.Allowed)
	})

	t.Run("defaults to deny", func(t *testing.T) {
		d := Evaluate(principal, tenantID, shardID, ActionDelete, nil, policy)
		assert.False(t, d.Allowed)
	})

	t.Run("binding scoped to another shard does not apply", func(t *testing.T) {
		otherShard := uuid.New()
		allow, err := NewPrincipalBinding(tenantID, userID, &otherShard, ActionUpdate, EffectAllow)
		require.NoError(t, err)

		d := Evaluate(principal, tenantID, shardID, ActionUpdate, []Binding{*allow}, policy)
		assert.False(t, d.Allowed)
	})

	t.Run("tenant-wide binding applies to every shard", func(t *testing.T) {
		allow, err := NewPrincipalBinding(tenantID, userID, nil, ActionUpdate, EffectAllow)
		require.NoError(t, err)

		d := Evaluate(principal, tenantID, shardID, ActionUpdate, []Binding{*allow}, policy)
		assert.True(t, d.Allowed)
	})
}

func TestBinding_AppliesTo(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()
	shardID := uuid.New()
	p := Principal{UserID: userID, TenantID: tenantID, Roles: []string{"editor"}}

	t.Run("role binding matches principal role", func(t *testing.T) {
		b, err := NewRoleBinding(tenantID, "editor", nil, ActionDelete, EffectDeny)
		require.NoError(t, err)
		assert.True(t, b.AppliesTo(p, shardID, ActionDelete))
	})

	t.Run("role binding for role the principal lacks does not match", func(t *testing.T) {
		b, err := NewRoleBinding(tenantID, "admin", nil, ActionDelete, EffectDeny)
		require.NoError(t, err)
		assert.False(t, b.AppliesTo(p, shardID, ActionDelete))
	})

	t.Run("empty action covers every action", func(t *testing.T) {
		b, err := NewPrincipalBinding(tenantID, userID, nil, "", EffectDeny)
		require.NoError(t, err)
		for _, action := range AllActions() {
			assert.True(t, b.AppliesTo(p, shardID, action))
		}
	})
}

func TestParseAction(t *testing.T) {
	for _, action := range AllActions() {
		parsed, err := ParseAction(string(action))
		require.NoError(t, err)
		assert.Equal(t, action, parsed)
	}

	_, err := ParseAction("drop-table")
	assert.Error(t, err)
}
