package access

import (
	"context"

	"github.com/shardbase/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Effect is the outcome an explicit binding assigns
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Binding is an explicit allow or deny rule. A binding targets either a
// specific principal (PrincipalID set) or a role (Role set). A nil
// ShardID scopes the binding to all shards in the tenant; an empty Action
// covers every action.
type Binding struct {
	shared.BaseEntity
	TenantID    uuid.UUID
	PrincipalID *uuid.UUID
	Role        string
	ShardID     *uuid.UUID
	Action      Action
	Effect      Effect
}

// NewPrincipalBinding creates a binding targeting a single principal
func NewPrincipalBinding(tenantID, principalID uuid.UUID, shardID *uuid.UUID, action Action, effect Effect) (*Binding, error) {
	if effect != EffectAllow && effect != EffectDeny {
		return nil, shared.NewDomainError("INVALID_INPUT", "Effect must be allow or deny")
	}
	return &Binding{
		BaseEntity:  shared.NewBaseEntity(),
		TenantID:    tenantID,
		PrincipalID: &principalID,
		ShardID:     shardID,
		Action:      action,
		Effect:      effect,
	}, nil
}

// NewRoleBinding creates a binding targeting every principal with a role
func NewRoleBinding(tenantID uuid.UUID, role string, shardID *uuid.UUID, action Action, effect Effect) (*Binding, error) {
	if role == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Role is required")
	}
	if effect != EffectAllow && effect != EffectDeny {
		return nil, shared.NewDomainError("INVALID_INPUT", "Effect must be allow or deny")
	}
	return &Binding{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   tenantID,
		Role:       role,
		ShardID:    shardID,
		Action:     action,
		Effect:     effect,
	}, nil
}

// AppliesTo reports whether the binding matches the given request
func (b *Binding) AppliesTo(p Principal, shardID uuid.UUID, action Action) bool {
	if b.TenantID != p.TenantID {
		return false
	}
	if b.PrincipalID != nil && *b.PrincipalID != p.UserID {
		return false
	}
	if b.PrincipalID == nil && !p.HasRole(b.Role) {
		return false
	}
	if b.ShardID != nil && *b.ShardID != shardID {
		return false
	}
	if b.Action != "" && b.Action != action {
		return false
	}
	return true
}

// BindingRepository stores explicit ACL bindings
type BindingRepository interface {
	// Save persists a binding
	Save(ctx context.Context, b *Binding) error
	// Delete removes a binding by ID within a tenant
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	// FindCandidates loads all bindings that could match the principal:
	// those targeting the principal directly or any of its roles.
	FindCandidates(ctx context.Context, tenantID, principalID uuid.UUID, roles []string) ([]Binding, error)
}
