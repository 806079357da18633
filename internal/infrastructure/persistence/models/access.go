package models

import (
	"time"

	"github.com/shardbase/backend/internal/domain/access"
	"github.com/shardbase/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// AccessBindingModel is the persistence model for explicit ACL bindings
type AccessBindingModel struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_bindings_tenant"`
	PrincipalID *uuid.UUID `gorm:"type:uuid;index"`
	Role        string     `gorm:"type:varchar(100);index"`
	ShardID     *uuid.UUID `gorm:"type:uuid"`
	Action      string     `gorm:"type:varchar(20)"`
	Effect      string     `gorm:"type:varchar(10);not null"`
	CreatedAt   time.Time  `gorm:"not null"`
	UpdatedAt   time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AccessBindingModel) TableName() string {
	return "acl_bindings"
}

// ToDomain converts the persistence model to a binding
func (m *AccessBindingModel) ToDomain() *access.Binding {
	return &access.Binding{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		TenantID:    m.TenantID,
		PrincipalID: m.PrincipalID,
		Role:        m.Role,
		ShardID:     m.ShardID,
		Action:      access.Action(m.Action),
		Effect:      access.Effect(m.Effect),
	}
}

// AccessBindingModelFromDomain builds the persistence model for a binding
func AccessBindingModelFromDomain(b *access.Binding) *AccessBindingModel {
	return &AccessBindingModel{
		ID:          b.ID,
		TenantID:    b.TenantID,
		PrincipalID: b.PrincipalID,
		Role:        b.Role,
		ShardID:     b.ShardID,
		Action:      string(b.Action),
		Effect:      string(b.Effect),
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}
