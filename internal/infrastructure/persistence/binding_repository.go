package persistence

import (
	"context"

	"github.com/shardbase/backend/internal/domain/access"
	"github.com/shardbase/backend/internal/domain/shared"
	"github.com/shardbase/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAccessBindingRepository implements access.BindingRepository using GORM
type GormAccessBindingRepository struct {
	db *gorm.DB
}

// NewGormAccessBindingRepository creates a new GormAccessBindingRepository
func NewGormAccessBindingRepository(db *gorm.DB) *GormAccessBindingRepository {
	return &GormAccessBindingRepository{db: db}
}

// Save persists a binding
func (r *GormAccessBindingRepository) Save(ctx context.Context, b *access.Binding) error {
	model := models.AccessBindingModelFromDomain(b)
	return r.db.WithContext(ctx).Save(model).Error
}

// Delete removes a binding by ID within a tenant
func (r *GormAccessBindingRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Delete(&models.AccessBindingModel{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindCandidates loads the bindings that could match a principal: those
// targeting it directly plus those targeting any of its roles.
func (r *GormAccessBindingRepository) FindCandidates(ctx context.Context, tenantID, principalID uuid.UUID, roles []string) ([]access.Binding, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID)

	if len(roles) > 0 {
		query = query.Where("principal_id = ? OR role IN ?", principalID, roles)
	} else {
		query = query.Where("principal_id = ?", principalID)
	}

	var rows []models.AccessBindingModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	bindings := make([]access.Binding, len(rows))
	for i := range rows {
		bindings[i] = *rows[i].ToDomain()
	}
	return bindings, nil
}
