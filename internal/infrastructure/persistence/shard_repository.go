package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/shardbase/backend/internal/domain/shard"
	"github.com/shardbase/backend/internal/domain/shared"
	"github.com/shardbase/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Columns the list operation may sort by
var shardSortColumns = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"version":    true,
	"status":     true,
}

// GormShardRepository implements shard.Repository using GORM
type GormShardRepository struct {
	db *gorm.DB
}

// NewGormShardRepository creates a new GormShardRepository
func NewGormShardRepository(db *gorm.DB) *GormShardRepository {
	return &GormShardRepository{db: db}
}

// Create persists a new shard at version 1
func (r *GormShardRepository) Create(ctx context.Context, s *shard.Shard) error {
	model, err := models.ShardModelFromDomain(s)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// FindByIDForTenant loads a shard by ID within a tenant
func (r *GormShardRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID, includeDeleted bool) (*shard.Shard, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id)
	if !includeDeleted {
		query = query.Where("status <> ?", string(shard.StatusDeleted))
	}

	var model models.ShardModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindAllForTenant lists shards for a tenant with pagination
func (r *GormShardRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter, includeDeleted bool) ([]shard.Shard, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ShardModel{}).
		Where("tenant_id = ?", tenantID)
	if !includeDeleted {
		query = query.Where("status <> ?", string(shard.StatusDeleted))
	}
	if typeID, ok := filter.Filters["type_id"]; ok {
		query = query.Where("type_id = ?", typeID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderBy := filter.OrderBy
	if !shardSortColumns[orderBy] {
		orderBy = "created_at"
	}
	direction := "DESC"
	if filter.OrderDir == "asc" {
		direction = "ASC"
	}
	query = query.Order(orderBy + " " + direction)

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset((filter.Page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var rows []models.ShardModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	shards := make([]shard.Shard, 0, len(rows))
	for i := range rows {
		s, err := rows[i].ToDomain()
		if err != nil {
			return nil, 0, err
		}
		shards = append(shards, *s)
	}
	return shards, total, nil
}

// UpdateWithVersion persists the shard conditionally on the stored row
// still being at expectedVersion. The conditional UPDATE is the atomic
// compare-and-set that linearizes writes per shard: of any racing writers
// exactly one matches the version predicate.
func (r *GormShardRepository) UpdateWithVersion(ctx context.Context, s *shard.Shard, expectedVersion int) error {
	model, err := models.ShardModelFromDomain(s)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&models.ShardModel{}).
		Where("tenant_id = ? AND id = ? AND version = ?", s.TenantID, s.GetID(), expectedVersion).
		Updates(map[string]interface{}{
			"version":         model.Version,
			"status":          model.Status,
			"structured_data": model.StructuredData,
			"updated_at":      time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}
