package persistence

import (
	"context"
	"errors"

	"github.com/shardbase/backend/internal/domain/shard"
	"github.com/shardbase/backend/internal/domain/shared"
	"github.com/shardbase/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormShardRevisionRepository implements shard.RevisionRepository using GORM
type GormShardRevisionRepository struct {
	db *gorm.DB
}

// NewGormShardRevisionRepository creates a new GormShardRevisionRepository
func NewGormShardRevisionRepository(db *gorm.DB) *GormShardRevisionRepository {
	return &GormShardRevisionRepository{db: db}
}

// Append writes a revision after verifying it extends the sequence by
// exactly one. A mismatch means a lost update or out-of-order commit and
// is rejected; the unique index on (tenant_id, shard_id, number) backs
// this check against races between processes.
func (r *GormShardRevisionRepository) Append(ctx context.Context, rev *shard.Revision) error {
	model, err := models.ShardRevisionModelFromDomain(rev)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var latest int
		err := tx.Model(&models.ShardRevisionModel{}).
			Where("tenant_id = ? AND shard_id = ?", rev.TenantID, rev.ShardID).
			Select("COALESCE(MAX(number), 0)").
			Scan(&latest).Error
		if err != nil {
			return err
		}

		if rev.Number != latest+1 {
			return shared.ErrRevisionSequence
		}

		if err := tx.Create(model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return shared.ErrRevisionSequence
			}
			return err
		}
		return nil
	})
}

// FindByNumber loads one revision of a shard
func (r *GormShardRevisionRepository) FindByNumber(ctx context.Context, tenantID, shardID uuid.UUID, number int) (*shard.Revision, error) {
	var model models.ShardRevisionModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND shard_id = ? AND number = ?", tenantID, shardID, number).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindLatest loads the highest-numbered revision of a shard
func (r *GormShardRevisionRepository) FindLatest(ctx context.Context, tenantID, shardID uuid.UUID) (*shard.Revision, error) {
	var model models.ShardRevisionModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND shard_id = ?", tenantID, shardID).
		Order("number DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindAllForShard lists a shard's revisions in ascending number order
func (r *GormShardRevisionRepository) FindAllForShard(ctx context.Context, tenantID, shardID uuid.UUID) ([]shard.Revision, error) {
	var rows []models.ShardRevisionModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND shard_id = ?", tenantID, shardID).
		Order("number ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	revisions := make([]shard.Revision, 0, len(rows))
	for i := range rows {
		rev, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		revisions = append(revisions, *rev)
	}
	return revisions, nil
}
