package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shardbase/backend/internal/domain/shard"
	"github.com/google/uuid"
)

// ShardModel is the persistence model for shards. Rows are keyed by
// (tenant_id, id); version is the optimistic-concurrency column.
type ShardModel struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID       uuid.UUID  `gorm:"type:uuid;not null;index:idx_shards_tenant"`
	TypeID         uuid.UUID  `gorm:"type:uuid;not null;index"`
	Version        int        `gorm:"not null;default:1"`
	Status         string     `gorm:"type:varchar(20);not null;default:'active';index"`
	StructuredData []byte     `gorm:"type:jsonb;not null"`
	CreatedBy      *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt      time.Time  `gorm:"not null"`
	UpdatedAt      time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ShardModel) TableName() string {
	return "shards"
}

// ToDomain converts the persistence model to a shard aggregate
func (m *ShardModel) ToDomain() (*shard.Shard, error) {
	var data map[string]interface{}
	if len(m.StructuredData) > 0 {
		if err := json.Unmarshal(m.StructuredData, &data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal structured data for shard %s: %w", m.ID, err)
		}
	}
	if data == nil {
		data = make(map[string]interface{})
	}

	s := &shard.Shard{
		TypeID:         m.TypeID,
		Status:         shard.Status(m.Status),
		StructuredData: data,
	}
	s.ID = m.ID
	s.CreatedAt = m.CreatedAt
	s.UpdatedAt = m.UpdatedAt
	s.Version = m.Version
	s.TenantID = m.TenantID
	s.CreatedBy = m.CreatedBy
	return s, nil
}

// ShardModelFromDomain builds the persistence model for a shard aggregate
func ShardModelFromDomain(s *shard.Shard) (*ShardModel, error) {
	data, err := json.Marshal(s.StructuredData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal structured data for shard %s: %w", s.GetID(), err)
	}
	return &ShardModel{
		ID:             s.GetID(),
		TenantID:       s.TenantID,
		TypeID:         s.TypeID,
		Version:        s.Version,
		Status:         string(s.Status),
		StructuredData: data,
		CreatedBy:      s.CreatedBy,
		CreatedAt:      s.GetCreatedAt(),
		UpdatedAt:      s.GetUpdatedAt(),
	}, nil
}

// ShardRevisionModel is the persistence model for the append-only
// revision log, keyed by (tenant_id, shard_id, number). The unique index
// is the storage-level backstop for sequence contiguity.
type ShardRevisionModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_revisions_seq,priority:1"`
	ShardID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_revisions_seq,priority:2"`
	Number        int       `gorm:"not null;uniqueIndex:idx_revisions_seq,priority:3"`
	Snapshot      []byte    `gorm:"type:jsonb;not null"`
	ChangeSummary []byte    `gorm:"type:jsonb"`
	CreatedBy     uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ShardRevisionModel) TableName() string {
	return "shard_revisions"
}

// ToDomain converts the persistence model to a revision
func (m *ShardRevisionModel) ToDomain() (*shard.Revision, error) {
	var snapshot shard.Snapshot
	if err := json.Unmarshal(m.Snapshot, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot for revision %s: %w", m.ID, err)
	}
	var summary shard.Diff
	if len(m.ChangeSummary) > 0 {
		if err := json.Unmarshal(m.ChangeSummary, &summary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal change summary for revision %s: %w", m.ID, err)
		}
	}
	return &shard.Revision{
		ID:            m.ID,
		TenantID:      m.TenantID,
		ShardID:       m.ShardID,
		Number:        m.Number,
		Snapshot:      snapshot,
		ChangeSummary: summary,
		CreatedBy:     m.CreatedBy,
		CreatedAt:     m.CreatedAt,
	}, nil
}

// ShardRevisionModelFromDomain builds the persistence model for a revision
func ShardRevisionModelFromDomain(rev *shard.Revision) (*ShardRevisionModel, error) {
	snapshot, err := json.Marshal(rev.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot for revision %d of shard %s: %w", rev.Number, rev.ShardID, err)
	}
	summary, err := json.Marshal(rev.ChangeSummary)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal change summary for revision %d of shard %s: %w", rev.Number, rev.ShardID, err)
	}
	return &ShardRevisionModel{
		ID:            rev.ID,
		TenantID:      rev.TenantID,
		ShardID:       rev.ShardID,
		Number:        rev.Number,
		Snapshot:      snapshot,
		ChangeSummary: summary,
		CreatedBy:     rev.CreatedBy,
		CreatedAt:     rev.CreatedAt,
	}, nil
}
