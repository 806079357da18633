package shard

import (
	"github.com/shardbase/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Event types for the shard aggregate
const (
	EventTypeShardCreated  = "shard.created"
	EventTypeShardUpdated  = "shard.updated"
	EventTypeShardDeleted  = "shard.deleted"
	EventTypeShardReverted = "shard.reverted"
)

const aggregateType = "Shard"

// ShardCreatedEvent is emitted when a new shard is created
type ShardCreatedEvent struct {
	shared.BaseDomainEvent
	TypeID  uuid.UUID `json:"shard_type_id"`
	Version int       `json:"version"`
}

// NewShardCreatedEvent creates a new ShardCreatedEvent
func NewShardCreatedEvent(s *Shard) *ShardCreatedEvent {
	return &ShardCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeShardCreated, aggregateType, s.GetID(), s.TenantID),
		TypeID:          s.TypeID,
		Version:         s.Version,
	}
}

// ShardUpdatedEvent is emitted when a shard's data changes
type ShardUpdatedEvent struct {
	shared.BaseDomainEvent
	Version       int  `json:"version"`
	ChangedFields int  `json:"changed_fields"`
	Patched       bool `json:"patched"`
}

// NewShardUpdatedEvent creates a new ShardUpdatedEvent
func NewShardUpdatedEvent(s *Shard, summary Diff, patched bool) *ShardUpdatedEvent {
	return &ShardUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeShardUpdated, aggregateType, s.GetID(), s.TenantID),
		Version:         s.Version,
		ChangedFields:   len(summary.Added) + len(summary.Removed) + len(summary.Changed),
		Patched:         patched,
	}
}

// ShardDeletedEvent is emitted when a shard is soft deleted
type ShardDeletedEvent struct {
	shared.BaseDomainEvent
	Version int `json:"version"`
}

// NewShardDeletedEvent creates a new ShardDeletedEvent
func NewShardDeletedEvent(s *Shard) *ShardDeletedEvent {
	return &ShardDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeShardDeleted, aggregateType, s.GetID(), s.TenantID),
		Version:         s.Version,
	}
}

// ShardRevertedEvent is emitted when a shard is reverted to a prior revision
type ShardRevertedEvent struct {
	shared.BaseDomainEvent
	Version        int `json:"version"`
	TargetRevision int `json:"target_revision"`
}

// NewShardRevertedEvent creates a new ShardRevertedEvent
func NewShardRevertedEvent(s *Shard, targetRevision int) *ShardRevertedEvent {
	return &ShardRevertedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeShardReverted, aggregateType, s.GetID(), s.TenantID),
		Version:         s.Version,
		TargetRevision:  targetRevision,
	}
}
