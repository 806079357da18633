package shard

import (
	"github.com/shardbase/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Status represents the lifecycle status of a shard
type Status string

const (
	StatusActive  Status = "active"
	StatusDeleted Status = "deleted"
)

// Shard is a tenant-scoped document record. Its StructuredData payload is
// the heavy, cacheable portion; Version is the optimistic-concurrency
// token owned by the repository.
type Shard struct {
	shared.TenantAggregateRoot
	TypeID         uuid.UUID
	Status         Status
	StructuredData map[string]interface{}
}

// NewShard creates a new active shard at version 1
func NewShard(tenantID, typeID uuid.UUID, data map[string]interface{}) (*Shard, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Tenant ID is required")
	}
	if typeID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Type ID is required")
	}
	if data == nil {
		data = make(map[string]interface{})
	}

	s := &Shard{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		TypeID:              typeID,
		Status:              StatusActive,
		StructuredData:      deepCopyData(data),
	}
	return s, nil
}

// ApplyData replaces the structured data wholesale
func (s *Shard) ApplyData(data map[string]interface{}) error {
	if data == nil {
		return shared.NewDomainError("INVALID_INPUT", "Structured data is required")
	}
	s.StructuredData = deepCopyData(data)
	return nil
}

// MergeData performs a shallow merge of partial data into the structured
// data: top-level keys are replaced, a nil value removes the key.
func (s *Shard) MergeData(partial map[string]interface{}) error {
	if len(partial) == 0 {
		return shared.NewDomainError("INVALID_INPUT", "Partial data must contain at least one field")
	}
	merged := deepCopyData(s.StructuredData)
	for k, v := range partial {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = deepCopyValue(v)
	}
	s.StructuredData = merged
	return nil
}

// MarkDeleted soft deletes the shard. Deleted shards keep their data and
// history and are excluded from default reads.
func (s *Shard) MarkDeleted() error {
	if s.Status == StatusDeleted {
		return shared.ErrInvalidState
	}
	s.Status = StatusDeleted
	return nil
}

// IsDeleted reports whether the shard is soft deleted
func (s *Shard) IsDeleted() bool {
	return s.Status == StatusDeleted
}

// Snapshot captures the shard's full state at its current version
func (s *Shard) Snapshot() Snapshot {
	return Snapshot{
		TypeID:         s.TypeID,
		Status:         s.Status,
		Version:        s.Version,
		StructuredData: deepCopyData(s.StructuredData),
	}
}

// Snapshot is an immutable copy of a shard's state at one version
type Snapshot struct {
	TypeID         uuid.UUID              `json:"type_id"`
	Status         Status                 `json:"status"`
	Version        int                    `json:"version"`
	StructuredData map[string]interface{} `json:"structured_data"`
}

// deepCopyData copies a structured data map so aggregate state never
// aliases caller-owned or snapshot-owned maps.
func deepCopyData(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return deepCopyData(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}
