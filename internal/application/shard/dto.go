package shard

import (
	"time"

	"github.com/shardbase/backend/internal/domain/shard"
	"github.com/google/uuid"
)

// ShardResponse is the coordinator's view of a shard returned to callers.
// RevisionPending is set when the write committed but its revision append
// failed; reconciliation tooling monitors for it.
type ShardResponse struct {
	ID              uuid.UUID              `json:"id"`
	TenantID        uuid.UUID              `json:"tenant_id"`
	TypeID          uuid.UUID              `json:"type_id"`
	Version         int                    `json:"version"`
	Status          string                 `json:"status"`
	StructuredData  map[string]interface{} `json:"structured_data"`
	UpdatedAt       time.Time              `json:"updated_at"`
	RevisionPending bool                   `json:"revision_pending,omitempty"`
}

// RevisionResponse describes one revision of a shard
type RevisionResponse struct {
	ShardID       uuid.UUID      `json:"shard_id"`
	Number        int            `json:"number"`
	Snapshot      shard.Snapshot `json:"snapshot"`
	ChangeSummary shard.Diff     `json:"change_summary"`
	CreatedBy     uuid.UUID      `json:"created_by"`
	CreatedAt     time.Time      `json:"created_at"`
}

// ListFilter narrows and pages the shard list operation
type ListFilter struct {
	TypeID         *uuid.UUID
	IncludeDeleted bool
	Page           int
	PageSize       int
	SortBy         string
	SortDir        string
}

// ToShardResponse maps a shard aggregate to its response
func ToShardResponse(s *shard.Shard) *ShardResponse {
	return &ShardResponse{
		ID:             s.GetID(),
		TenantID:       s.TenantID,
		TypeID:         s.TypeID,
		Version:        s.Version,
		Status:         string(s.Status),
		StructuredData: s.StructuredData,
		UpdatedAt:      s.GetUpdatedAt(),
	}
}

// ToRevisionResponse maps a revision to its response
func ToRevisionResponse(rev *shard.Revision) *RevisionResponse {
	return &RevisionResponse{
		ShardID:       rev.ShardID,
		Number:        rev.Number,
		Snapshot:      rev.Snapshot,
		ChangeSummary: rev.ChangeSummary,
		CreatedBy:     rev.CreatedBy,
		CreatedAt:     rev.CreatedAt,
	}
}

func toRevisionResponses(revs []shard.Revision) []RevisionResponse {
	out := make([]RevisionResponse, len(revs))
	for i := range revs {
		out[i] = *ToRevisionResponse(&revs[i])
	}
	return out
}
