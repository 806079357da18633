package shard

import (
	"time"

	"github.com/google/uuid"
)

// Revision is an immutable historical snapshot of a shard. Revisions for
// a shard form a contiguous 1-based sequence whose highest number always
// equals the shard's current version.
type Revision struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	ShardID       uuid.UUID
	Number        int
	Snapshot      Snapshot
	ChangeSummary Diff
	CreatedBy     uuid.UUID
	CreatedAt     time.Time
}

// NewRevision builds the revision corresponding to the shard's current
// version. The caller appends it only after the producing write has
// durably committed.
func NewRevision(s *Shard, summary Diff, author uuid.UUID) *Revision {
	return &Revision{
		ID:            uuid.New(),
		TenantID:      s.TenantID,
		ShardID:       s.GetID(),
		Number:        s.Version,
		Snapshot:      s.Snapshot(),
		ChangeSummary: summary,
		CreatedBy:     author,
		CreatedAt:     time.Now(),
	}
}
