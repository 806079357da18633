package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/shardbase/backend/internal/domain/shard"
	"github.com/shardbase/backend/internal/domain/shared"
)

// newMockRevisionRepository creates a GormShardRevisionRepository with a mocked SQL connection
func newMockRevisionRepository(t *testing.T) (*GormShardRevisionRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormShardRevisionRepository(gormDB), mock, mockDB
}

var revisionColumns = []string{
	"id", "tenant_id", "shard_id", "number",
	"snapshot", "change_summary", "created_by", "created_at",
}

func newTestRevision(t *testing.T, tenantID, shardID uuid.UUID, number int) *shard.Revision {
	t.Helper()
	return &shard.Revision{
		ID:       uuid.New(),
		TenantID: tenantID,
		ShardID:  shardID,
		Number:   number,
		Snapshot: shard.Snapshot{
			TypeID:         uuid.New(),
			Status:         shard.StatusActive,
			Version:        number,
			StructuredData: map[string]interface{}{"name": "invoice-042"},
		},
		CreatedBy: uuid.New(),
		CreatedAt: time.Now(),
	}
}

func snapshotJSON(t *testing.T, snap shard.Snapshot) []byte {
	t.Helper()
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	return data
}

func TestGormShardRevisionRepository_Append(t *testing.T) {
	tenantID := uuid.New()
	shardID := uuid.New()

	maxNumberQuery := `SELECT COALESCE\(MAX\(number\), 0\) FROM "shard_revisions" WHERE tenant_id = \$1 AND shard_id = \$2`

	t.Run("appends the next revision in sequence", func(t *testing.T) {
		repo, mock, mockDB := newMockRevisionRepository(t)
		defer mockDB.Close()

		rev := newTestRevision(t, tenantID, shardID, 3)

		mock.ExpectBegin()
		mock.ExpectQuery(maxNumberQuery).
			WithArgs(tenantID, shardID).
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(2))
		mock.ExpectExec(`INSERT INTO "shard_revisions"`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.Append(context.Background(), rev)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects a revision that would leave a gap", func(t *testing.T) {
		repo, mock, mockDB := newMockRevisionRepository(t)
		defer mockDB.Close()

		rev := newTestRevision(t, tenantID, shardID, 4)

		mock.ExpectBegin()
		mock.ExpectQuery(maxNumberQuery).
			WithArgs(tenantID, shardID).
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(2))
		mock.ExpectRollback()

		err := repo.Append(context.Background(), rev)

		assert.Equal(t, shared.ErrRevisionSequence, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects a revision that replays an existing number", func(t *testing.T) {
		repo, mock, mockDB := newMockRevisionRepository(t)
		defer mockDB.Close()

		rev := newTestRevision(t, tenantID, shardID, 2)

		mock.ExpectBegin()
		mock.ExpectQuery(maxNumberQuery).
			WithArgs(tenantID, shardID).
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(2))
		mock.ExpectRollback()

		err := repo.Append(context.Background(), rev)

		assert.Equal(t, shared.ErrRevisionSequence, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps a unique index violation to ErrRevisionSequence", func(t *testing.T) {
		repo, mock, mockDB := newMockRevisionRepository(t)
		defer mockDB.Close()

		rev := newTestRevision(t, tenantID, shardID, 3)

		// a racing writer appended number 3 between the check and the insert
		mock.ExpectBegin()
		mock.ExpectQuery(maxNumberQuery).
			WithArgs(tenantID, shardID).
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(2))
		mock.ExpectExec(`INSERT INTO "shard_revisions"`).
			WillReturnError(gorm.ErrDuplicatedKey)
		mock.ExpectRollback()

		err := repo.Append(context.Background(), rev)

		assert.Equal(t, shared.ErrRevisionSequence, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormShardRevisionRepository_FindByNumber(t *testing.T) {
	t.Run("finds the requested revision", func(t *testing.T) {
		repo, mock, mockDB := newMockRevisionRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		shardID := uuid.New()
		rev := newTestRevision(t, tenantID, shardID, 2)

		rows := sqlmock.NewRows(revisionColumns).
			AddRow(rev.ID, tenantID, shardID, 2, snapshotJSON(t, rev.Snapshot), []byte(`{}`), rev.CreatedBy, rev.CreatedAt)

		mock.ExpectQuery(`SELECT \* FROM "shard_revisions" WHERE tenant_id = \$1 AND shard_id = \$2 AND number = \$3 ORDER BY .* LIMIT .*`).
			WithArgs(tenantID, shardID, 2, 1).
			WillReturnRows(rows)

		got, err := repo.FindByNumber(context.Background(), tenantID, shardID, 2)

		assert.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 2, got.Number)
		assert.Equal(t, "invoice-042", got.Snapshot.StructuredData["name"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrNotFound for a missing number", func(t *testing.T) {
		repo, mock, mockDB := newMockRevisionRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		shardID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "shard_revisions"`).
			WillReturnError(gorm.ErrRecordNotFound)

		got, err := repo.FindByNumber(context.Background(), tenantID, shardID, 9)

		assert.Nil(t, got)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormShardRevisionRepository_FindLatest(t *testing.T) {
	t.Run("returns the highest-numbered revision", func(t *testing.T) {
		repo, mock, mockDB := newMockRevisionRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		shardID := uuid.New()
		rev := newTestRevision(t, tenantID, shardID, 5)

		rows := sqlmock.NewRows(revisionColumns).
			AddRow(rev.ID, tenantID, shardID, 5, snapshotJSON(t, rev.Snapshot), []byte(`{}`), rev.CreatedBy, rev.CreatedAt)

		mock.ExpectQuery(`SELECT \* FROM "shard_revisions" WHERE tenant_id = \$1 AND shard_id = \$2 ORDER BY number DESC,.* LIMIT .*`).
			WithArgs(tenantID, shardID, 1).
			WillReturnRows(rows)

		got, err := repo.FindLatest(context.Background(), tenantID, shardID)

		assert.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 5, got.Number)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormShardRevisionRepository_FindAllForShard(t *testing.T) {
	t.Run("lists revisions in ascending order", func(t *testing.T) {
		repo, mock, mockDB := newMockRevisionRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		shardID := uuid.New()
		first := newTestRevision(t, tenantID, shardID, 1)
		second := newTestRevision(t, tenantID, shardID, 2)

		rows := sqlmock.NewRows(revisionColumns).
			AddRow(first.ID, tenantID, shardID, 1, snapshotJSON(t, first.Snapshot), []byte(`{}`), first.CreatedBy, first.CreatedAt).
			AddRow(second.ID, tenantID, shardID, 2, snapshotJSON(t, second.Snapshot), []byte(`{}`), second.CreatedBy, second.CreatedAt)

		mock.ExpectQuery(`SELECT \* FROM "shard_revisions" WHERE tenant_id = \$1 AND shard_id = \$2 ORDER BY number ASC`).
			WithArgs(tenantID, shardID).
			WillReturnRows(rows)

		revisions, err := repo.FindAllForShard(context.Background(), tenantID, shardID)

		assert.NoError(t, err)
		require.Len(t, revisions, 2)
		assert.Equal(t, 1, revisions[0].Number)
		assert.Equal(t, 2, revisions[1].Number)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
