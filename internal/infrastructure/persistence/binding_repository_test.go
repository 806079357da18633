package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/shardbase/backend/internal/domain/access"
	"github.com/shardbase/backend/internal/domain/shared"
)

// newMockBindingRepository creates a GormAccessBindingRepository with a mocked SQL connection
func newMockBindingRepository(t *testing.T) (*GormAccessBindingRepository, sqlmock.Sqlmock, *sql.DB) {
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

	return NewGormAccessBindingRepository(gormDB), mock, mockDB
}

var bindingColumns = []string{
	"id", "tenant_id", "principal_id", "role", "shard_id",
	"action", "effect", "created_at", "updated_at",
}

func TestGormAccessBindingRepository_Save(t *testing.T) {
	t.Run("inserts a new binding", func(t *testing.T) {
		repo, mock, mockDB := newMockBindingRepository(t)
		defer mockDB.Close()

		b, err := access.NewPrincipalBinding(uuid.New(), uuid.New(), nil, access.ActionRead, access.EffectAllow)
		require.NoError(t, err)

		// Save updates by primary key first and inserts when nothing matched
		mock.ExpectExec(`UPDATE "acl_bindings" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`INSERT INTO "acl_bindings"`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err = repo.Save(context.Background(), b)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("updates an existing binding", func(t *testing.T) {
		repo, mock, mockDB := newMockBindingRepository(t)
		defer mockDB.Close()

		b, err := access.NewRoleBinding(uuid.New(), "editor", nil, access.ActionDelete, access.EffectDeny)
		require.NoError(t, err)

		mock.ExpectExec(`UPDATE "acl_bindings" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err = repo.Save(context.Background(), b)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormAccessBindingRepository_Delete(t *testing.T) {
	t.Run("deletes binding within tenant", func(t *testing.T) {
		repo, mock, mockDB := newMockBindingRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		bindingID := uuid.New()

		mock.ExpectExec(`DELETE FROM "acl_bindings" WHERE tenant_id = \$1 AND id = \$2`).
			WithArgs(tenantID, bindingID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Delete(context.Background(), tenantID, bindingID)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrNotFound when nothing matched", func(t *testing.T) {
		repo, mock, mockDB := newMockBindingRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		bindingID := uuid.New()

		mock.ExpectExec(`DELETE FROM "acl_bindings" WHERE tenant_id = \$1 AND id = \$2`).
			WithArgs(tenantID, bindingID).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Delete(context.Background(), tenantID, bindingID)

		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormAccessBindingRepository_FindCandidates(t *testing.T) {
	t.Run("matches principal and role bindings", func(t *testing.T) {
		repo, mock, mockDB := newMockBindingRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		principalID := uuid.New()
		now := time.Now()

		rows := sqlmock.NewRows(bindingColumns).
			AddRow(uuid.New(), tenantID, principalID, "", nil, "read", "allow", now, now).
			AddRow(uuid.New(), tenantID, nil, "editor", nil, "", "deny", now, now)

		mock.ExpectQuery(`SELECT \* FROM "acl_bindings" WHERE tenant_id = \$1 AND \(principal_id = \$2 OR role IN \(\$3,\$4\)\)`).
			WithArgs(tenantID, principalID, "editor", "viewer").
			WillReturnRows(rows)

		bindings, err := repo.FindCandidates(context.Background(), tenantID, principalID, []string{"editor", "viewer"})

		assert.NoError(t, err)
		require.Len(t, bindings, 2)
		assert.Equal(t, principalID, *bindings[0].PrincipalID)
		assert.Equal(t, "editor", bindings[1].Role)
		assert.Equal(t, access.EffectDeny, bindings[1].Effect)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("queries by principal only when roles are empty", func(t *testing.T) {
		repo, mock, mockDB := newMockBindingRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		principalID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "acl_bindings" WHERE tenant_id = \$1 AND principal_id = \$2`).
			WithArgs(tenantID, principalID).
			WillReturnRows(sqlmock.NewRows(bindingColumns))

		bindings, err := repo.FindCandidates(context.Background(), tenantID, principalID, nil)

		assert.NoError(t, err)
		assert.Empty(t, bindings)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
