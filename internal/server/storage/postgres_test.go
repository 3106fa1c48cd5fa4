package storage

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/keyvault/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStorage(t *testing.T) (*PostgresStorage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStorageFromDB(db), mock
}

func TestPostgresStorage_Get(t *testing.T) {
	s, mock := newMockStorage(t)

	data, _ := json.Marshal(&models.Account{ID: "a1", Email: "alice@example.com"})
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM objects WHERE kind = $1 AND id = $2`)).
		WithArgs("account", "a1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(data))

	acc := &models.Account{ID: "a1"}
	require.NoError(t, s.Get(context.Background(), acc))
	assert.Equal(t, "alice@example.com", acc.Email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_GetNotFound(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM objects`)).
		WithArgs("account", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	err := s.Get(context.Background(), &models.Account{ID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStorage_SaveUpserts(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectExec(`INSERT INTO objects`).
		WithArgs("vault", "v1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Save(context.Background(), &models.Vault{ID: "v1", Owner: "a1"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_SaveAllRunsInOneTransaction(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO objects`).
		WithArgs("account", "a1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO objects`).
		WithArgs("vault", "v1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.SaveAll(context.Background(),
		&models.Account{ID: "a1"},
		&models.Vault{ID: "v1", Owner: "a1"},
	)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_DeleteNotFound(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectExec(`DELETE FROM objects`).
		WithArgs("session", "gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Delete(context.Background(), &models.Session{ID: "gone"})
	assert.ErrorIs(t, err, ErrNotFound)
}
