package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/alertops/internal/domain"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, func() { db.Close() }
}

func rawEmailRows(emailID string, status bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"email_id", "sender", "subject", "body", "email_path", "received_at", "inserted_at", "status",
	}).AddRow(emailID, "alerts@example.com", "High CPU on hostA", "body", "/tmp/x.msg", now, now, status)
}

func TestUpsertRawShortCircuitsOnExisting(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO raw_emails").
		WillReturnResult(sqlmock.NewResult(0, 0)) // conflict, nothing inserted
	mock.ExpectQuery("FROM raw_emails").
		WillReturnRows(rawEmailRows("abc123", true))

	repo := NewEmailRepo(db)
	got, err := repo.UpsertRaw(context.Background(), &domain.RawEmail{
		EmailID: "abc123", Sender: "alerts@example.com", Subject: "High CPU on hostA",
		Body: "body", EmailPath: "/tmp/x.msg", ReceivedAt: time.Now(),
	})
	require.NoError(t, err)

	assert.True(t, got.Status, "existing enqueued row must be returned as stored")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRawNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("FROM raw_emails").
		WillReturnError(sql.ErrNoRows)

	_, err := NewEmailRepo(db).GetRaw(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetRawStatus(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE raw_emails SET status").
		WithArgs("abc123", true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewEmailRepo(db).SetRawStatus(context.Background(), "abc123", true)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetRawStatusMissingRow(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE raw_emails SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewEmailRepo(db).SetRawStatus(context.Background(), "missing", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertDuplicateIdempotent(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO duplicate_emails").
		WillReturnResult(sqlmock.NewResult(0, 0)) // conflict swallowed

	err := NewEmailRepo(db).InsertDuplicate(context.Background(), &domain.DuplicateEmail{
		EmailID:          "canonical",
		DuplicateEmailID: "dup",
		Subject:          "High CPU on hostA",
	})
	assert.NoError(t, err)
}
