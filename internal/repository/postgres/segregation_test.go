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

func TestSegregationGet(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("FROM segregated_email").
		WithArgs("abc123").
		WillReturnRows(sqlmock.NewRows([]string{
			"email_id", "priority", "type", "resource_name", "trigger_name",
			"generated_summary", "recommended_action", "inserted_at", "status",
		}).AddRow("abc123", "P1", "actionable", "hostA", "High CPU", "summary", nil, now, true))

	got, err := NewSegregationRepo(db).Get(context.Background(), "abc123")
	require.NoError(t, err)

	assert.Equal(t, domain.PriorityP1, got.Priority)
	assert.Equal(t, domain.TypeActionable, got.Type)
	assert.True(t, got.Status)
	assert.Empty(t, got.RecommendedAction, "NULL column scans to empty string")
}

func TestSegregationGetNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("FROM segregated_email").
		WillReturnError(sql.ErrNoRows)

	_, err := NewSegregationRepo(db).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPriorWithinWindow(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("SELECT email_id FROM segregated_email").
		WithArgs("High CPU", "hostA", "current", now.Add(-time.Hour), now).
		WillReturnRows(sqlmock.NewRows([]string{"email_id"}).AddRow("prior-id"))

	got, err := NewSegregationRepo(db).PriorWithinWindow(context.Background(),
		"High CPU", "hostA", "current", time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, "prior-id", got)
}

func TestPriorWithinWindowEmpty(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT email_id FROM segregated_email").
		WillReturnError(sql.ErrNoRows)

	got, err := NewSegregationRepo(db).PriorWithinWindow(context.Background(),
		"High CPU", "hostA", "current", time.Hour, time.Now())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLatestPriorTicketed(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT s.email_id, j.jiraticket_id").
		WithArgs("High CPU", "hostA", "current").
		WillReturnRows(sqlmock.NewRows([]string{"email_id", "jiraticket_id"}).
			AddRow("prior-id", "MAI-100"))

	emailID, ticketID, err := NewSegregationRepo(db).LatestPriorTicketed(context.Background(),
		"High CPU", "hostA", "current")
	require.NoError(t, err)
	assert.Equal(t, "prior-id", emailID)
	assert.Equal(t, "MAI-100", ticketID)
}

func TestLatestPriorTicketedNone(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT s.email_id, j.jiraticket_id").
		WillReturnError(sql.ErrNoRows)

	emailID, ticketID, err := NewSegregationRepo(db).LatestPriorTicketed(context.Background(),
		"High CPU", "hostA", "current")
	require.NoError(t, err)
	assert.Empty(t, emailID)
	assert.Empty(t, ticketID)
}

func TestSegregationUpsert(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO segregated_email").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := NewSegregationRepo(db).Upsert(context.Background(), &domain.SegregatedEmail{
		EmailID: "abc123", Priority: domain.PriorityP1, Type: domain.TypeActionable,
		ResourceName: "hostA", TriggerName: "High CPU", Status: true,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
