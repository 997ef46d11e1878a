package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/alertops/internal/domain"
)

func TestJiraInsertReturnsID(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("INSERT INTO jira_table").
		WillReturnRows(sqlmock.NewRows([]string{"jira_id"}).AddRow(int64(42)))

	entry := &domain.JiraEntry{
		EmailID:   "email-1",
		TicketID:  "MAI-200",
		TeamsFlag: "false",
		CreatedAt: time.Now(),
	}
	err := NewJiraRepo(db).Insert(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, int64(42), entry.JiraID)
}

func TestJiraInsertDuplicateTicketFails(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("INSERT INTO jira_table").
		WillReturnError(assert.AnError) // unique violation on jiraticket_id

	err := NewJiraRepo(db).Insert(context.Background(), &domain.JiraEntry{
		EmailID: "email-1", TicketID: "MAI-200", CreatedAt: time.Now(),
	})
	assert.Error(t, err)
}

func TestUpdateAssignment(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE jira_table SET assigned_to").
		WithArgs("MAI-200", "Basis Oncall").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewJiraRepo(db).UpdateAssignment(context.Background(), "MAI-200", "Basis Oncall")
	assert.NoError(t, err)
}

func TestUpdateAssignmentMissingTicket(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE jira_table SET assigned_to").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewJiraRepo(db).UpdateAssignment(context.Background(), "MAI-999", "Nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkNotified(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE jira_table SET teams_flag").
		WithArgs("MAI-200", "SAP Basis").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewJiraRepo(db).MarkNotified(context.Background(), "MAI-200", "SAP Basis")
	assert.NoError(t, err)
}

func TestCountDuplicatesFor(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("canonical").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := NewEmailRepo(db).CountDuplicatesFor(context.Background(), "canonical")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
