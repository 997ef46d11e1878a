package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/alertops/internal/domain"
)

func TestReplaceTriggerMappingsTransactional(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM trigger_mappings").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectPrepare("INSERT INTO trigger_mappings")
	mock.ExpectExec("INSERT INTO trigger_mappings").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO trigger_mappings").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	rows := []domain.TriggerMapping{
		{TriggerName: "High CPU", Team: "SAP Basis"},
		{TriggerName: "Low Disk", Team: "IBS - CITRIX"},
	}
	err := NewReferenceRepo(db).ReplaceTriggerMappings(context.Background(), rows)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceTriggerMappingsRollsBackOnError(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM trigger_mappings").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectPrepare("INSERT INTO trigger_mappings")
	mock.ExpectExec("INSERT INTO trigger_mappings").
		WillReturnError(fmt.Errorf("constraint violation"))
	mock.ExpectRollback()

	err := NewReferenceRepo(db).ReplaceTriggerMappings(context.Background(),
		[]domain.TriggerMapping{{TriggerName: "High CPU"}})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParentOf(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT parent FROM parent_child_relationships").
		WithArgs("hostZ").
		WillReturnRows(sqlmock.NewRows([]string{"parent"}).AddRow("cluster1"))

	got, err := NewReferenceRepo(db).ParentOf(context.Background(), "hostZ")
	require.NoError(t, err)
	assert.Equal(t, "cluster1", got)
}

func TestParentOfNoParent(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT parent FROM parent_child_relationships").
		WillReturnError(sql.ErrNoRows)

	got, err := NewReferenceRepo(db).ParentOf(context.Background(), "orphan")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAnyOngoingFor(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	got, err := NewMaintenanceRepo(db).AnyOngoingFor(context.Background(),
		[]string{"hostZ", "cluster1"}, time.Now())
	require.NoError(t, err)
	assert.True(t, got)
}

func TestAnyOngoingForEmptySet(t *testing.T) {
	db, _, cleanup := setupTestDB(t)
	defer cleanup()

	got, err := NewMaintenanceRepo(db).AnyOngoingFor(context.Background(), nil, time.Now())
	require.NoError(t, err)
	assert.False(t, got, "an empty check set never hits the database")
}

func TestGetIntervalFallback(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT interval_unit, interval_value FROM config").
		WillReturnError(sql.ErrNoRows)

	cfg, err := NewConfigRepo(db).GetInterval(context.Background(), "email_ingest")
	require.NoError(t, err)
	assert.Equal(t, "minutes", cfg.IntervalUnit)
	assert.Equal(t, 10, cfg.IntervalValue)
}
