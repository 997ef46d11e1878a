package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/alertops/internal/repository/postgres"
	"github.com/ignite/alertops/internal/scheduler"
	"github.com/ignite/alertops/internal/supervisor"
)

func newTestServer(t *testing.T) (*Server, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &Server{
		Scheduler:   &scheduler.Scheduler{},
		Supervisor:  &supervisor.Supervisor{},
		Emails:      postgres.NewEmailRepo(db),
		Jobs:        postgres.NewJobRepo(db),
		Maintenance: postgres.NewMaintenanceRepo(db),
	}, mock
}

func TestMonitoringStatusBeforeFirstProbe(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/monitoring/status", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var report supervisor.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, supervisor.StatusInitializing, report.Status)
}

func TestSchedulerStatusStopped(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/scheduler/status", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, false, status["is_running"])
	_, hasNext := status["next_run"]
	assert.False(t, hasNext)
}

func TestListEmails(t *testing.T) {
	s, mock := newTestServer(t)

	now := time.Now()
	mock.ExpectQuery("FROM raw_emails").
		WillReturnRows(sqlmock.NewRows([]string{
			"email_id", "sender", "subject", "body", "email_path", "received_at", "inserted_at", "status",
		}).AddRow("abc123", "alerts@example.com", "High CPU on hostA", "body", "/tmp/x.msg", now, now, true))

	req := httptest.NewRequest(http.MethodGet, "/emails?limit=10", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Count  int `json:"count"`
		Emails []struct {
			EmailID  string `json:"email_id"`
			Enqueued bool   `json:"enqueued"`
		} `json:"emails"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "abc123", out.Emails[0].EmailID)
	assert.True(t, out.Emails[0].Enqueued)
}

func TestCreateMaintenanceValidates(t *testing.T) {
	s, _ := newTestServer(t)

	// End before start is rejected before any database work.
	payload := `{"server_group": "Citrix Infrastructure",
		"server_name": "cluster1",
		"start_datetime": "2025-06-02T02:00:00Z",
		"end_datetime": "2025-06-01T22:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/maintenance", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateMaintenance(t *testing.T) {
	s, mock := newTestServer(t)

	mock.ExpectQuery("INSERT INTO maintenance_windows").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))

	payload := `{"server_group": "Citrix Infrastructure",
		"server_name": "cluster1",
		"start_datetime": "2025-06-01T22:00:00Z",
		"end_datetime": "2025-06-02T02:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/maintenance", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var out struct {
		ID     int64  `json:"ID"`
		Status string `json:"Status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, int64(5), out.ID)
	assert.Equal(t, "Completed", out.Status, "a past window reads as Completed")
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/emails?limit=25&offset=junk", nil)
	assert.Equal(t, 25, queryInt(req, "limit", 50))
	assert.Equal(t, 0, queryInt(req, "offset", 0))
	assert.Equal(t, 50, queryInt(req, "missing", 50))
}
