package action

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/alertops/internal/config"
	"github.com/ignite/alertops/internal/domain"
	"github.com/ignite/alertops/internal/repository/postgres"
	"github.com/ignite/alertops/internal/router"
	"github.com/ignite/alertops/internal/teams"
)

type fakeTracker struct {
	status     string
	created    []string
	updates    []map[string]any
	nextKey    string
	statusKeys []string
}

func (f *fakeTracker) CreateIssue(ctx context.Context, project, summary, description, issueType, priority string) (string, error) {
	f.created = append(f.created, summary+"|"+priority)
	return f.nextKey, nil
}

func (f *fakeTracker) IssueStatus(ctx context.Context, key string) (string, error) {
	f.statusKeys = append(f.statusKeys, key)
	return f.status, nil
}

func (f *fakeTracker) UpdateFields(ctx context.Context, key string, fields map[string]any) error {
	f.updates = append(f.updates, fields)
	return nil
}

func (f *fakeTracker) SearchUser(ctx context.Context, email string) (string, string, error) {
	return "acct-1", "Basis Oncall", nil
}

func (f *fakeTracker) AddAttachment(ctx context.Context, key, filename string, content io.Reader) error {
	return nil
}

type fakeNotifier struct {
	posted []teams.Notification
	urls   []string
}

func (f *fakeNotifier) Post(ctx context.Context, webhookURL string, n teams.Notification) error {
	f.posted = append(f.posted, n)
	f.urls = append(f.urls, webhookURL)
	return nil
}

func newTestActioner(t *testing.T, db *sql.DB, tracker *fakeTracker, notifier *fakeNotifier) *Actioner {
	t.Helper()
	teamsCfg := config.TeamsConfig{
		Enabled:        true,
		Webhooks:       map[string]string{"SAP_BASIS": "https://hooks.example.com/sap-basis"},
		GeneralWebhook: "https://hooks.example.com/general",
	}
	return &Actioner{
		Tracker:  tracker,
		Notifier: notifier,
		Matcher: router.NewMatcher([]domain.TriggerMapping{
			{TriggerName: "High CPU", Team: "SAP Basis", Priority: domain.PriorityP1,
				ResponsiblePersons: "basis.oncall@example.com"},
		}),
		Channels:     router.NewChannelResolver(teamsCfg, nil, "first"),
		Segregation:  postgres.NewSegregationRepo(db),
		Jira:         postgres.NewJiraRepo(db),
		Emails:       postgres.NewEmailRepo(db),
		ProjectKey:   "MAI",
		IssueType:    "Task",
		TeamFieldID:  "customfield_10001",
		TrackerURL:   "https://jira.example.com",
		TeamsEnabled: true,
	}
}

func actPayload(t *testing.T, emailID string) []byte {
	t.Helper()
	alert := domain.SummarizedAlert{}
	alert.EmailID = emailID
	alert.Subject = "High CPU on hostA"
	alert.Sender = "controlup@example.com"
	alert.ReceivedTime = time.Date(2025, 1, 7, 10, 0, 0, 0, time.UTC)
	alert.TriggerName = "High CPU"
	alert.ResourceName = "hostA"
	alert.Priority = domain.PriorityP1
	alert.Type = domain.TypeActionable
	alert.Summary = "CPU pegged at 99%."
	body, err := json.Marshal(alert)
	require.NoError(t, err)
	return body
}

func TestHandleCreatesTicketAndNotifies(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// No ticket for this email yet, no open prior ticket.
	mock.ExpectQuery("FROM jira_table").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT s.email_id, j.jiraticket_id").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("INSERT INTO jira_table").
		WillReturnRows(sqlmock.NewRows([]string{"jira_id"}).AddRow(int64(7)))
	mock.ExpectExec("UPDATE jira_table SET teams_flag").
		WillReturnResult(sqlmock.NewResult(0, 1))

	tracker := &fakeTracker{nextKey: "MAI-200"}
	notifier := &fakeNotifier{}
	a := newTestActioner(t, db, tracker, notifier)

	err = a.Handle(context.Background(), amqp.Delivery{Body: actPayload(t, "email-1")})
	require.NoError(t, err)

	require.Len(t, tracker.created, 1)
	assert.Equal(t, "High CPU - hostA|Highest", tracker.created[0])

	// Team field plus assignee updates.
	require.Len(t, tracker.updates, 2)
	_, hasTeam := tracker.updates[0]["customfield_10001"]
	assert.True(t, hasTeam)
	_, hasAssignee := tracker.updates[1]["assignee"]
	assert.True(t, hasAssignee)

	require.Len(t, notifier.posted, 1)
	assert.Equal(t, "https://hooks.example.com/sap-basis", notifier.urls[0])
	assert.Equal(t, "MAI-200", notifier.posted[0].TicketKey)
	assert.Equal(t, "https://jira.example.com/browse/MAI-200", notifier.posted[0].TicketURL)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleSuppressesWhilePriorTicketOpen(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM jira_table").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT s.email_id, j.jiraticket_id").
		WillReturnRows(sqlmock.NewRows([]string{"email_id", "jiraticket_id"}).
			AddRow("email-A", "MAI-100"))
	mock.ExpectExec("INSERT INTO duplicate_emails").
		WillReturnResult(sqlmock.NewResult(1, 1))

	tracker := &fakeTracker{status: "In Progress"}
	notifier := &fakeNotifier{}
	a := newTestActioner(t, db, tracker, notifier)

	err = a.Handle(context.Background(), amqp.Delivery{Body: actPayload(t, "email-B")})
	require.NoError(t, err)

	assert.Equal(t, []string{"MAI-100"}, tracker.statusKeys)
	assert.Empty(t, tracker.created, "no new ticket while the prior one is open")
	assert.Empty(t, notifier.posted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleClosedPriorTicketCreatesNew(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM jira_table").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT s.email_id, j.jiraticket_id").
		WillReturnRows(sqlmock.NewRows([]string{"email_id", "jiraticket_id"}).
			AddRow("email-A", "MAI-100"))
	mock.ExpectQuery("INSERT INTO jira_table").
		WillReturnRows(sqlmock.NewRows([]string{"jira_id"}).AddRow(int64(8)))
	mock.ExpectExec("UPDATE jira_table SET teams_flag").
		WillReturnResult(sqlmock.NewResult(0, 1))

	tracker := &fakeTracker{status: "Done", nextKey: "MAI-201"}
	notifier := &fakeNotifier{}
	a := newTestActioner(t, db, tracker, notifier)

	err = a.Handle(context.Background(), amqp.Delivery{Body: actPayload(t, "email-B")})
	require.NoError(t, err)
	assert.Len(t, tracker.created, 1, "closed prior ticket does not suppress")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleRedeliveredTicketIsIdempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("FROM jira_table").
		WillReturnRows(sqlmock.NewRows([]string{
			"jira_id", "email_id", "jiraticket_id", "assigned_to", "teams_flag",
			"teams_channel", "created_at", "inserted_at",
		}).AddRow(int64(7), "email-1", "MAI-200", "Basis Oncall", "true", "SAP Basis", now, now))

	tracker := &fakeTracker{}
	a := newTestActioner(t, db, tracker, &fakeNotifier{})

	err = a.Handle(context.Background(), amqp.Delivery{Body: actPayload(t, "email-1")})
	require.NoError(t, err)
	assert.Empty(t, tracker.created, "redelivery never opens a second ticket")
}
