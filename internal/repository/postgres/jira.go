package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ignite/alertops/internal/domain"
)

// JiraRepo records created tracker tickets.
type JiraRepo struct{ db *sql.DB }

// NewJiraRepo creates a Postgres-backed ticket repository.
func NewJiraRepo(db *sql.DB) *JiraRepo { return &JiraRepo{db: db} }

// Insert stores a new ticket record. The jiraticket_id unique constraint
// makes a second insert for the same ticket fail, and the error is
// returned to the caller. The actioner recognises a redelivered act-stage
// message before this point, by looking the email up with GetByEmailID.
func (r *JiraRepo) Insert(ctx context.Context, e *domain.JiraEntry) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO jira_table (email_id, jiraticket_id, assigned_to, teams_flag, teams_channel, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING jira_id
	`, e.EmailID, e.TicketID, e.AssignedTo, e.TeamsFlag, e.TeamsChannel, e.CreatedAt).Scan(&e.JiraID)
	if err != nil {
		return fmt.Errorf("insert jira entry: %w", err)
	}
	return nil
}

// GetByEmailID returns the ticket recorded for an email, if any.
func (r *JiraRepo) GetByEmailID(ctx context.Context, emailID string) (*domain.JiraEntry, error) {
	var (
		e                      domain.JiraEntry
		assigned, flag, channel sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT jira_id, email_id, jiraticket_id, assigned_to, teams_flag, teams_channel, created_at, inserted_at
		FROM jira_table WHERE email_id = $1
		ORDER BY inserted_at DESC LIMIT 1
	`, emailID).Scan(&e.JiraID, &e.EmailID, &e.TicketID, &assigned, &flag, &channel,
		&e.CreatedAt, &e.InsertedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get jira entry: %w", err)
	}
	e.AssignedTo = assigned.String
	e.TeamsFlag = flag.String
	e.TeamsChannel = channel.String
	return &e, nil
}

// UpdateAssignment records a new assignee for a ticket.
func (r *JiraRepo) UpdateAssignment(ctx context.Context, ticketID, assignedTo string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE jira_table SET assigned_to = $2 WHERE jiraticket_id = $1`, ticketID, assignedTo)
	if err != nil {
		return fmt.Errorf("update jira assignment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkNotified records the chat channel a ticket's notification went to.
func (r *JiraRepo) MarkNotified(ctx context.Context, ticketID, channel string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE jira_table SET teams_flag = 'true', teams_channel = $2 WHERE jiraticket_id = $1`,
		ticketID, channel)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}
