package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/alertops/internal/domain"
)

// SegregationRepo persists classification results.
type SegregationRepo struct{ db *sql.DB }

// NewSegregationRepo creates a Postgres-backed segregation repository.
func NewSegregationRepo(db *sql.DB) *SegregationRepo { return &SegregationRepo{db: db} }

// Get fetches the classification row for an email.
func (r *SegregationRepo) Get(ctx context.Context, emailID string) (*domain.SegregatedEmail, error) {
	var (
		s                             domain.SegregatedEmail
		genSummary, recommendedAction sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT email_id, priority, type, resource_name, trigger_name,
		       generated_summary, recommended_action, inserted_at, status
		FROM segregated_email WHERE email_id = $1
	`, emailID).Scan(&s.EmailID, &s.Priority, &s.Type, &s.ResourceName, &s.TriggerName,
		&genSummary, &recommendedAction, &s.InsertedAt, &s.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get segregation: %w", err)
	}
	s.GeneratedSummary = genSummary.String
	s.RecommendedAction = recommendedAction.String
	return &s, nil
}

// Upsert inserts the classification row or refines the existing one.
// inserted_at marks the first insert and is never overwritten.
func (r *SegregationRepo) Upsert(ctx context.Context, s *domain.SegregatedEmail) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO segregated_email
			(email_id, priority, type, resource_name, trigger_name,
			 generated_summary, recommended_action, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (email_id) DO UPDATE SET
			priority = $2, type = $3, resource_name = $4, trigger_name = $5,
			generated_summary = $6, recommended_action = $7, status = $8
	`, s.EmailID, s.Priority, s.Type, s.ResourceName, s.TriggerName,
		s.GeneratedSummary, s.RecommendedAction, s.Status)
	if err != nil {
		return fmt.Errorf("upsert segregation: %w", err)
	}
	return nil
}

// SetStatus flips the enqueued flag on a classification row.
func (r *SegregationRepo) SetStatus(ctx context.Context, emailID string, status bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE segregated_email SET status = $2 WHERE email_id = $1`, emailID, status)
	if err != nil {
		return fmt.Errorf("update segregation status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// PriorWithinWindow returns the email_id of a non-informational alert with
// the same (trigger, resource) signature classified inside the suppression
// window ending at now, or "" when none exists. The current email is
// excluded so a redelivered message never suppresses itself.
func (r *SegregationRepo) PriorWithinWindow(ctx context.Context, trigger, resource, excludeEmailID string, window time.Duration, now time.Time) (string, error) {
	var emailID string
	err := r.db.QueryRowContext(ctx, `
		SELECT email_id FROM segregated_email
		WHERE trigger_name = $1 AND resource_name = $2
		  AND email_id <> $3
		  AND inserted_at >= $4 AND inserted_at <= $5
		  AND LOWER(priority) <> 'informational'
		ORDER BY inserted_at DESC LIMIT 1
	`, trigger, resource, excludeEmailID, now.Add(-window), now).Scan(&emailID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("prior within window: %w", err)
	}
	return emailID, nil
}

// LatestPriorTicketed returns the most recent prior email sharing the
// (trigger, resource) signature that already has a tracker ticket,
// excluding the given email. Used by cross-ticket dedup.
func (r *SegregationRepo) LatestPriorTicketed(ctx context.Context, trigger, resource, excludeEmailID string) (emailID, ticketID string, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT s.email_id, j.jiraticket_id
		FROM segregated_email s
		JOIN jira_table j ON j.email_id = s.email_id
		WHERE s.trigger_name = $1 AND s.resource_name = $2 AND s.email_id <> $3
		ORDER BY s.inserted_at DESC LIMIT 1
	`, trigger, resource, excludeEmailID).Scan(&emailID, &ticketID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("latest prior ticketed: %w", err)
	}
	return emailID, ticketID, nil
}
