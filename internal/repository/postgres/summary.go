package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ignite/alertops/internal/domain"
)

// SummaryRepo persists the per-email summary text.
type SummaryRepo struct{ db *sql.DB }

// NewSummaryRepo creates a Postgres-backed summary repository.
func NewSummaryRepo(db *sql.DB) *SummaryRepo { return &SummaryRepo{db: db} }

// Get fetches the summary for an email.
func (r *SummaryRepo) Get(ctx context.Context, emailID string) (*domain.Summary, error) {
	var s domain.Summary
	err := r.db.QueryRowContext(ctx, `
		SELECT email_id, summary, inserted_at, status
		FROM summary_table WHERE email_id = $1
	`, emailID).Scan(&s.EmailID, &s.Summary, &s.InsertedAt, &s.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}
	return &s, nil
}

// Upsert inserts or replaces the summary for an email.
func (r *SummaryRepo) Upsert(ctx context.Context, emailID, summary string, status bool) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO summary_table (email_id, summary, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (email_id) DO UPDATE SET summary = $2, status = $3
	`, emailID, summary, status)
	if err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	return nil
}
