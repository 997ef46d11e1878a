// Package postgres implements the pipeline repositories against PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ignite/alertops/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("postgres: not found")

// EmailRepo persists raw emails and their suppressed duplicates.
type EmailRepo struct{ db *sql.DB }

// NewEmailRepo creates a Postgres-backed raw-email repository.
func NewEmailRepo(db *sql.DB) *EmailRepo { return &EmailRepo{db: db} }

// UpsertRaw inserts a RawEmail if its email_id is new and returns the row
// as stored. Re-ingesting the same message short-circuits on the existing
// row, preserving its status flag.
func (r *EmailRepo) UpsertRaw(ctx context.Context, e *domain.RawEmail) (*domain.RawEmail, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO raw_emails (email_id, sender, subject, body, email_path, received_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (email_id) DO NOTHING
	`, e.EmailID, e.Sender, e.Subject, e.Body, e.EmailPath, e.ReceivedAt, e.Status)
	if err != nil {
		return nil, fmt.Errorf("upsert raw email: %w", err)
	}
	return r.GetRaw(ctx, e.EmailID)
}

// GetRaw fetches a RawEmail by id.
func (r *EmailRepo) GetRaw(ctx context.Context, emailID string) (*domain.RawEmail, error) {
	var e domain.RawEmail
	err := r.db.QueryRowContext(ctx, `
		SELECT email_id, sender, subject, body, email_path, received_at, inserted_at, status
		FROM raw_emails WHERE email_id = $1
	`, emailID).Scan(&e.EmailID, &e.Sender, &e.Subject, &e.Body, &e.EmailPath,
		&e.ReceivedAt, &e.InsertedAt, &e.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get raw email: %w", err)
	}
	return &e, nil
}

// SetRawStatus flips the enqueued flag on a RawEmail.
func (r *EmailRepo) SetRawStatus(ctx context.Context, emailID string, status bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE raw_emails SET status = $2 WHERE email_id = $1`, emailID, status)
	if err != nil {
		return fmt.Errorf("update raw email status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRecent returns up to limit raw emails, newest first.
func (r *EmailRepo) ListRecent(ctx context.Context, limit, offset int) ([]domain.RawEmail, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT email_id, sender, subject, body, email_path, received_at, inserted_at, status
		FROM raw_emails ORDER BY received_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list raw emails: %w", err)
	}
	defer rows.Close()

	var out []domain.RawEmail
	for rows.Next() {
		var e domain.RawEmail
		if err := rows.Scan(&e.EmailID, &e.Sender, &e.Subject, &e.Body, &e.EmailPath,
			&e.ReceivedAt, &e.InsertedAt, &e.Status); err != nil {
			return nil, fmt.Errorf("scan raw email: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertDuplicate records an alert suppressed in favor of a prior one.
// Re-inserting the same duplicate is a no-op, which keeps redelivered
// act-stage messages from piling up rows.
func (r *EmailRepo) InsertDuplicate(ctx context.Context, d *domain.DuplicateEmail) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO duplicate_emails (duplicate_email_id, email_id, subject, body, sender, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (duplicate_email_id) DO NOTHING
	`, d.DuplicateEmailID, d.EmailID, d.Subject, d.Body, d.Sender, d.ReceivedAt)
	if err != nil {
		return fmt.Errorf("insert duplicate email: %w", err)
	}
	return nil
}

// CountDuplicatesFor returns how many alerts were suppressed to the given
// canonical email.
func (r *EmailRepo) CountDuplicatesFor(ctx context.Context, emailID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM duplicate_emails WHERE email_id = $1`, emailID).Scan(&n)
	return n, err
}
