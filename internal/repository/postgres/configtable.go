package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ignite/alertops/internal/domain"
)

// ConfigRepo serves the scheduler-interval row and the admin-managed
// runtime configuration.
type ConfigRepo struct{ db *sql.DB }

// NewConfigRepo creates a Postgres-backed config repository.
func NewConfigRepo(db *sql.DB) *ConfigRepo { return &ConfigRepo{db: db} }

// GetInterval fetches the interval for a named job. A missing row falls
// back to ten minutes.
func (r *ConfigRepo) GetInterval(ctx context.Context, jobName string) (domain.SchedulerConfig, error) {
	cfg := domain.SchedulerConfig{JobName: jobName, IntervalUnit: "minutes", IntervalValue: 10}
	err := r.db.QueryRowContext(ctx,
		`SELECT interval_unit, interval_value FROM config WHERE job_name = $1`, jobName).
		Scan(&cfg.IntervalUnit, &cfg.IntervalValue)
	if errors.Is(err, sql.ErrNoRows) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("get interval: %w", err)
	}
	return cfg, nil
}

// SetInterval stores the interval for a named job.
func (r *ConfigRepo) SetInterval(ctx context.Context, cfg domain.SchedulerConfig) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (job_name, interval_unit, interval_value)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_name) DO UPDATE SET interval_unit = $2, interval_value = $3
	`, cfg.JobName, cfg.IntervalUnit, cfg.IntervalValue)
	if err != nil {
		return fmt.Errorf("set interval: %w", err)
	}
	return nil
}

// LatestConfiguration returns the most recent runtime configuration row.
func (r *ConfigRepo) LatestConfiguration(ctx context.Context) (*domain.Configuration, error) {
	var (
		c         domain.Configuration
		allowlist string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, mail_allowlist, tracker_url, tracker_token, created_at
		FROM configuration ORDER BY created_at DESC LIMIT 1
	`).Scan(&c.ID, &allowlist, &c.TrackerURL, &c.TrackerToken, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest configuration: %w", err)
	}
	for _, a := range strings.Split(allowlist, ",") {
		if a = strings.TrimSpace(a); a != "" {
			c.MailAllowlist = append(c.MailAllowlist, a)
		}
	}
	return &c, nil
}
