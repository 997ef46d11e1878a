package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ignite/alertops/internal/domain"
)

// JobRepo logs ingestion runs. The most recent row's last_run_time is the
// floor of the next fetch window.
type JobRepo struct{ db *sql.DB }

// NewJobRepo creates a Postgres-backed job-log repository.
func NewJobRepo(db *sql.DB) *JobRepo { return &JobRepo{db: db} }

// InsertRun appends a run record.
func (r *JobRepo) InsertRun(ctx context.Context, run *domain.JobRun) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO job_table (job_name, job_start_time, job_end_time, last_run_time, frequency)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING job_id
	`, run.JobName, run.JobStartTime, run.JobEndTime, run.LastRunTime, run.Frequency).Scan(&run.JobID)
	if err != nil {
		return fmt.Errorf("insert job run: %w", err)
	}
	return nil
}

// LatestRun returns the most recent run for a job name.
func (r *JobRepo) LatestRun(ctx context.Context, jobName string) (*domain.JobRun, error) {
	var run domain.JobRun
	err := r.db.QueryRowContext(ctx, `
		SELECT job_id, COALESCE(job_name, ''), job_start_time, job_end_time, last_run_time, frequency, inserted_at
		FROM job_table WHERE job_name = $1
		ORDER BY job_id DESC LIMIT 1
	`, jobName).Scan(&run.JobID, &run.JobName, &run.JobStartTime, &run.JobEndTime,
		&run.LastRunTime, &run.Frequency, &run.InsertedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest job run: %w", err)
	}
	return &run, nil
}

// History returns the N most recent runs across all jobs.
func (r *JobRepo) History(ctx context.Context, limit int) ([]domain.JobRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT job_id, COALESCE(job_name, ''), job_start_time, job_end_time, last_run_time, frequency, inserted_at
		FROM job_table ORDER BY job_id DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("job history: %w", err)
	}
	defer rows.Close()

	var out []domain.JobRun
	for rows.Next() {
		var run domain.JobRun
		if err := rows.Scan(&run.JobID, &run.JobName, &run.JobStartTime, &run.JobEndTime,
			&run.LastRunTime, &run.Frequency, &run.InsertedAt); err != nil {
			return nil, fmt.Errorf("scan job run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
