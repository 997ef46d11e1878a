package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/alertops/internal/domain"
)

// MaintenanceRepo persists maintenance windows. Status is a computed
// function of (start, end, now) and is recomputed on every read.
type MaintenanceRepo struct{ db *sql.DB }

// NewMaintenanceRepo creates a Postgres-backed maintenance repository.
func NewMaintenanceRepo(db *sql.DB) *MaintenanceRepo { return &MaintenanceRepo{db: db} }

// Create stores a new window.
func (r *MaintenanceRepo) Create(ctx context.Context, w *domain.MaintenanceWindow) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO maintenance_windows (server_group, server_name, other_server, comments, start_datetime, end_datetime, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, w.ServerGroup, w.ServerName, w.OtherServer, w.Comments,
		w.StartDatetime, w.EndDatetime, string(domain.ComputeMaintenanceStatus(w.StartDatetime, w.EndDatetime, time.Now().UTC()))).Scan(&w.ID)
	if err != nil {
		return fmt.Errorf("create maintenance window: %w", err)
	}
	return nil
}

// List returns all windows with their status computed at now.
func (r *MaintenanceRepo) List(ctx context.Context, now time.Time) ([]domain.MaintenanceWindow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, server_group, COALESCE(server_name, ''), COALESCE(other_server, ''),
		       COALESCE(comments, ''), start_datetime, end_datetime, created_at, updated_at
		FROM maintenance_windows ORDER BY start_datetime DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list maintenance windows: %w", err)
	}
	defer rows.Close()
	return scanWindows(rows, now)
}

// AnyOngoingFor reports whether any of the given server names has a window
// that is Ongoing at now.
func (r *MaintenanceRepo) AnyOngoingFor(ctx context.Context, serverNames []string, now time.Time) (bool, error) {
	if len(serverNames) == 0 {
		return false, nil
	}
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM maintenance_windows
			WHERE server_name = ANY($1)
			  AND start_datetime <= $2 AND end_datetime >= $2
		)
	`, pq.Array(serverNames), now).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ongoing maintenance check: %w", err)
	}
	return exists, nil
}

func scanWindows(rows *sql.Rows, now time.Time) ([]domain.MaintenanceWindow, error) {
	var out []domain.MaintenanceWindow
	for rows.Next() {
		var w domain.MaintenanceWindow
		if err := rows.Scan(&w.ID, &w.ServerGroup, &w.ServerName, &w.OtherServer,
			&w.Comments, &w.StartDatetime, &w.EndDatetime, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan maintenance window: %w", err)
		}
		w.Status = domain.ComputeMaintenanceStatus(w.StartDatetime, w.EndDatetime, now)
		out = append(out, w)
	}
	return out, rows.Err()
}
