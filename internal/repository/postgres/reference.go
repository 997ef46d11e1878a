package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ignite/alertops/internal/domain"
)

// ReferenceRepo serves the bulk-reloaded reference tables: trigger
// mappings, the server inventory, and the containment graph.
type ReferenceRepo struct{ db *sql.DB }

// NewReferenceRepo creates a Postgres-backed reference repository.
func NewReferenceRepo(db *sql.DB) *ReferenceRepo { return &ReferenceRepo{db: db} }

// ReplaceTriggerMappings swaps the full trigger table inside one
// transaction. Readers see either the old or the new snapshot.
func (r *ReferenceRepo) ReplaceTriggerMappings(ctx context.Context, rows []domain.TriggerMapping) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin trigger reload: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM trigger_mappings`); err != nil {
		return fmt.Errorf("clear trigger mappings: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trigger_mappings
			(trigger_name, category, priority, actionable, recommended_action, team, department, responsible_persons)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return fmt.Errorf("prepare trigger insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range rows {
		if _, err := stmt.ExecContext(ctx, m.TriggerName, m.Category, m.Priority,
			m.Actionable, m.RecommendedAction, m.Team, m.Department, m.ResponsiblePersons); err != nil {
			return fmt.Errorf("insert trigger %q: %w", m.TriggerName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit trigger reload: %w", err)
	}
	return nil
}

// ListTriggerMappings returns the full trigger reference table.
func (r *ReferenceRepo) ListTriggerMappings(ctx context.Context) ([]domain.TriggerMapping, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, trigger_name, COALESCE(category, ''), COALESCE(priority, ''),
		       actionable, COALESCE(recommended_action, ''), COALESCE(team, ''),
		       COALESCE(department, ''), COALESCE(responsible_persons, '')
		FROM trigger_mappings ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list trigger mappings: %w", err)
	}
	defer rows.Close()

	var out []domain.TriggerMapping
	for rows.Next() {
		var m domain.TriggerMapping
		if err := rows.Scan(&m.ID, &m.TriggerName, &m.Category, &m.Priority,
			&m.Actionable, &m.RecommendedAction, &m.Team, &m.Department, &m.ResponsiblePersons); err != nil {
			return nil, fmt.Errorf("scan trigger mapping: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GroupsFor returns the server groups a computer belongs to, in insertion
// order. A host may belong to several groups.
func (r *ReferenceRepo) GroupsFor(ctx context.Context, computerName string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT server_group FROM servers WHERE computername = $1 ORDER BY id`, computerName)
	if err != nil {
		return nil, fmt.Errorf("server groups: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ParentOf returns the parent of a machine in the containment graph, or ""
// when the machine has no parent.
func (r *ReferenceRepo) ParentOf(ctx context.Context, child string) (string, error) {
	var parent string
	err := r.db.QueryRowContext(ctx,
		`SELECT parent FROM parent_child_relationships WHERE child = $1 LIMIT 1`, child).Scan(&parent)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("parent lookup: %w", err)
	}
	return parent, nil
}
