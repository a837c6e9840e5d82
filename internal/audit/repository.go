// Package audit records every actuation Hearth issues and every manual
// override change in the actions table, so "why did the heater turn
// off at 02:00" has an answer after the fact.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sources for action records.
const (
	// SourceSchedule marks an action fired by the scheduler loop.
	SourceSchedule = "schedule"

	// SourceOverride marks a manual override change via the API.
	SourceOverride = "override"
)

// Action represents a single recorded action.
type Action struct {
	ID          string    `json:"id"`
	Schedule    string    `json:"schedule"`
	Actor       string    `json:"actor"`
	TriggerSpec string    `json:"trigger,omitempty"`
	Source      string    `json:"source"`
	FiredAt     time.Time `json:"fired_at"`
}

// Filter controls which actions to return.
type Filter struct {
	Schedule string // optional: filter by schedule name
	Source   string // optional: filter by source (schedule, override)
	Limit    int    // default 50, max 200
	Offset   int    // pagination offset
}

// ListResult contains the paginated action results.
type ListResult struct {
	Actions []Action `json:"actions"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

// Repository defines the interface for action log operations.
type Repository interface {
	Create(ctx context.Context, action *Action) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores the action log in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new action log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts an action record. The ID and FiredAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, action *Action) error {
	if action.ID == "" {
		action.ID = "act-" + uuid.NewString()[:8]
	}
	if action.FiredAt.IsZero() {
		action.FiredAt = time.Now().UTC()
	}
	if action.Source == "" {
		action.Source = SourceSchedule
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO actions (id, schedule, actor, trigger_spec, source, fired_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		action.ID, action.Schedule, action.Actor, action.TriggerSpec,
		action.Source, action.FiredAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting action: %w", err)
	}

	return nil
}

// List returns actions matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	// Clamp limit.
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size for action log queries
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	// Build WHERE clause dynamically.
	var conditions []string
	var args []any

	if filter.Schedule != "" {
		conditions = append(conditions, "schedule = ?")
		args = append(args, filter.Schedule)
	}
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, filter.Source)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Get total count.
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM actions %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting actions: %w", err)
	}

	// Get paginated results.
	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, schedule, actor, trigger_spec, source, fired_at FROM actions %s ORDER BY fired_at DESC, id LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying actions: %w", err)
	}
	defer rows.Close()

	var actions []Action
	for rows.Next() {
		var a Action
		var firedAt string

		if err := rows.Scan(&a.ID, &a.Schedule, &a.Actor, &a.TriggerSpec, &a.Source, &firedAt); err != nil {
			return nil, fmt.Errorf("scanning action: %w", err)
		}

		t, err := time.Parse(time.RFC3339, firedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing action timestamp %q: %w", firedAt, err)
		}
		a.FiredAt = t

		actions = append(actions, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating actions: %w", err)
	}

	if actions == nil {
		actions = []Action{}
	}

	return &ListResult{
		Actions: actions,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
