package store

import (
	"database/sql"
	"time"
)

// ActionRun records one plugin action executed for a call event.
type ActionRun struct {
	ID         int64         `json:"id"`
	CallID     string        `json:"call_id"`
	Event      string        `json:"event"`
	PluginName string        `json:"plugin"`
	ActionName string        `json:"action"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	ExecutedAt time.Time     `json:"executed_at"`
}

// ActionRepository records plugin action runs.
type ActionRepository struct {
	db *sql.DB
}

// Actions returns the action repository for this store.
func (s *Store) Actions() *ActionRepository {
	return &ActionRepository{db: s.db}
}

// Record inserts a run and sets its ID.
func (r *ActionRepository) Record(a *ActionRun) error {
	if a.ExecutedAt.IsZero() {
		a.ExecutedAt = time.Now()
	}

	result, err := r.db.Exec(
		`INSERT INTO call_actions (call_id, event, plugin_name, action_name, error, duration_ms, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.CallID, a.Event, a.PluginName, a.ActionName, a.Error, a.Duration.Milliseconds(), a.ExecutedAt.UTC(),
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

// ListByCall returns the runs of a call in execution order.
func (r *ActionRepository) ListByCall(callID string) ([]*ActionRun, error) {
	rows, err := r.db.Query(
		`SELECT id, call_id, event, plugin_name, action_name, error, duration_ms, executed_at
		 FROM call_actions WHERE call_id = ? ORDER BY id`,
		callID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []*ActionRun{}
	for rows.Next() {
		a := &ActionRun{}
		var durationMs int64

		err := rows.Scan(&a.ID, &a.CallID, &a.Event, &a.PluginName, &a.ActionName, &a.Error, &durationMs, &a.ExecutedAt)
		if err != nil {
			return nil, err
		}

		a.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}
