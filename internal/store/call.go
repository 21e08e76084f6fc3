package store

import (
	"database/sql"
	"errors"
	"time"
)

// Call is a recorded ringing session.
type Call struct {
	ID        string     `json:"id"`
	Decision  string     `json:"decision"`
	Gesture   string     `json:"gesture,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
}

// Decided reports whether the call has an outcome.
func (c *Call) Decided() bool {
	return c.Decision != ""
}

// CallRepository records call sessions.
type CallRepository struct {
	db *sql.DB
}

// Calls returns the call repository for this store.
func (s *Store) Calls() *CallRepository {
	return &CallRepository{db: s.db}
}

// Create inserts a new undecided call.
func (r *CallRepository) Create(c *Call) error {
	if c.StartedAt.IsZero() {
		c.StartedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO calls (id, decision, gesture, started_at) VALUES (?, '', '', ?)`,
		c.ID, c.StartedAt.UTC(),
	)
	return err
}

// Decide stores the outcome of a call. A call is decided at most once;
// deciding an unknown or already decided call returns ErrNotFound.
func (r *CallRepository) Decide(id, decision, gesture string, at time.Time) error {
	result, err := r.db.Exec(
		`UPDATE calls SET decision = ?, gesture = ?, decided_at = ?
		 WHERE id = ? AND decision = ''`,
		decision, gesture, at.UTC(), id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetByID retrieves a call by its ID.
func (r *CallRepository) GetByID(id string) (*Call, error) {
	row := r.db.QueryRow(
		`SELECT id, decision, gesture, started_at, decided_at FROM calls WHERE id = ?`,
		id,
	)

	c, err := scanCall(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// List returns the most recent calls first. A limit of zero or less
// returns every call.
func (r *CallRepository) List(limit int) ([]*Call, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT id, decision, gesture, started_at, decided_at
		 FROM calls ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	calls := []*Call{}
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return calls, nil
}

// CallStats counts calls by outcome.
type CallStats struct {
	Total    int `json:"total"`
	Accepted int `json:"accepted"`
	Declined int `json:"declined"`
	Pending  int `json:"pending"`
}

// Stats counts recorded calls by outcome.
func (r *CallRepository) Stats() (CallStats, error) {
	var s CallStats
	err := r.db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(decision = 'accepted'), 0),
		        COALESCE(SUM(decision = 'declined'), 0),
		        COALESCE(SUM(decision = ''), 0)
		 FROM calls`,
	).Scan(&s.Total, &s.Accepted, &s.Declined, &s.Pending)
	return s, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCall(row scanner) (*Call, error) {
	c := &Call{}
	var decidedAt sql.NullTime

	if err := row.Scan(&c.ID, &c.Decision, &c.Gesture, &c.StartedAt, &decidedAt); err != nil {
		return nil, err
	}
	if decidedAt.Valid {
		t := decidedAt.Time
		c.DecidedAt = &t
	}
	return c, nil
}
