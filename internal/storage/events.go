package storage

import (
	"context"
	"database/sql"
	"strings"
)

const eventColumns = "id, kind, level, task_id, message, created_at, dismissed_at"

func scanEvent(r rowScanner) (Event, error) {
	var (
		e         Event
		created   int64
		dismissed sql.NullInt64
	)
	if err := r.Scan(&e.ID, &e.Kind, &e.Level, &e.TaskID, &e.Message, &created, &dismissed); err != nil {
		return Event{}, err
	}
	e.CreatedAt = fromNanos(created)
	if dismissed.Valid {
		t := fromNanos(dismissed.Int64)
		e.DismissedAt = &t
	}
	return e, nil
}

func (s *sqlStore) AppendEvent(ctx context.Context, e Event) (Event, error) {
	e.Kind = strings.TrimSpace(e.Kind)
	if e.Kind == "" {
		return Event{}, invalid("kind", "is required")
	}
	if e.Level == "" {
		e.Level = "info"
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	e.CreatedAt = e.CreatedAt.UTC()
	e.DismissedAt = nil

	err := s.db.QueryRowContext(ctx, s.q(`INSERT INTO events (kind, level, task_id, message, created_at)
		VALUES (?, ?, ?, ?, ?) RETURNING id`),
		e.Kind, e.Level, e.TaskID, e.Message, e.CreatedAt.UnixNano()).Scan(&e.ID)
	if err != nil {
		return Event{}, &PersistenceError{Op: "append event", Err: err}
	}
	return e, nil
}

// ListEvents returns the newest events first. Limit defaults to 50.
func (s *sqlStore) ListEvents(ctx context.Context, f EventFilter) ([]Event, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + eventColumns + ` FROM events`
	if !f.IncludeDismissed {
		query += ` WHERE dismissed_at IS NULL`
	}
	query += ` ORDER BY id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, s.q(query), limit)
	if err != nil {
		return nil, &PersistenceError{Op: "list events", Err: err}
	}
	defer rows.Close()
	out := make([]Event, 0, limit)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, &PersistenceError{Op: "list events", Err: err}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "list events", Err: err}
	}
	return out, nil
}

func (s *sqlStore) DismissEvent(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE events SET dismissed_at = COALESCE(dismissed_at, ?) WHERE id = ?`),
		s.nowNanos(), id)
	if err != nil {
		return &PersistenceError{Op: "dismiss event", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
