package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"mediafetch/internal/window"
)

const windowColumns = "id, start_time, end_time, created_at"

func scanWindow(r rowScanner) (Window, error) {
	var (
		w          Window
		start, end int
		created    int64
	)
	if err := r.Scan(&w.ID, &start, &end, &created); err != nil {
		return Window{}, err
	}
	w.Start, w.End = window.TimeOfDay(start), window.TimeOfDay(end)
	w.CreatedAt = fromNanos(created)
	return w, nil
}

func (s *sqlStore) CreateWindow(ctx context.Context, start, end window.TimeOfDay) (Window, error) {
	if !start.Valid() {
		return Window{}, invalid("start", "out of range")
	}
	if !end.Valid() {
		return Window{}, invalid("end", "out of range")
	}
	now := s.now()
	w := Window{ID: uuid.NewString(), Start: start, End: end, CreatedAt: now.UTC()}
	if _, err := s.db.ExecContext(ctx, s.q(`INSERT INTO execution_windows (`+windowColumns+`) VALUES (?, ?, ?, ?)`),
		w.ID, int(start), int(end), now.UnixNano()); err != nil {
		return Window{}, &PersistenceError{Op: "create window", Err: err}
	}
	return w, nil
}

func (s *sqlStore) ListWindows(ctx context.Context) ([]Window, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+windowColumns+` FROM execution_windows ORDER BY created_at, id`)
	if err != nil {
		return nil, &PersistenceError{Op: "list windows", Err: err}
	}
	defer rows.Close()
	var out []Window
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, &PersistenceError{Op: "list windows", Err: err}
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "list windows", Err: err}
	}
	return out, nil
}

func (s *sqlStore) DeleteWindow(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM execution_windows WHERE id = ?`), id)
	if err != nil {
		return &PersistenceError{Op: "delete window", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) CurrentWindow(ctx context.Context) (Window, bool, error) {
	w, err := scanWindow(s.db.QueryRowContext(ctx,
		`SELECT `+windowColumns+` FROM execution_windows ORDER BY created_at, id LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return Window{}, false, nil
	}
	if err != nil {
		return Window{}, false, &PersistenceError{Op: "current window", Err: err}
	}
	return w, true, nil
}
