package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	logx "mediafetch/pkg/logx"
)

func (s *sqlStore) CreateTask(ctx context.Context, in NewTask) (Task, error) {
	src := normalizeSources(in.Sources)
	if err := s.validateSources(src); err != nil {
		return Task{}, err
	}
	in.CatalogueName = strings.TrimSpace(in.CatalogueName)
	if err := validateCatalogue(in.CatalogueName); err != nil {
		return Task{}, err
	}
	in.DownloadStrategy = strings.TrimSpace(in.DownloadStrategy)
	in.SaveStrategy = strings.TrimSpace(in.SaveStrategy)
	if err := s.validateStrategies(in.DownloadStrategy, in.SaveStrategy); err != nil {
		return Task{}, err
	}

	now := s.now()
	t := Task{
		ID:               uuid.NewString(),
		Sources:          src,
		DownloadStrategy: in.DownloadStrategy,
		SaveStrategy:     in.SaveStrategy,
		CatalogueName:    in.CatalogueName,
		State:            StatePending,
		CreatedAt:        now.UTC(),
		UpdatedAt:        now.UTC(),
	}
	ns := now.UnixNano()

	err := s.withTx(ctx, "create task", func(tx *sql.Tx) error {
		if _, err := s.cleanupStale(ctx, tx, ns); err != nil {
			return err
		}
		top, err := s.maxPending(ctx, tx, t.ID)
		if err != nil {
			return err
		}
		p := top + 1
		if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO tasks (`+taskColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, '', ?, ?)`),
			t.ID, encodeSources(src), t.DownloadStrategy, t.SaveStrategy, t.CatalogueName,
			string(StatePending), p, ns, ns); err != nil {
			return err
		}
		if in.Priority != nil {
			if p, err = s.placeAt(ctx, tx, t.ID, *in.Priority, ns); err != nil {
				return err
			}
		}
		t.Priority = &p
		return nil
	})
	if err != nil {
		return Task{}, err
	}
	s.log.Info("task created", logx.String("task_id", t.ID), logx.Int("priority", *t.Priority),
		logx.String("download", t.DownloadStrategy), logx.String("save", t.SaveStrategy))
	return t, nil
}

func (s *sqlStore) GetTask(ctx context.Context, id string) (Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, s.q(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, &PersistenceError{Op: "get task", Err: err}
	}
	return t, nil
}

// getTaskTx reads id inside tx, locking the row where the dialect allows.
func (s *sqlStore) getTaskTx(ctx context.Context, tx *sql.Tx, id string) (Task, error) {
	t, err := scanTask(tx.QueryRowContext(ctx, s.q(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`+s.d.forUpdate), id))
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	return t, err
}

// ListTasks returns pending tasks in run order followed by the rest, newest
// first.
func (s *sqlStore) ListTasks(ctx context.Context, f TaskFilter) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []any
	if f.State != "" {
		if !f.State.Valid() {
			return nil, invalid("state", "unknown state %q", f.State)
		}
		query += ` WHERE state = ?`
		args = append(args, string(f.State))
	}
	query += ` ORDER BY (priority IS NULL), priority DESC, CASE WHEN priority IS NULL THEN -created_at ELSE created_at END, id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, &PersistenceError{Op: "list tasks", Err: err}
	}
	defer rows.Close()

	out := make([]Task, 0, 16)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, &PersistenceError{Op: "list tasks", Err: err}
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "list tasks", Err: err}
	}
	return out, nil
}

// UpdateTask applies p to task id. Moving a task requires it to be pending;
// the other pending tasks are shifted in the same transaction.
func (s *sqlStore) UpdateTask(ctx context.Context, id string, p TaskPatch) (Task, error) {
	var out Task
	err := s.withTx(ctx, "update task", func(tx *sql.Tx) error {
		cur, err := s.getTaskTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if p.Sources != nil {
			src := normalizeSources(*p.Sources)
			if err := s.validateSources(src); err != nil {
				return err
			}
			cur.Sources = src
		}
		if p.CatalogueName != nil {
			name := strings.TrimSpace(*p.CatalogueName)
			if err := validateCatalogue(name); err != nil {
				return err
			}
			cur.CatalogueName = name
		}
		if p.DownloadStrategy != nil {
			cur.DownloadStrategy = strings.TrimSpace(*p.DownloadStrategy)
		}
		if p.SaveStrategy != nil {
			cur.SaveStrategy = strings.TrimSpace(*p.SaveStrategy)
		}
		if p.DownloadStrategy != nil || p.SaveStrategy != nil {
			if err := s.validateStrategies(cur.DownloadStrategy, cur.SaveStrategy); err != nil {
				return err
			}
		}
		if p.Priority != nil && cur.State != StatePending {
			return invalid("priority", "only pending tasks can be reprioritized (state %s)", cur.State)
		}

		now := s.nowNanos()
		if _, err := tx.ExecContext(ctx, s.q(`UPDATE tasks
			SET sources = ?, download_strategy = ?, save_strategy = ?, catalogue_name = ?, updated_at = ?
			WHERE id = ?`),
			encodeSources(cur.Sources), cur.DownloadStrategy, cur.SaveStrategy, cur.CatalogueName, now, id); err != nil {
			return err
		}

		if p.Priority != nil && cur.Priority != nil && *p.Priority != *cur.Priority {
			if err := s.detach(ctx, tx, id, *cur.Priority, now); err != nil {
				return err
			}
			if _, err := s.placeAt(ctx, tx, id, *p.Priority, now); err != nil {
				return err
			}
		}

		out, err = s.getTaskTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return Task{}, err
	}
	return out, nil
}

func (s *sqlStore) DeleteTask(ctx context.Context, id string) error {
	err := s.withTx(ctx, "delete task", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.q(`DELETE FROM tasks WHERE id = ?`), id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		_, err = s.compact(ctx, tx, s.nowNanos())
		return err
	})
	if err == nil {
		s.log.Info("task deleted", logx.String("task_id", id))
	}
	return err
}

// RequeueTask returns a finished or stuck task to the end of the pending
// queue with its error cleared.
func (s *sqlStore) RequeueTask(ctx context.Context, id string) (Task, error) {
	var out Task
	err := s.withTx(ctx, "requeue task", func(tx *sql.Tx) error {
		cur, err := s.getTaskTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if cur.State == StatePending {
			return invalid("state", "task is already pending")
		}
		now := s.nowNanos()
		if _, err := s.cleanupStale(ctx, tx, now); err != nil {
			return err
		}
		top, err := s.maxPending(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(`UPDATE tasks
			SET state = ?, priority = ?, error_message = '', updated_at = ? WHERE id = ?`),
			string(StatePending), top+1, now, id); err != nil {
			return err
		}
		out, err = s.getTaskTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return Task{}, err
	}
	s.log.Info("task requeued", logx.String("task_id", id), logx.Int("priority", *out.Priority))
	return out, nil
}

func (s *sqlStore) NextPending(ctx context.Context) (Task, bool, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, s.q(`SELECT `+taskColumns+` FROM tasks
		WHERE state = ? ORDER BY priority DESC, created_at ASC, id ASC LIMIT 1`), string(StatePending)))
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, false, nil
	}
	if err != nil {
		return Task{}, false, &PersistenceError{Op: "next pending", Err: err}
	}
	return t, true, nil
}

func (s *sqlStore) HasInProgress(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM tasks WHERE state = ?`),
		string(StateInProgress)).Scan(&n); err != nil {
		return false, &PersistenceError{Op: "count in progress", Err: err}
	}
	return n > 0, nil
}

func (s *sqlStore) ClaimTask(ctx context.Context, id string) (Task, bool, error) {
	var (
		out     Task
		claimed bool
	)
	err := s.withTx(ctx, "claim task", func(tx *sql.Tx) error {
		cur, err := s.getTaskTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if cur.State != StatePending {
			out = cur
			return nil
		}
		now := s.nowNanos()
		if _, err := tx.ExecContext(ctx, s.q(`UPDATE tasks
			SET state = ?, priority = NULL, error_message = '', updated_at = ? WHERE id = ?`),
			string(StateInProgress), now, id); err != nil {
			return err
		}
		if _, err := s.compact(ctx, tx, now); err != nil {
			return err
		}
		cur.State = StateInProgress
		cur.Priority = nil
		cur.ErrorMessage = ""
		cur.UpdatedAt = fromNanos(now)
		out, claimed = cur, true
		return nil
	})
	if err != nil {
		return Task{}, false, err
	}
	return out, claimed, nil
}

func (s *sqlStore) CompleteTask(ctx context.Context, id string) error {
	return s.finish(ctx, "complete task", id, StateCompleted, "")
}

func (s *sqlStore) FailTask(ctx context.Context, id, message string) error {
	return s.finish(ctx, "fail task", id, StateFailed, message)
}

// finish moves an in-progress task to a terminal state.
func (s *sqlStore) finish(ctx context.Context, op, id string, state State, message string) error {
	return s.withTx(ctx, op, func(tx *sql.Tx) error {
		cur, err := s.getTaskTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if cur.State != StateInProgress {
			return invalid("state", "task %s is %s, not %s", id, cur.State, StateInProgress)
		}
		now := s.nowNanos()
		if _, err := tx.ExecContext(ctx, s.q(`UPDATE tasks
			SET state = ?, priority = NULL, error_message = ?, updated_at = ? WHERE id = ?`),
			string(state), message, now, id); err != nil {
			return err
		}
		_, err = s.compact(ctx, tx, now)
		return err
	})
}
