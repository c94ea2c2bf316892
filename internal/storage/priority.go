package storage

import (
	"context"
	"database/sql"

	logx "mediafetch/pkg/logx"
)

// Priority maintenance. Every function here expects to run inside withTx so
// the pending set cannot change underneath it.

// clampPriority maps a requested slot onto [1, max+1]. A request at or
// above the current maximum appends.
func clampPriority(requested, top int) int {
	if requested < 1 {
		return 1
	}
	if requested >= top {
		return top + 1
	}
	return requested
}

// cleanupStale clears priorities left on tasks that are no longer pending.
func (s *sqlStore) cleanupStale(ctx context.Context, tx *sql.Tx, now int64) (int64, error) {
	res, err := tx.ExecContext(ctx, s.q(
		`UPDATE tasks SET priority = NULL, updated_at = ? WHERE state <> ? AND priority IS NOT NULL`),
		now, string(StatePending))
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// maxPending returns the highest pending priority, ignoring excludeID.
func (s *sqlStore) maxPending(ctx context.Context, tx *sql.Tx, excludeID string) (int, error) {
	var top int
	err := tx.QueryRowContext(ctx, s.q(
		`SELECT COALESCE(MAX(priority), 0) FROM tasks WHERE state = ? AND id <> ?`),
		string(StatePending), excludeID).Scan(&top)
	return top, err
}

// compact renumbers pending tasks to 1..N in their current order, writing
// only rows whose priority changes.
func (s *sqlStore) compact(ctx context.Context, tx *sql.Tx, now int64) (int, error) {
	rows, err := tx.QueryContext(ctx, s.q(
		`SELECT id, priority FROM tasks WHERE state = ?
		 ORDER BY (priority IS NULL), priority, created_at, id`+s.d.forUpdate),
		string(StatePending))
	if err != nil {
		return 0, err
	}
	type slot struct {
		id   string
		prio sql.NullInt64
	}
	var pending []slot
	for rows.Next() {
		var sl slot
		if err := rows.Scan(&sl.id, &sl.prio); err != nil {
			_ = rows.Close()
			return 0, err
		}
		pending = append(pending, sl)
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	writes := 0
	for i, sl := range pending {
		want := int64(i + 1)
		if sl.prio.Valid && sl.prio.Int64 == want {
			continue
		}
		if _, err := tx.ExecContext(ctx, s.q(`UPDATE tasks SET priority = ?, updated_at = ? WHERE id = ?`),
			want, now, sl.id); err != nil {
			return writes, err
		}
		writes++
	}
	return writes, nil
}

// detach closes the gap a pending task leaves at its current slot, so the
// other pending tasks are dense without it. The task keeps its old value
// until placeAt overwrites it.
func (s *sqlStore) detach(ctx context.Context, tx *sql.Tx, id string, current int, now int64) error {
	_, err := tx.ExecContext(ctx, s.q(
		`UPDATE tasks SET priority = priority - 1, updated_at = ?
		 WHERE state = ? AND priority > ? AND id <> ?`),
		now, string(StatePending), current, id)
	return err
}

// placeAt moves pending task id to the requested slot, shifting every other
// pending task at or above that slot up by one when the slot is taken.
func (s *sqlStore) placeAt(ctx context.Context, tx *sql.Tx, id string, requested int, now int64) (int, error) {
	top, err := s.maxPending(ctx, tx, id)
	if err != nil {
		return 0, err
	}
	p := clampPriority(requested, top)

	var taken int
	if err := tx.QueryRowContext(ctx, s.q(
		`SELECT COUNT(*) FROM tasks WHERE state = ? AND priority = ? AND id <> ?`),
		string(StatePending), p, id).Scan(&taken); err != nil {
		return 0, err
	}
	if taken > 0 {
		if _, err := tx.ExecContext(ctx, s.q(
			`UPDATE tasks SET priority = priority + 1, updated_at = ?
			 WHERE state = ? AND priority >= ? AND id <> ?`),
			now, string(StatePending), p, id); err != nil {
			return 0, err
		}
	}
	if _, err := tx.ExecContext(ctx, s.q(`UPDATE tasks SET priority = ?, updated_at = ? WHERE id = ?`),
		p, now, id); err != nil {
		return 0, err
	}
	return p, nil
}

func (s *sqlStore) Compact(ctx context.Context) (int, error) {
	var writes int
	err := s.withTx(ctx, "compact priorities", func(tx *sql.Tx) error {
		now := s.nowNanos()
		stale, err := s.cleanupStale(ctx, tx, now)
		if err != nil {
			return err
		}
		n, err := s.compact(ctx, tx, now)
		if err != nil {
			return err
		}
		writes = int(stale) + n
		return nil
	})
	if err == nil && writes > 0 {
		s.log.Debug("priorities compacted", logx.Int("writes", writes))
	}
	return writes, err
}
