package storage

import (
	"context"
	"database/sql"
	"time"

	logx "mediafetch/pkg/logx"
)

type sqlStore struct {
	db  *sql.DB
	d   dialect
	log logx.Logger
	now func() time.Time

	rejectEmptySources bool
	strategyCheck      func(download, save string) error
}

func newSQLStore(db *sql.DB, d dialect, cfg Config, log logx.Logger) *sqlStore {
	if log.IsZero() {
		log = logx.Nop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &sqlStore{
		db:                 db,
		d:                  d,
		log:                log.With(logx.String("comp", "storage")),
		now:                now,
		rejectEmptySources: cfg.RejectEmptySources,
		strategyCheck:      cfg.StrategyCheck,
	}
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// q rebinds placeholders for the active dialect.
func (s *sqlStore) q(query string) string { return s.d.rebind(query) }

// withTx runs fn in a transaction holding the pending-set lock. Any error
// rolls the whole transaction back.
func (s *sqlStore) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &PersistenceError{Op: op, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	if s.d.lockStmt != "" {
		if _, err := tx.ExecContext(ctx, s.d.lockStmt); err != nil {
			return &PersistenceError{Op: op, Err: err}
		}
	}
	if err := fn(tx); err != nil {
		return wrapPersist(op, err)
	}
	if err := tx.Commit(); err != nil {
		return &PersistenceError{Op: op, Err: err}
	}
	return nil
}

func (s *sqlStore) nowNanos() int64 { return s.now().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

type rowScanner interface {
	Scan(dest ...any) error
}

const taskColumns = "id, sources, download_strategy, save_strategy, catalogue_name, state, priority, error_message, created_at, updated_at"

func scanTask(r rowScanner) (Task, error) {
	var (
		t                Task
		sources, state   string
		prio             sql.NullInt64
		created, updated int64
	)
	if err := r.Scan(&t.ID, &sources, &t.DownloadStrategy, &t.SaveStrategy, &t.CatalogueName,
		&state, &prio, &t.ErrorMessage, &created, &updated); err != nil {
		return Task{}, err
	}
	t.Sources = decodeSources(sources)
	t.State = State(state)
	if prio.Valid {
		p := int(prio.Int64)
		t.Priority = &p
	}
	t.CreatedAt = fromNanos(created)
	t.UpdatedAt = fromNanos(updated)
	return t, nil
}
