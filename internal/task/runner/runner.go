// Package runner executes a single task end to end: claim, fetch, save and
// record the terminal state.
package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"mediafetch/internal/eventbus"
	"mediafetch/internal/storage"
	"mediafetch/internal/strategy"
	logx "mediafetch/pkg/logx"
)

// Store is the part of storage.Store the runner writes.
type Store interface {
	ClaimTask(ctx context.Context, id string) (storage.Task, bool, error)
	CompleteTask(ctx context.Context, id string) error
	FailTask(ctx context.Context, id, message string) error
}

type Strategies interface {
	LookupDownload(name string) (strategy.FetchFunc, error)
	LookupSave(name string) (strategy.SaveFunc, error)
}

// JobEvent is published with eventbus.JobCompleted and eventbus.JobFailed.
type JobEvent struct {
	TaskID    string        `json:"task_id"`
	Catalogue string        `json:"catalogue"`
	Download  string        `json:"download_strategy"`
	Save      string        `json:"save_strategy"`
	Files     int           `json:"files"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// DiscardFunc removes whatever a fetch left on local disk.
type DiscardFunc func(paths []string) error

type Runner struct {
	store      Store
	strategies Strategies
	log        logx.Logger
	bus        eventbus.Bus
	discard    DiscardFunc
}

func New(store Store, strategies Strategies, log logx.Logger, bus eventbus.Bus) *Runner {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{store: store, strategies: strategies, log: log.With(logx.String("comp", "runner")), bus: bus}
}

// WithDiscard sets the cleanup run on fetched paths once the save step has
// returned, whether it succeeded or not.
func (r *Runner) WithDiscard(fn DiscardFunc) *Runner {
	r.discard = fn
	return r
}

// Run executes task id. A task that is missing or no longer pending is left
// alone. The returned error is the job failure already recorded on the task.
func (r *Runner) Run(ctx context.Context, id string) error {
	t, ok, err := r.store.ClaimTask(ctx, id)
	if err != nil {
		r.log.Warn("claim failed", logx.String("task", id), logx.Err(err))
		return nil
	}
	if !ok {
		r.log.Debug("task no longer pending", logx.String("task", id))
		return nil
	}

	start := time.Now()
	log := r.log.With(logx.String("task", t.ID), logx.String("catalogue", t.CatalogueName))
	log.Info("job started", logx.String("download", t.DownloadStrategy), logx.String("save", t.SaveStrategy), logx.Int("sources", len(t.Sources)))

	files, jobErr := r.execute(ctx, t)
	if jobErr == nil {
		if err := r.store.CompleteTask(ctx, t.ID); err != nil {
			jobErr = fmt.Errorf("Database error: %w", err)
		}
	}

	ev := JobEvent{
		TaskID:    t.ID,
		Catalogue: t.CatalogueName,
		Download:  t.DownloadStrategy,
		Save:      t.SaveStrategy,
		Files:     files,
		Duration:  time.Since(start),
	}
	if jobErr != nil {
		ev.Error = jobErr.Error()
		if err := r.store.FailTask(context.WithoutCancel(ctx), t.ID, ev.Error); err != nil {
			log.Error("failed to record job failure", logx.Err(err), logx.String("reason", ev.Error))
		}
		log.Warn("job failed", logx.String("reason", ev.Error), logx.Duration("dur", ev.Duration))
		r.publish(eventbus.JobFailed, ev)
		return jobErr
	}

	log.Info("job completed", logx.Int("files", files), logx.Duration("dur", ev.Duration))
	r.publish(eventbus.JobCompleted, ev)
	return nil
}

// execute runs the strategies. A panic inside a strategy is returned as an
// error so the task still reaches FAILED.
func (r *Runner) execute(ctx context.Context, t storage.Task) (files int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("job panic", logx.String("task", t.ID), logx.Any("panic", rec), logx.Stack(string(debug.Stack())))
			files, err = 0, fmt.Errorf("panic: %v", rec)
		}
	}()

	fetchFn, err := r.strategies.LookupDownload(t.DownloadStrategy)
	if err != nil {
		return 0, err
	}
	saveFn, err := r.strategies.LookupSave(t.SaveStrategy)
	if err != nil {
		return 0, err
	}
	if len(t.Sources) == 0 {
		return 0, &strategy.FetchError{Reason: "no sources"}
	}

	paths, err := fetchFn(ctx, t.Sources)
	if err != nil {
		var fe *strategy.FetchError
		if errors.As(err, &fe) {
			return 0, fe
		}
		return 0, &strategy.FetchError{Err: err}
	}
	if len(paths) == 0 {
		return 0, &strategy.FetchError{}
	}

	if r.discard != nil {
		defer func() {
			if derr := r.discard(paths); derr != nil {
				r.log.Warn("discard fetched files failed", logx.String("task", t.ID), logx.Err(derr))
			}
		}()
	}

	if err := saveFn(ctx, paths, t.CatalogueName); err != nil {
		var se *strategy.SaveError
		if errors.As(err, &se) {
			return 0, se
		}
		return 0, &strategy.SaveError{Err: err}
	}
	return len(paths), nil
}

func (r *Runner) publish(typ string, ev JobEvent) {
	if r.bus != nil {
		r.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: ev})
	}
}
