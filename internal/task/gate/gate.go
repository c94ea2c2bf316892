// Package gate decides, once per tick, whether the next pending task may run.
//
// A tick dispatches at most one task and never waits for it. Dispatch is
// refused while a task is IN_PROGRESS in the store or while a dispatched run
// is still queued in the engine, so at most one job is ever in flight.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"mediafetch/internal/eventbus"
	"mediafetch/internal/storage"
	"mediafetch/internal/task/engine"
	"mediafetch/internal/window"
	logx "mediafetch/pkg/logx"
)

type Decision string

const (
	NoWindow      Decision = "no_window"
	OutsideWindow Decision = "outside_window"
	Busy          Decision = "busy"
	Idle          Decision = "idle"
	Dispatched    Decision = "dispatched"
)

// JobName is the engine task name used for dispatched jobs.
const JobName = "job.run"

// Store is the part of storage.Store the gate reads.
type Store interface {
	CurrentWindow(ctx context.Context) (storage.Window, bool, error)
	HasInProgress(ctx context.Context) (bool, error)
	NextPending(ctx context.Context) (storage.Task, bool, error)
}

type Dispatcher interface {
	Enqueue(t engine.Task) error
}

// RunFunc executes one task by id.
type RunFunc func(ctx context.Context, taskID string) error

type Options struct {
	// Location is the zone the window is evaluated in. Nil uses time.Local.
	Location *time.Location
	// Now overrides the clock in tests.
	Now func() time.Time
	// JobTimeout bounds one job. Zero uses the engine default.
	JobTimeout time.Duration
}

// Outcome is published on the bus for every tick.
type Outcome struct {
	Decision Decision  `json:"decision"`
	TaskID   string    `json:"task_id,omitempty"`
	At       time.Time `json:"at"`
}

type Gate struct {
	store   Store
	engine  Dispatcher
	run     RunFunc
	log     logx.Logger
	bus     eventbus.Bus
	loc     atomic.Pointer[time.Location]
	now     func() time.Time
	timeout time.Duration

	// state is shared by every dispatch so a queued job blocks the next one.
	state *engine.RunState
}

func New(store Store, eng Dispatcher, run RunFunc, opts Options, log logx.Logger, bus eventbus.Bus) *Gate {
	if log.IsZero() {
		log = logx.Nop()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	g := &Gate{
		store:   store,
		engine:  eng,
		run:     run,
		log:     log.With(logx.String("comp", "gate")),
		bus:     bus,
		now:     opts.Now,
		timeout: opts.JobTimeout,
		state:   &engine.RunState{},
	}
	g.loc.Store(opts.Location)
	return g
}

// SetLocation changes the zone used for the window check. It is safe to call
// while ticks run.
func (g *Gate) SetLocation(loc *time.Location) {
	if loc != nil {
		g.loc.Store(loc)
	}
}

// Location returns the zone used for the window check.
func (g *Gate) Location() *time.Location { return g.loc.Load() }

// Running reports whether a dispatched job is queued or executing.
func (g *Gate) Running() bool { return g.state.Busy() }

// Tick runs one gate evaluation.
func (g *Gate) Tick(ctx context.Context) (Decision, error) {
	now := g.now().In(g.loc.Load())
	d, id, err := g.decide(ctx, now)
	if err != nil {
		g.log.Warn("gate tick failed", logx.Err(err))
		return d, err
	}
	if d == Dispatched {
		g.log.Info("task dispatched", logx.String("task", id))
	} else {
		g.log.Debug("gate decision", logx.String("decision", string(d)))
	}
	if g.bus != nil {
		g.bus.Publish(eventbus.Event{Type: eventbus.GateDecision, Time: now, Data: Outcome{Decision: d, TaskID: id, At: now}})
	}
	return d, nil
}

// TickJob adapts Tick to a scheduler job.
func (g *Gate) TickJob(ctx context.Context) error {
	_, err := g.Tick(ctx)
	return err
}

func (g *Gate) decide(ctx context.Context, now time.Time) (Decision, string, error) {
	w, ok, err := g.store.CurrentWindow(ctx)
	if err != nil {
		return "", "", fmt.Errorf("read window: %w", err)
	}
	if !ok {
		return NoWindow, "", nil
	}
	if !window.Contains(w.Start, w.End, window.At(now)) {
		return OutsideWindow, "", nil
	}

	if g.state.Busy() {
		return Busy, "", nil
	}
	busy, err := g.store.HasInProgress(ctx)
	if err != nil {
		return "", "", fmt.Errorf("check in-progress: %w", err)
	}
	if busy {
		return Busy, "", nil
	}

	t, ok, err := g.store.NextPending(ctx)
	if err != nil {
		return "", "", fmt.Errorf("select pending: %w", err)
	}
	if !ok {
		return Idle, "", nil
	}

	id := t.ID
	err = g.engine.Enqueue(engine.Task{
		Name:    JobName,
		Timeout: g.timeout,
		Run:     func(ctx context.Context) error { return g.run(ctx, id) },
		Opt:     engine.TaskOptions{Overlap: engine.OverlapSkipIfRunning},
		State:   g.state,
	})
	if errors.Is(err, engine.ErrOverlapSkip) {
		return Busy, "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("dispatch %s: %w", id, err)
	}
	return Dispatched, id, nil
}
