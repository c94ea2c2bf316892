package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"mediafetch/internal/config"
	"mediafetch/internal/eventbus"
	"mediafetch/internal/fetch"
	"mediafetch/internal/logtail"
	"mediafetch/internal/notifier"
	"mediafetch/internal/observability/metrics"
	"mediafetch/internal/runtime/supervisor"
	"mediafetch/internal/storage"
	"mediafetch/internal/strategy"
	"mediafetch/internal/task/engine"
	"mediafetch/internal/task/gate"
	"mediafetch/internal/task/runner"
	"mediafetch/internal/task/scheduler"
	"mediafetch/internal/transport/httpapi"
	"mediafetch/internal/transport/telegram"
	logx "mediafetch/pkg/logx"
)

// tickName is the scheduler entry that drives the gate.
const tickName = "gate.tick"

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store       storage.Store
	registry    *strategy.Registry
	closeRunner func() error

	engine  *engine.Service
	sched   *scheduler.Service
	gate    *gate.Gate
	notif   *notifier.Service
	metrics *metrics.Provider
	http    *httpapi.Service

	tick string
}

// New loads the config at cfgPath and builds every component. Nothing runs
// until Start.
func New(cfgPath string) (*App, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return build(cfgm, cfg)
}

func build(cfgm *config.ConfigManager, cfg *config.Config) (*App, error) {
	engCfg, err := mapTaskEngineConfig(cfg)
	if err != nil {
		return nil, err
	}
	tick, err := tickSpec(cfg)
	if err != nil {
		return nil, err
	}
	httpCfg, err := mapHTTPConfig(cfg)
	if err != nil {
		return nil, err
	}
	storeCfg, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	fetchOpts, err := mapFetchOptions(cfg)
	if err != nil {
		return nil, err
	}
	jobTimeout, err := mapJobTimeout(cfg)
	if err != nil {
		return nil, err
	}
	metricsOpts, err := mapMetricsOptions(cfg)
	if err != nil {
		return nil, err
	}

	// The chat sink and the notifier share one bot.
	var (
		logSender   logx.Sender
		notifSender notifier.Sender
	)
	if cfg.Telegram.Token != "" {
		tg, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token, Timeout: 15 * time.Second}, logx.NewConsole("INFO"))
		if err != nil {
			return nil, err
		}
		logSender, notifSender = tg, tg
	}
	logSvc, log := logx.New(mapLoggingConfig(cfg), logSender)
	appLog := log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	registry := strategy.New()
	fr, closeRunner, err := newFetchRunner(cfg, log)
	if err != nil {
		return nil, err
	}
	registerDownloads(registry, fetch.NewDownloader(fr, fetchOpts, log))
	registerSaves(registry, cfg, log)

	storeCfg.StrategyCheck = registry.Validate
	store, err := storage.Open(storeCfg, log)
	if err != nil {
		_ = closeRunner()
		return nil, err
	}
	appLog.Info("storage opened", logx.String("driver", storeCfg.Driver))
	// A crash between writes can leave gaps or stray priorities behind.
	repaired, err := store.Compact(context.Background())
	if err != nil {
		_ = store.Close()
		_ = closeRunner()
		return nil, err
	}
	if repaired > 0 {
		appLog.Warn("task priorities repaired", logx.Int("writes", repaired))
	}

	eng := engine.New(engCfg, log, bus)
	jobs := runner.New(store, registry, log, bus).WithDiscard(fetch.Discard)
	sched := scheduler.New(mapSchedulerConfig(cfg), eng, log)
	g := gate.New(store, eng, jobs.Run, gate.Options{Location: sched.Location(), JobTimeout: jobTimeout}, log, bus)
	if err := sched.AddCron(tickName, tick, 0, g.TickJob); err != nil {
		_ = store.Close()
		_ = closeRunner()
		return nil, err
	}

	notif := notifier.New(mapNotifierConfig(cfg), notifSender, log, bus)

	var (
		mp         *metrics.Provider
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		metricsOpts.Engine = eng.Snapshot
		if mp, err = metrics.Init(metricsOpts, log); err != nil {
			_ = store.Close()
			_ = closeRunner()
			return nil, err
		}
		metricsHandler = mp.Handler()
	}

	api := httpapi.New(httpCfg, httpapi.Deps{
		Store:      store,
		Strategies: registry,
		Engine:     eng.Snapshot,
		Scheduler:  sched.Snapshot,
		JobActive:  g.Running,
		ReadLogs: func(n int) ([]string, error) {
			path := logSvc.FilePath()
			if path == "" {
				return []string{}, nil
			}
			return logtail.Read(path, n)
		},
		Metrics: metricsHandler,
		Ping: func(ctx context.Context) error {
			_, err := store.HasInProgress(ctx)
			return err
		},
	}, log)

	return &App{
		cfgm:        cfgm,
		log:         appLog,
		logs:        logSvc,
		bus:         bus,
		store:       store,
		registry:    registry,
		closeRunner: closeRunner,
		engine:      eng,
		sched:       sched,
		gate:        g,
		notif:       notif,
		metrics:     mp,
		http:        api,
		tick:        tick,
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	runCtx := a.sup.Context()

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validateReload(cfg)
	})

	if a.notif.Enabled() {
		a.notif.Start(runCtx)
	}
	a.sup.Go0("notifier.jobs", func(c context.Context) { _ = a.notif.Run(c, a.bus) })

	if a.engine.Enabled() {
		a.engine.Start(runCtx)
	}
	a.sched.Start(runCtx)

	a.sup.Go0("events.record", func(c context.Context) { recordJobEvents(c, a.bus, a.store, a.log) })
	if a.metrics != nil {
		a.sup.Go("metrics.record", func(c context.Context) error { return a.metrics.Run(c, a.bus) })
	}
	a.http.Start(runCtx)

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				// Debug only: the gate publishes every minute.
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) { a.reloadLoop(c, sub) })
	a.sup.Go("config.watch", func(c context.Context) error { return a.cfgm.Watch(c) })

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify ready failed", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify ready sent")
	}
	a.log.Info("app started", logx.String("tick", a.tick), logx.Bool("scheduler", a.sched.Enabled()))
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	a.sup.Cancel()

	// The scheduler goes first so no tick lands on a stopping engine.
	a.step(ctx, "scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	a.step(ctx, "http", 2*time.Second, func(c context.Context) error { a.http.Stop(c); return nil })
	a.step(ctx, "taskengine", 5*time.Second, func(c context.Context) error { a.engine.Stop(c); return nil })
	a.step(ctx, "notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	a.step(ctx, "metrics", 1*time.Second, func(c context.Context) error { return a.metrics.Shutdown(c) })
	a.step(ctx, "fetch", 1*time.Second, func(context.Context) error { return a.closeRunner() })
	a.step(ctx, "storage", 1*time.Second, func(context.Context) error { return a.store.Close() })
	a.step(ctx, "supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// step runs one shutdown step bounded by max so one component cannot stall
// the whole stop.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem < max {
			max = rem
		}
	}
	if max <= 0 {
		a.log.Warn("stop step skipped (deadline reached)", logx.String("name", name))
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
	}
}
