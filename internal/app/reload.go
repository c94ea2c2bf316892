package app

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"mediafetch/internal/config"
	logx "mediafetch/pkg/logx"
)

// restartSections cannot be applied to a running process.
var restartSections = []string{"storage", "tasks", "fetch", "metrics"}

// validateReload rejects configs that Start would reject.
func validateReload(cfg *config.Config) error {
	var errs []error
	errs = append(errs, config.Validate(cfg))
	_, err := mapTaskEngineConfig(cfg)
	errs = append(errs, err)
	_, err = tickSpec(cfg)
	errs = append(errs, err)
	_, err = mapHTTPConfig(cfg)
	errs = append(errs, err)
	_, err = mapJobTimeout(cfg)
	errs = append(errs, err)
	return errors.Join(errs...)
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	defer a.cfgm.Unsubscribe(sub)
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			a.applyConfig(ctx, lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	for _, s := range sections {
		if slices.Contains(restartSections, s) {
			a.log.Warn("config section changed; restart required for it to take effect", logx.String("section", s))
		}
	}

	if slices.Contains(sections, "logging") || slices.Contains(sections, "telegram") {
		a.logs.Apply(mapLoggingConfig(next))
	}

	if slices.Contains(sections, "sinks") {
		registerSaves(a.registry, next, a.log)
	}

	if engCfg, err := mapTaskEngineConfig(next); err != nil {
		a.log.Warn("invalid task_engine config; keeping previous", logx.Err(err))
	} else {
		a.engine.Apply(ctx, engCfg)
	}

	if slices.Contains(sections, "scheduler") {
		a.sched.Apply(ctx, mapSchedulerConfig(next))
		a.gate.SetLocation(a.sched.Location())
		if tick, err := tickSpec(next); err != nil {
			a.log.Warn("invalid scheduler.tick; keeping previous", logx.Err(err))
		} else if tick != a.tick {
			if err := a.sched.AddCron(tickName, tick, 0, a.gate.TickJob); err != nil {
				a.log.Warn("tick reschedule failed", logx.Err(err))
			} else {
				a.tick = tick
			}
		}
	}

	if slices.Contains(sections, "telegram") {
		wasEnabled := a.notif.Enabled()
		ncfg := mapNotifierConfig(next)
		a.notif.Apply(ncfg)
		switch {
		case wasEnabled && !ncfg.Enabled:
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.notif.Stop(stopCtx)
			cancel()
		case !wasEnabled && ncfg.Enabled:
			a.notif.Start(ctx)
		}
	}

	if slices.Contains(sections, "http") {
		if hc, err := mapHTTPConfig(next); err != nil {
			a.log.Warn("invalid http config; keeping previous", logx.Err(err))
		} else {
			a.http.Reconfigure(ctx, hc)
		}
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}
