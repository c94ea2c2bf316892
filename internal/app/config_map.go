package app

import (
	"fmt"
	"strings"
	"time"

	"mediafetch/internal/config"
	"mediafetch/internal/fetch"
	"mediafetch/internal/notifier"
	"mediafetch/internal/observability/metrics"
	"mediafetch/internal/sink"
	"mediafetch/internal/storage"
	"mediafetch/internal/task/engine"
	"mediafetch/internal/task/scheduler"
	"mediafetch/internal/transport/httpapi"
	logx "mediafetch/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    cfg.Logging.Chat.Enabled,
			ChatID:     cfg.Telegram.ChatID,
			ThreadID:   cfg.Logging.Chat.ThreadID,
			MinLevel:   cfg.Logging.Chat.MinLevel,
			RatePerSec: cfg.Logging.Chat.RatePerSec,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, 5*time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:             strings.ToLower(strings.TrimSpace(sc.Driver)),
		Path:               strings.TrimSpace(sc.Path),
		DSN:                strings.TrimSpace(sc.DSN),
		BusyTimeout:        busy,
		RejectEmptySources: cfg.Tasks.RejectEmptySources,
	}, nil
}

// mapTaskEngineConfig applies engine defaults: one worker, a short queue and
// no default timeout. An omitted enabled flag follows scheduler.enabled.
func mapTaskEngineConfig(cfg *config.Config) (engine.Config, error) {
	enabled := cfg.Scheduler.Enabled
	workers, queueSize, historySize := 1, 16, 200
	var defTimeoutStr, maxQueueDelayStr string

	if te := cfg.TaskEngine; te != nil {
		if te.Enabled != nil {
			enabled = *te.Enabled
		}
		if te.Workers != 0 {
			workers = te.Workers
		}
		if te.QueueSize != 0 {
			queueSize = te.QueueSize
		}
		if te.HistorySize != 0 {
			historySize = te.HistorySize
		}
		defTimeoutStr = te.DefaultTimeout
		maxQueueDelayStr = te.MaxQueueDelay

		if cfg.Scheduler.Enabled && te.Enabled != nil && !*te.Enabled {
			return engine.Config{}, fmt.Errorf("task_engine.enabled cannot be false while scheduler.enabled is true")
		}
	}
	if workers <= 0 || queueSize <= 0 || historySize < 0 {
		return engine.Config{}, fmt.Errorf("task_engine: workers and queue_size must be > 0")
	}

	defTimeout, err := config.ParseDurationField("task_engine.default_timeout", defTimeoutStr)
	if err != nil {
		return engine.Config{}, err
	}
	maxQueueDelay, err := config.ParseDurationField("task_engine.max_queue_delay", maxQueueDelayStr)
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		Enabled:        enabled,
		Workers:        workers,
		QueueSize:      queueSize,
		DefaultTimeout: defTimeout,
		MaxQueueDelay:  maxQueueDelay,
		HistorySize:    historySize,
	}, nil
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Enabled:  cfg.Scheduler.Enabled,
		Timezone: strings.TrimSpace(cfg.Scheduler.Timezone),
	}
}

// tickSpec returns the gate tick as a cron spec.
func tickSpec(cfg *config.Config) (string, error) {
	raw := strings.TrimSpace(cfg.Scheduler.Tick)
	if raw == "" {
		return scheduler.DefaultTick, nil
	}
	ps, err := scheduler.ParseSchedule(raw)
	if err != nil {
		return "", fmt.Errorf("scheduler.tick: %w", err)
	}
	if ps.Kind == scheduler.SpecInterval {
		return "@every " + ps.Every.String(), nil
	}
	return ps.Cron, nil
}

func mapHTTPConfig(cfg *config.Config) (httpapi.Config, error) {
	hc := cfg.HTTP
	readTimeout, err := config.ParseDurationOrDefault("http.read_timeout", hc.ReadTimeout, 10*time.Second)
	if err != nil {
		return httpapi.Config{}, err
	}
	idleTimeout, err := config.ParseDurationOrDefault("http.idle_timeout", hc.IdleTimeout, 60*time.Second)
	if err != nil {
		return httpapi.Config{}, err
	}
	return httpapi.Config{
		Enabled:       hc.Enabled,
		Addr:          strings.TrimSpace(hc.Addr),
		Token:         strings.TrimSpace(hc.Token),
		AllowInsecure: hc.AllowInsecure,
		RatePerSec:    hc.RatePerSec,
		Burst:         hc.Burst,
		ReadTimeout:   readTimeout,
		IdleTimeout:   idleTimeout,
		Pprof:         hc.Pprof,
	}, nil
}

func mapNotifierConfig(cfg *config.Config) notifier.Config {
	tc := cfg.Telegram
	return notifier.Config{
		Enabled:       tc.Notify && strings.TrimSpace(tc.Token) != "" && tc.ChatID != 0,
		ChatID:        tc.ChatID,
		ThreadID:      tc.ThreadID,
		Workers:       1,
		QueueSize:     64,
		RatePerSec:    1,
		RetryMax:      3,
		RetryBase:     time.Second,
		RetryMaxDelay: 30 * time.Second,
		DedupWindow:   time.Minute,
	}
}

func mapMetricsOptions(cfg *config.Config) (metrics.Options, error) {
	interval, err := config.ParseDurationOrDefault("metrics.interval", cfg.Metrics.Interval, time.Minute)
	if err != nil {
		return metrics.Options{}, err
	}
	return metrics.Options{
		Exporter: strings.ToLower(strings.TrimSpace(cfg.Metrics.Exporter)),
		Interval: interval,
	}, nil
}

func mapJobTimeout(cfg *config.Config) (time.Duration, error) {
	return config.ParseDurationField("tasks.job_timeout", cfg.Tasks.JobTimeout)
}

func mapFetchOptions(cfg *config.Config) (fetch.Options, error) {
	timeout, err := config.ParseDurationField("fetch.timeout", cfg.Fetch.Timeout)
	if err != nil {
		return fetch.Options{}, err
	}
	return fetch.Options{TempDir: strings.TrimSpace(cfg.Fetch.TempDir), Timeout: timeout}, nil
}

func mapObjectStoreConfig(cfg *config.Config) sink.ObjectStoreConfig {
	oc := cfg.Sinks.ObjectStore
	useSSL := true
	if oc.UseSSL != nil {
		useSSL = *oc.UseSSL
	}
	return sink.ObjectStoreConfig{
		Endpoint:     strings.TrimSpace(oc.Endpoint),
		Region:       strings.TrimSpace(oc.Region),
		Bucket:       strings.TrimSpace(oc.Bucket),
		AccessKey:    oc.AccessKey,
		SecretKey:    oc.SecretKey,
		SessionToken: oc.SessionToken,
		UseSSL:       useSSL,
		Insecure:     oc.Insecure,
		Prefix:       cfg.Sinks.CataloguePrefix,
	}
}
