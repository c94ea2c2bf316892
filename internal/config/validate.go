package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	logx "mediafetch/pkg/logx"
)

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// Validate checks the parts of cfg that can be verified without side effects.
// All problems are reported together.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if !logx.ValidLevel(cfg.Logging.Level) {
		add(fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}
	if cfg.Logging.Chat.Enabled && cfg.Telegram.ChatID == 0 {
		add(errors.New("logging.chat: telegram.chat_id is required"))
	}

	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			add(fmt.Errorf("scheduler.timezone: %w", err))
		}
	}

	if te := cfg.TaskEngine; te != nil {
		if te.Workers < 0 || te.QueueSize < 0 || te.HistorySize < 0 {
			add(errors.New("task_engine: workers, queue_size and history_size must be >= 0"))
		}
		_, err := ParseDurationField("task_engine.default_timeout", te.DefaultTimeout)
		add(err)
		_, err = ParseDurationField("task_engine.max_queue_delay", te.MaxQueueDelay)
		add(err)
	}

	switch d := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)); d {
	case "sqlite":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			add(errors.New("storage.path is required for sqlite"))
		}
	case "postgres":
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			add(errors.New("storage.dsn is required for postgres"))
		}
	default:
		add(fmt.Errorf("storage.driver: unsupported driver %q (use sqlite or postgres)", d))
	}
	_, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	add(err)

	switch r := strings.ToLower(strings.TrimSpace(cfg.Fetch.Runner)); r {
	case "", "exec":
	case "docker":
		if strings.TrimSpace(cfg.Fetch.Image) == "" {
			add(errors.New("fetch.image is required for the docker runner"))
		}
	default:
		add(fmt.Errorf("fetch.runner: unsupported runner %q (use exec or docker)", r))
	}
	_, err = ParseDurationField("fetch.timeout", cfg.Fetch.Timeout)
	add(err)

	_, err = ParseDurationField("http.read_timeout", cfg.HTTP.ReadTimeout)
	add(err)
	_, err = ParseDurationField("http.idle_timeout", cfg.HTTP.IdleTimeout)
	add(err)
	if cfg.HTTP.RatePerSec < 0 || cfg.HTTP.Burst < 0 {
		add(errors.New("http.rate_per_sec and http.burst must be >= 0"))
	}

	if cfg.Telegram.Notify && (strings.TrimSpace(cfg.Telegram.Token) == "" || cfg.Telegram.ChatID == 0) {
		add(errors.New("telegram.notify requires telegram.token and telegram.chat_id"))
	}

	switch e := strings.ToLower(strings.TrimSpace(cfg.Metrics.Exporter)); e {
	case "", "prometheus", "stdout":
	default:
		add(fmt.Errorf("metrics.exporter: unsupported exporter %q", e))
	}
	_, err = ParseDurationField("metrics.interval", cfg.Metrics.Interval)
	add(err)

	return errors.Join(errs...)
}
