package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Logging    LoggingConfig     `json:"logging"`
	Scheduler  SchedulerConfig   `json:"scheduler"`
	TaskEngine *TaskEngineConfig `json:"task_engine,omitempty"`
	Storage    StorageConfig     `json:"storage"`
	Tasks      TasksConfig       `json:"tasks"`
	Fetch      FetchConfig       `json:"fetch"`
	Sinks      SinksConfig       `json:"sinks"`
	HTTP       HTTPConfig        `json:"http"`
	Telegram   TelegramConfig    `json:"telegram"`
	Metrics    MetricsConfig     `json:"metrics"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	Chat    LoggingChat `json:"chat"`
}

// LoggingFile is the execution log. GET /api/logs tails it.
type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"` // default: logs/download-progress.log
}

// LoggingChat forwards WARN+ lines to telegram.chat_id.
type LoggingChat struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// SchedulerConfig controls the gate tick.
type SchedulerConfig struct {
	Enabled bool `json:"enabled"`

	// Tick is a cron spec; default "* * * * *" (once per minute).
	Tick string `json:"tick,omitempty"`

	// Timezone is the IANA zone used both for the tick and for the window check.
	Timezone string `json:"timezone,omitempty"`
}

// TaskEngineConfig controls the job worker pool.
//
// Enabled is a pointer so we can distinguish "omitted" (default to scheduler.enabled)
// from an explicit false.
//
// Defaults (when fields are omitted/zero):
//   - workers: 1
//   - queue_size: 16
//   - default_timeout: "0s" (disabled)
//   - history_size: 200
type TaskEngineConfig struct {
	Enabled        *bool  `json:"enabled,omitempty"`
	Workers        int    `json:"workers,omitempty"`
	QueueSize      int    `json:"queue_size,omitempty"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
	MaxQueueDelay  string `json:"max_queue_delay,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
}

// StorageConfig selects the task store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/mediafetch.db" }
//	"storage": { "driver": "postgres", "dsn": "postgres://u:p@localhost/mediafetch?sslmode=disable" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
}

type TasksConfig struct {
	// RejectEmptySources makes task creation fail when no source URL is given.
	// When false such tasks are accepted and fail at fetch time.
	RejectEmptySources bool `json:"reject_empty_sources"`
	// JobTimeout bounds one task run, fetch and save together. Empty or "0s"
	// falls back to task_engine.default_timeout.
	JobTimeout string `json:"job_timeout,omitempty"`
}

// FetchConfig controls how yt-dlp is invoked.
type FetchConfig struct {
	Runner  string `json:"runner,omitempty"` // "exec" (default) | "docker"
	Binary  string `json:"binary,omitempty"` // default: yt-dlp
	TempDir string `json:"temp_dir,omitempty"`
	Timeout string `json:"timeout,omitempty"`

	// Docker runner.
	Image   string `json:"image,omitempty"`
	Network string `json:"network,omitempty"`
}

type SinksConfig struct {
	CataloguePrefix string            `json:"catalogue_prefix,omitempty"`
	Local           LocalSinkConfig   `json:"local"`
	ObjectStore     ObjectStoreConfig `json:"object_store"`
}

type LocalSinkConfig struct {
	Root string `json:"root"`
}

// ObjectStoreConfig is an S3-compatible endpoint. Secrets are usually provided
// through the environment (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, ...).
type ObjectStoreConfig struct {
	Endpoint     string `json:"endpoint,omitempty"` // default: s3.amazonaws.com
	Region       string `json:"region,omitempty"`   // default: us-east-1
	Bucket       string `json:"bucket,omitempty"`
	AccessKey    string `json:"access_key,omitempty"`
	SecretKey    string `json:"secret_key,omitempty"`
	SessionToken string `json:"session_token,omitempty"`
	UseSSL       *bool  `json:"use_ssl,omitempty"`
	Insecure     bool   `json:"insecure,omitempty"` // accept self-signed certificates
}

// HTTPConfig controls the management API.
//
// Security note:
//   - Prefer binding to localhost (default "127.0.0.1:8080").
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
type HTTPConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	RatePerSec    int    `json:"rate_per_sec,omitempty"`
	Burst         int    `json:"burst,omitempty"`

	ReadTimeout string `json:"read_timeout,omitempty"`
	IdleTimeout string `json:"idle_timeout,omitempty"`

	// Pprof mounts net/http/pprof under /debug/pprof/ (behind the same token).
	Pprof bool `json:"pprof,omitempty"`
}

type TelegramConfig struct {
	Token    string `json:"token,omitempty"`
	ChatID   int64  `json:"chat_id,omitempty"`
	ThreadID int    `json:"thread_id,omitempty"`
	// Notify sends a message when a task completes or fails.
	Notify bool `json:"notify"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Exporter string `json:"exporter,omitempty"` // "prometheus" (default) | "stdout"
	Interval string `json:"interval,omitempty"` // stdout export interval
}
