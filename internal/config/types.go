package config

type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Storage selects the task table. If omitted, sqlite at DATABASE_PATH or tasks.db.
	Storage *StorageConfig `json:"storage,omitempty"`

	// Scheduler controls how armed reminders fire.
	Scheduler SchedulerConfig `json:"scheduler"`

	// TaskEngine controls the worker pool that runs fires and housekeeping jobs.
	// If omitted, runtime defaults apply.
	TaskEngine *TaskEngineConfig `json:"task_engine,omitempty"`

	// Notifier controls remote delivery. If omitted, pushover with defaults
	// (and no credentials, so pushes are skipped).
	Notifier *NotifierConfig `json:"notifier,omitempty"`

	Quotes       QuotesConfig       `json:"quotes"`
	Housekeeping HousekeepingConfig `json:"housekeeping"`
	Systemd      SystemdConfig      `json:"systemd"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	JSON    bool        `json:"json,omitempty"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./tasks.db", "busy_timeout": "2s" }
type StorageConfig struct {
	Driver      string `json:"driver"` // sqlite | file | memory
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// SchedulerConfig controls reminder fires.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type SchedulerConfig struct {
	FireTimeout string `json:"fire_timeout,omitempty"`
	RetryDelay  string `json:"retry_delay,omitempty"`
	Fallback    string `json:"fallback,omitempty"`
}

// TaskEngineConfig controls the task execution engine.
//
// Enabled is a pointer so an omitted value defaults to true while an
// explicit false still disables execution.
//
// Defaults (when fields are omitted/zero):
//   - enabled: true
//   - workers: 2
//   - queue_size: 256
//   - default_timeout: "0s" (disabled)
//   - history_size: 200
type TaskEngineConfig struct {
	Enabled *bool `json:"enabled,omitempty"`
	Workers int   `json:"workers,omitempty"`

	QueueSize int `json:"queue_size,omitempty"`

	// DefaultTimeout is a Go duration string. Use "0s" to disable.
	DefaultTimeout string `json:"default_timeout,omitempty"`

	HistorySize int `json:"history_size,omitempty"`
}

// NotifierConfig controls remote delivery of reminders.
//
// Enabled is a pointer so a section that omits it stays enabled.
//
// Secrets (pushover.api_token, pushover.user_key, telegram.token) may be
// left empty here and supplied through the environment instead.
type NotifierConfig struct {
	Enabled       *bool  `json:"enabled,omitempty"`
	Driver        string `json:"driver,omitempty"` // pushover | telegram | log
	Timeout       string `json:"timeout,omitempty"`
	RatePerSec    int    `json:"rate_per_sec,omitempty"`
	RetryMax      int    `json:"retry_max,omitempty"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`
	Title         string `json:"title,omitempty"`
	HistorySize   int    `json:"history_size,omitempty"`

	Pushover   PushoverConfig   `json:"pushover"`
	Telegram   TelegramConfig   `json:"telegram"`
	QuietHours QuietHoursConfig `json:"quiet_hours"`
}

type PushoverConfig struct {
	APIToken string `json:"api_token,omitempty"`
	UserKey  string `json:"user_key,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
}

type TelegramConfig struct {
	Token    string `json:"token,omitempty"`
	ChatID   int64  `json:"chat_id,omitempty"`
	ThreadID int    `json:"thread_id,omitempty"`
}

// QuietHoursConfig is a local-time "HH:MM" window in which pushes are
// held back. The window may wrap midnight.
type QuietHoursConfig struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start,omitempty"`
	End     string `json:"end,omitempty"`
}

type QuotesConfig struct {
	File      string `json:"file,omitempty"`
	StatePath string `json:"state_path,omitempty"`
	History   int    `json:"history,omitempty"`
}

// HousekeepingConfig controls internal maintenance jobs.
type HousekeepingConfig struct {
	Enabled  bool   `json:"enabled"`
	Timezone string `json:"timezone,omitempty"`
	// Reconcile is the schedule for re-syncing armed jobs with storage
	// ("cron:*/5 * * * *", "every:1m", "@hourly", "03:00" ...).
	Reconcile string `json:"reconcile,omitempty"`
}

type SystemdConfig struct {
	// Notify sends READY/STOPPING and watchdog pings when running under systemd.
	Notify bool `json:"notify"`
	// Unit is the service name used by "mindset service status|restart".
	Unit string `json:"unit,omitempty"`
}
