package app

import (
	"fmt"
	"strings"
	"time"

	"mindset/internal/housekeeping"
	"mindset/internal/notifier"
	"mindset/internal/quotes"
	"mindset/internal/storage"
	"mindset/internal/task/engine"
	"mindset/internal/task/scheduler"
	logx "mindset/pkg/logx"
)

func mapLoggingConfig(cfg *Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		JSON:    cfg.Logging.JSON,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

// mapStorageConfig defaults to sqlite; storage.Open fills the path from
// DATABASE_PATH or storage.DefaultPath when it is empty.
func mapStorageConfig(cfg *Config) (storage.Config, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{Driver: "sqlite"}, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "", "sqlite", "sqlite3":
		busy, err := parseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, nil
	case "file":
		return storage.Config{Driver: "file", Path: path}, nil
	case "memory":
		return storage.Config{Driver: "memory"}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapTaskEngineConfig(cfg *Config) (engine.Config, error) {
	out := engine.Config{Enabled: true, Workers: 2, QueueSize: 256, HistorySize: 200}
	if cfg == nil || cfg.TaskEngine == nil {
		return out, nil
	}
	te := cfg.TaskEngine
	if te.Enabled != nil {
		out.Enabled = *te.Enabled
	}
	if te.Workers < 0 {
		return engine.Config{}, fmt.Errorf("task_engine.workers must be >= 0")
	}
	if te.QueueSize < 0 {
		return engine.Config{}, fmt.Errorf("task_engine.queue_size must be >= 0")
	}
	if te.HistorySize < 0 {
		return engine.Config{}, fmt.Errorf("task_engine.history_size must be >= 0")
	}
	if te.Workers != 0 {
		out.Workers = te.Workers
	}
	if te.QueueSize != 0 {
		out.QueueSize = te.QueueSize
	}
	if te.HistorySize != 0 {
		out.HistorySize = te.HistorySize
	}
	d, err := parseDurationField("task_engine.default_timeout", te.DefaultTimeout)
	if err != nil {
		return engine.Config{}, err
	}
	out.DefaultTimeout = d
	return out, nil
}

func mapSchedulerConfig(cfg *Config) (scheduler.Config, error) {
	fire, err := parseDurationOrDefault("scheduler.fire_timeout", cfg.Scheduler.FireTimeout, scheduler.DefaultFireTimeout)
	if err != nil {
		return scheduler.Config{}, err
	}
	retry, err := parseDurationOrDefault("scheduler.retry_delay", cfg.Scheduler.RetryDelay, scheduler.DefaultRetryDelay)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		FireTimeout: fire,
		RetryDelay:  retry,
		Fallback:    strings.TrimSpace(cfg.Scheduler.Fallback),
	}, nil
}

// mapNotifierConfig returns the delivery policy and the driver settings.
// An omitted section means pushover with defaults.
func mapNotifierConfig(cfg *Config) (notifier.Config, notifier.DriverConfig, error) {
	out := notifier.Config{
		Enabled:       true,
		Timeout:       10 * time.Second,
		RatePerSec:    3,
		RetryMax:      3,
		RetryBase:     500 * time.Millisecond,
		RetryMaxDelay: 5 * time.Second,
	}
	dc := notifier.DriverConfig{Driver: "pushover", Timeout: out.Timeout}
	if cfg == nil || cfg.Notifier == nil {
		return out, dc, nil
	}
	n := cfg.Notifier
	if n.Enabled != nil {
		out.Enabled = *n.Enabled
	}
	out.Title = strings.TrimSpace(n.Title)

	if n.RatePerSec < 0 {
		return notifier.Config{}, notifier.DriverConfig{}, fmt.Errorf("notifier.rate_per_sec must be >= 0")
	}
	if n.RetryMax < 0 {
		return notifier.Config{}, notifier.DriverConfig{}, fmt.Errorf("notifier.retry_max must be >= 0")
	}
	if n.HistorySize < 0 {
		return notifier.Config{}, notifier.DriverConfig{}, fmt.Errorf("notifier.history_size must be >= 0")
	}
	if n.RatePerSec != 0 {
		out.RatePerSec = n.RatePerSec
	}
	if n.RetryMax != 0 {
		out.RetryMax = n.RetryMax
	}
	out.HistorySize = n.HistorySize

	var err error
	if out.Timeout, err = parseDurationOrDefault("notifier.timeout", n.Timeout, out.Timeout); err != nil {
		return notifier.Config{}, notifier.DriverConfig{}, err
	}
	if out.RetryBase, err = parseDurationOrDefault("notifier.retry_base", n.RetryBase, out.RetryBase); err != nil {
		return notifier.Config{}, notifier.DriverConfig{}, err
	}
	if out.RetryMaxDelay, err = parseDurationOrDefault("notifier.retry_max_delay", n.RetryMaxDelay, out.RetryMaxDelay); err != nil {
		return notifier.Config{}, notifier.DriverConfig{}, err
	}

	out.Quiet = notifier.QuietHours{
		Enabled: n.QuietHours.Enabled,
		Start:   strings.TrimSpace(n.QuietHours.Start),
		End:     strings.TrimSpace(n.QuietHours.End),
	}
	if err := notifier.ValidateQuietHours(out.Quiet); err != nil {
		return notifier.Config{}, notifier.DriverConfig{}, fmt.Errorf("notifier.quiet_hours: %w", err)
	}

	driver := strings.ToLower(strings.TrimSpace(n.Driver))
	switch driver {
	case "", "pushover", "telegram", "log":
	default:
		return notifier.Config{}, notifier.DriverConfig{}, fmt.Errorf("unknown notifier.driver: %s", n.Driver)
	}
	if driver == "" {
		driver = "pushover"
	}
	dc = notifier.DriverConfig{
		Driver:  driver,
		Timeout: out.Timeout,
		Pushover: notifier.PushoverConfig{
			APIToken: strings.TrimSpace(n.Pushover.APIToken),
			UserKey:  strings.TrimSpace(n.Pushover.UserKey),
			Endpoint: strings.TrimSpace(n.Pushover.Endpoint),
		},
		Telegram: notifier.TelegramConfig{
			Token:    strings.TrimSpace(n.Telegram.Token),
			ChatID:   n.Telegram.ChatID,
			ThreadID: n.Telegram.ThreadID,
		},
	}
	return out, dc, nil
}

func mapQuotesConfig(cfg *Config) (quotes.Config, error) {
	if cfg.Quotes.History < 0 {
		return quotes.Config{}, fmt.Errorf("quotes.history must be >= 0")
	}
	return quotes.Config{
		File:      strings.TrimSpace(cfg.Quotes.File),
		StatePath: strings.TrimSpace(cfg.Quotes.StatePath),
		History:   cfg.Quotes.History,
	}, nil
}

func mapHousekeepingConfig(cfg *Config) (housekeeping.Config, string, error) {
	hc := cfg.Housekeeping
	if tz := strings.TrimSpace(hc.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return housekeeping.Config{}, "", fmt.Errorf("housekeeping.timezone: invalid %q: %w", tz, err)
		}
	}
	reconcile := strings.TrimSpace(hc.Reconcile)
	if reconcile == "" {
		reconcile = DefaultReconcile
	}
	if err := housekeeping.ValidateSchedule(reconcile); err != nil {
		return housekeeping.Config{}, "", fmt.Errorf("housekeeping.reconcile: %w", err)
	}
	return housekeeping.Config{Enabled: hc.Enabled, Timezone: strings.TrimSpace(hc.Timezone)}, reconcile, nil
}

// validateConfig rejects a reload before it is committed.
func validateConfig(cfg *Config) error {
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := mapTaskEngineConfig(cfg); err != nil {
		return err
	}
	if _, err := mapSchedulerConfig(cfg); err != nil {
		return err
	}
	if _, _, err := mapNotifierConfig(cfg); err != nil {
		return err
	}
	if _, err := mapQuotesConfig(cfg); err != nil {
		return err
	}
	if _, _, err := mapHousekeepingConfig(cfg); err != nil {
		return err
	}
	return nil
}
