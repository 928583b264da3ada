package config

import (
	"os"
	"strings"
)

// Environment variables that override the file when set.
const (
	EnvDatabasePath     = "DATABASE_PATH"
	EnvPushoverAPIToken = "PUSHOVER_API_TOKEN"
	EnvPushoverUserKey  = "PUSHOVER_USER_KEY"
	EnvTelegramToken    = "TELEGRAM_BOT_TOKEN"
)

const (
	DefaultReconcile = "every:1m"
	DefaultUnit      = "mindset.service"
)

// Default is the config used when no file exists.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
		Housekeeping: HousekeepingConfig{
			Enabled:   true,
			Reconcile: DefaultReconcile,
		},
		Systemd: SystemdConfig{Notify: true, Unit: DefaultUnit},
	}
}

// ApplyEnv copies non-empty environment overrides into cfg. Sections that
// were omitted are created as needed.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if cfg == nil {
		return
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	env := func(k string) string { return strings.TrimSpace(getenv(k)) }

	if v := env(EnvDatabasePath); v != "" {
		if cfg.Storage == nil {
			cfg.Storage = &StorageConfig{}
		}
		cfg.Storage.Path = v
	}

	token, user, tg := env(EnvPushoverAPIToken), env(EnvPushoverUserKey), env(EnvTelegramToken)
	if token == "" && user == "" && tg == "" {
		return
	}
	if cfg.Notifier == nil {
		cfg.Notifier = &NotifierConfig{}
	}
	if token != "" {
		cfg.Notifier.Pushover.APIToken = token
	}
	if user != "" {
		cfg.Notifier.Pushover.UserKey = user
	}
	if tg != "" {
		cfg.Notifier.Telegram.Token = tg
	}
}
