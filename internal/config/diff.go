package config

import (
	"reflect"
	"sort"
	"strings"

	logx "mindset/pkg/logx"
)

// SummarizeConfigChange returns the sorted names of changed sections and
// log-safe attrs describing them. Secrets only appear as *_set booleans.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 24)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.json", newCfg.Logging.JSON),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	oS, nS := derefStorage(oldCfg.Storage), derefStorage(newCfg.Storage)
	if oS != nS {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(nS.Driver)),
			logx.String("storage.path", strings.TrimSpace(nS.Path)),
			logx.String("storage.busy_timeout", strings.TrimSpace(nS.BusyTimeout)),
		)
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.fire_timeout", strings.TrimSpace(newCfg.Scheduler.FireTimeout)),
			logx.String("scheduler.retry_delay", strings.TrimSpace(newCfg.Scheduler.RetryDelay)),
			logx.Bool("scheduler.fallback_set", strings.TrimSpace(newCfg.Scheduler.Fallback) != ""),
		)
	}

	oTE, nTE := derefTaskEngine(oldCfg.TaskEngine), derefTaskEngine(newCfg.TaskEngine)
	if (oldCfg.TaskEngine != nil) != (newCfg.TaskEngine != nil) || !reflect.DeepEqual(oTE, nTE) {
		changed = append(changed, "task_engine")
		enabled := nTE.Enabled == nil || *nTE.Enabled
		attrs = append(attrs,
			logx.Bool("task_engine.enabled", enabled),
			logx.Int("task_engine.workers", nTE.Workers),
			logx.Int("task_engine.queue_size", nTE.QueueSize),
			logx.String("task_engine.default_timeout", strings.TrimSpace(nTE.DefaultTimeout)),
			logx.Int("task_engine.history_size", nTE.HistorySize),
		)
	}

	oN, nN := derefNotifier(oldCfg.Notifier), derefNotifier(newCfg.Notifier)
	if oN != nN {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Bool("notifier.enabled", nN.enabled),
			logx.String("notifier.driver", nN.Driver),
			logx.Int("notifier.rate_per_sec", nN.RatePerSec),
			logx.Int("notifier.retry_max", nN.RetryMax),
			logx.Bool("notifier.pushover_token_set", nN.Pushover.APIToken != ""),
			logx.Bool("notifier.pushover_user_set", nN.Pushover.UserKey != ""),
			logx.Bool("notifier.telegram_token_set", nN.Telegram.Token != ""),
			logx.Bool("notifier.quiet_hours", nN.QuietHours.Enabled),
		)
	}

	if oldCfg.Quotes != newCfg.Quotes {
		changed = append(changed, "quotes")
		attrs = append(attrs,
			logx.String("quotes.file", newCfg.Quotes.File),
			logx.String("quotes.state_path", newCfg.Quotes.StatePath),
			logx.Int("quotes.history", newCfg.Quotes.History),
		)
	}

	if oldCfg.Housekeeping != newCfg.Housekeeping {
		changed = append(changed, "housekeeping")
		attrs = append(attrs,
			logx.Bool("housekeeping.enabled", newCfg.Housekeeping.Enabled),
			logx.String("housekeeping.timezone", newCfg.Housekeeping.Timezone),
			logx.String("housekeeping.reconcile", newCfg.Housekeeping.Reconcile),
		)
	}

	if oldCfg.Systemd != newCfg.Systemd {
		changed = append(changed, "systemd")
		attrs = append(attrs,
			logx.Bool("systemd.notify", newCfg.Systemd.Notify),
			logx.String("systemd.unit", newCfg.Systemd.Unit),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

func derefStorage(s *StorageConfig) StorageConfig {
	if s == nil {
		return StorageConfig{}
	}
	return *s
}

func derefTaskEngine(te *TaskEngineConfig) TaskEngineConfig {
	if te == nil {
		return TaskEngineConfig{}
	}
	return *te
}

// notifierView is NotifierConfig with Enabled resolved, so it compares by
// value.
type notifierView struct {
	NotifierConfig
	enabled bool
}

// derefNotifier trims credentials so whitespace edits do not count as changes.
func derefNotifier(n *NotifierConfig) notifierView {
	if n == nil {
		return notifierView{enabled: true}
	}
	out := notifierView{NotifierConfig: *n, enabled: n.Enabled == nil || *n.Enabled}
	out.Enabled = nil
	out.Driver = strings.ToLower(strings.TrimSpace(out.Driver))
	out.Pushover.APIToken = strings.TrimSpace(out.Pushover.APIToken)
	out.Pushover.UserKey = strings.TrimSpace(out.Pushover.UserKey)
	out.Telegram.Token = strings.TrimSpace(out.Telegram.Token)
	return out
}
