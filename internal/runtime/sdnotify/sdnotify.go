// Package sdnotify reports daemon state to systemd. Every call is a no-op
// when the process was not started by systemd (NOTIFY_SOCKET unset).
package sdnotify

import (
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "mindset/pkg/logx"
)

type Notifier struct {
	log     logx.Logger
	enabled bool
}

func New(enabled bool, log logx.Logger) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Notifier{log: log, enabled: enabled}
}

func (n *Notifier) Ready() { n.send(daemon.SdNotifyReady) }

func (n *Notifier) Stopping() { n.send(daemon.SdNotifyStopping) }

func (n *Notifier) Reloading() { n.send(daemon.SdNotifyReloading) }

// Watchdog pings the systemd watchdog.
func (n *Notifier) Watchdog() error {
	if !n.enabled {
		return nil
	}
	_, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog)
	return err
}

// WatchdogInterval is half the configured WatchdogSec, or 0 when the
// watchdog is off for this process.
func (n *Notifier) WatchdogInterval() time.Duration {
	if !n.enabled {
		return 0
	}
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.log.Warn("systemd watchdog check failed", logx.Err(err))
		return 0
	}
	return d / 2
}

func (n *Notifier) send(state string) {
	if !n.enabled {
		return
	}
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		n.log.Debug("sd_notify sent", logx.String("state", state))
	}
}
