// Package systemdmanager inspects and restarts the daemon's systemd unit.
package systemdmanager

import (
	"errors"
	"fmt"
	"time"
)

var ErrUnsupported = errors.New("systemdmanager: unsupported OS (linux only)")

// UnitStatus is the state of one unit.
type UnitStatus struct {
	Name        string
	Active      string // active, inactive, failed, ...
	SubState    string // running, dead, ...
	LoadState   string // loaded, not-found, ...
	Description string
	ActiveSince time.Time
	StateChange time.Time
	Uptime      time.Duration
}

func (s UnitStatus) String() string {
	out := fmt.Sprintf("%s: %s (%s), load=%s", s.Name, s.Active, s.SubState, s.LoadState)
	if s.Uptime > 0 {
		out += ", up " + s.Uptime.Truncate(time.Second).String()
	}
	return out
}
