//go:build linux

package systemdmanager

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/dbus"
)

// Manager talks to systemd over the system D-Bus.
type Manager struct {
	mu   sync.RWMutex
	conn *dbus.Conn
}

// New connects to the system bus. If ctx is nil, context.Background() is used.
func New(ctx context.Context) (*Manager, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to systemd: %w", err)
	}
	return &Manager{conn: conn}, nil
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	return nil
}

func (m *Manager) connection() (*dbus.Conn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.conn == nil {
		return nil, fmt.Errorf("systemd connection is closed")
	}
	return m.conn, nil
}

// Status reads the unit's state. A missing unit is reported with
// LoadState "not-found", not an error.
func (m *Manager) Status(ctx context.Context, unit string) (*UnitStatus, error) {
	conn, err := m.connection()
	if err != nil {
		return nil, err
	}
	name := unitName(unit)

	props, err := conn.GetUnitPropertiesContext(ctx, name)
	if err != nil {
		if isNoSuchUnitErr(err) {
			return notFound(name), nil
		}
		return nil, fmt.Errorf("failed to get status for %s: %w", name, err)
	}

	loadState, _ := getStringProperty(props, "LoadState")
	if loadState == "not-found" {
		return notFound(name), nil
	}
	active, _ := getStringProperty(props, "ActiveState")
	sub, _ := getStringProperty(props, "SubState")
	desc, _ := getStringProperty(props, "Description")

	st := &UnitStatus{
		Name:        name,
		Active:      active,
		SubState:    sub,
		LoadState:   loadState,
		Description: desc,
		ActiveSince: parseTimestamp(props, "ActiveEnterTimestamp"),
		StateChange: parseTimestamp(props, "StateChangeTimestamp"),
	}
	if active == "active" && !st.ActiveSince.IsZero() {
		st.Uptime = time.Since(st.ActiveSince)
	}
	return st, nil
}

// Restart restarts the unit and waits for systemd to report the job result.
func (m *Manager) Restart(ctx context.Context, unit string) error {
	conn, err := m.connection()
	if err != nil {
		return err
	}
	name := unitName(unit)
	done := make(chan string, 1)
	if _, err := conn.RestartUnitContext(ctx, name, "replace", done); err != nil {
		return fmt.Errorf("failed to restart %s: %w", name, err)
	}
	select {
	case res := <-done:
		if res != "done" {
			return fmt.Errorf("restart %s: job %s", name, res)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func unitName(unit string) string {
	unit = strings.TrimSpace(unit)
	if strings.Contains(unit, ".") {
		return unit
	}
	return unit + ".service"
}

func notFound(name string) *UnitStatus {
	return &UnitStatus{Name: name, Active: "unknown", SubState: "not-found", LoadState: "not-found"}
}

func isNoSuchUnitErr(err error) bool {
	if err == nil {
		return false
	}
	es := err.Error()
	return strings.Contains(es, "NoSuchUnit") || strings.Contains(es, "not-found")
}

func parseTimestamp(props map[string]interface{}, key string) time.Time {
	if ts, ok := props[key].(uint64); ok && ts > 0 {
		// microseconds since the Unix epoch
		return time.UnixMicro(int64(ts))
	}
	return time.Time{}
}

func getStringProperty(props map[string]interface{}, key string) (string, bool) {
	if val, ok := props[key].(string); ok {
		return val, true
	}
	return "", false
}
