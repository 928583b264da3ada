package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"mindset/internal/reminder"
	"mindset/internal/task"
	"mindset/internal/task/schedule"
	logx "mindset/pkg/logx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeConfig(t *testing.T, storage string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "mindset.json")
	body := fmt.Sprintf(`{
  "logging": {"level": "error", "console": true},
  "storage": %s,
  "notifier": {"enabled": true, "driver": "log"},
  "quotes": {"state_path": %q},
  "systemd": {"notify": false}
}`, storage, filepath.Join(dir, "state.json"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestAppFiresPastOneTimeReminder(t *testing.T) {
	path := writeConfig(t, `{"driver": "memory"}`)
	out := &syncBuffer{}

	a, err := NewApp(path, WithLocalOutput(out))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		assert.NoError(t, a.Stop(stopCtx, StopSIGTERM))
	}()

	created, err := a.Reminders().Create(ctx, reminder.Draft{
		Description: "stand up and stretch",
		Spec:        schedule.Once{At: time.Now().Add(-time.Minute)},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, task.StatusRunning, created.Status)

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "🔔 Mind Set Reminder: stand up and stretch")
	}, 5*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		all, err := a.Reminders().List(ctx, "")
		return err == nil && len(all) == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestAppStopBeforeStartIsNoop(t *testing.T) {
	path := writeConfig(t, `{"driver": "memory"}`)
	a, err := NewApp(path)
	require.NoError(t, err)
	assert.NoError(t, a.Stop(context.Background(), StopUnknown))
	assert.NoError(t, a.store.Close())
}

func TestNewAppRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, `{"driver": "etcd"}`)
	_, err := NewApp(path)
	assert.ErrorContains(t, err, "unknown storage.driver")
}

func TestOfflineStartedTaskIsArmedByDaemon(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "tasks.json")
	path := writeConfig(t, fmt.Sprintf(`{"driver": "file", "path": %q}`, db))

	off, err := NewOffline(path, logx.Nop())
	require.NoError(t, err)
	tk, err := off.Reminders.Create(context.Background(), reminder.Draft{
		Description: "drink water",
		Spec:        schedule.Once{At: time.Now().Add(time.Hour)},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, task.StatusRunning, tk.Status)
	require.NoError(t, off.Close(context.Background()))

	a, err := NewApp(path, WithLocalOutput(&syncBuffer{}))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		_ = a.Stop(stopCtx, StopSIGINT)
	}()

	require.Eventually(t, func() bool {
		_, ok := a.sched.Armed(tk.ID)
		return ok
	}, 5*time.Second, 20*time.Millisecond)
}
