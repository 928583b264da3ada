package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	logx "mindset/pkg/logx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) string { return "" }

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	m := NewConfigManager(filepath.Join(t.TempDir(), "absent.yaml"))
	m.SetLogger(logx.NewWriter(&buf, "debug"))
	m.SetEnv(noEnv)

	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Same(t, cfg, m.Get())
	assert.Contains(t, buf.String(), "config file not found")
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mindset.yaml")
	writeFile(t, path, `
logging:
  level: debug
storage:
  driver: sqlite
  path: /var/lib/mindset/tasks.db
notifier:
  enabled: true
  driver: telegram
  telegram:
    chat_id: 42
  quiet_hours:
    enabled: true
    start: "22:00"
    end: "07:30"
quotes:
  history: 5
housekeeping:
  reconcile: "cron:*/5 * * * *"
`)
	m := NewConfigManager(path)
	m.SetEnv(noEnv)

	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	require.NotNil(t, cfg.Storage)
	assert.Equal(t, "/var/lib/mindset/tasks.db", cfg.Storage.Path)
	require.NotNil(t, cfg.Notifier)
	assert.Equal(t, "telegram", cfg.Notifier.Driver)
	assert.EqualValues(t, 42, cfg.Notifier.Telegram.ChatID)
	assert.Equal(t, "07:30", cfg.Notifier.QuietHours.End)
	assert.Equal(t, 5, cfg.Quotes.History)
	// Omitted keys keep their defaults.
	assert.True(t, cfg.Housekeeping.Enabled)
	assert.Equal(t, "cron:*/5 * * * *", cfg.Housekeeping.Reconcile)
	assert.Equal(t, DefaultUnit, cfg.Systemd.Unit)
}

func TestParseRejectsUnknownAndTrailing(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name, file, body, want string
	}{
		{"unknown json", "c.json", `{"logging":{"level":"info"},"plugins":{}}`, "unknown field"},
		{"unknown yaml", "c.yaml", "scheduler:\n  workers: 3\n", "unknown field"},
		{"trailing", "c.json", `{"logging":{}} {"logging":{}}`, "trailing data"},
		{"bad yaml", "c.yml", "logging: [", "yaml unmarshal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), tc.file)
			writeFile(t, path, tc.body)
			m := NewConfigManager(path)
			m.SetEnv(noEnv)
			_, err := m.Parse()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		EnvDatabasePath:     " /tmp/x.db ",
		EnvPushoverAPIToken: "tok",
		EnvPushoverUserKey:  "usr",
		EnvTelegramToken:    "123:abc",
	}
	cfg := Default()
	ApplyEnv(cfg, func(k string) string { return env[k] })

	require.NotNil(t, cfg.Storage)
	assert.Equal(t, "/tmp/x.db", cfg.Storage.Path)
	require.NotNil(t, cfg.Notifier)
	assert.Nil(t, cfg.Notifier.Enabled)
	assert.Equal(t, "tok", cfg.Notifier.Pushover.APIToken)
	assert.Equal(t, "usr", cfg.Notifier.Pushover.UserKey)
	assert.Equal(t, "123:abc", cfg.Notifier.Telegram.Token)

	// The environment wins over the file.
	path := filepath.Join(t.TempDir(), "c.json")
	writeFile(t, path, `{"notifier":{"enabled":false,"pushover":{"api_token":"file"}}}`)
	m := NewConfigManager(path)
	m.SetEnv(func(k string) string { return env[k] })
	got, err := m.Parse()
	require.NoError(t, err)
	require.NotNil(t, got.Notifier.Enabled)
	assert.False(t, *got.Notifier.Enabled)
	assert.Equal(t, "tok", got.Notifier.Pushover.APIToken)
}

func TestApplyEnvLeavesSectionsAloneWhenUnset(t *testing.T) {
	t.Parallel()

	cfg := Default()
	ApplyEnv(cfg, noEnv)
	assert.Nil(t, cfg.Storage)
	assert.Nil(t, cfg.Notifier)
}

func TestSummarizeConfigChangeHidesSecrets(t *testing.T) {
	t.Parallel()

	oldCfg := Default()
	newCfg := Default()
	newCfg.Notifier = &NotifierConfig{Pushover: PushoverConfig{APIToken: "s3cret"}}
	newCfg.Quotes.History = 3

	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	assert.Equal(t, []string{"notifier", "quotes"}, changed)

	var buf bytes.Buffer
	logx.NewWriter(&buf, "info").Info("config changed", attrs...)
	assert.NotContains(t, buf.String(), "s3cret")
	assert.Contains(t, buf.String(), `"notifier.pushover_token_set":true`)

	changed, _ = SummarizeConfigChange(newCfg, newCfg)
	assert.Empty(t, changed)
}

func TestSummarizeNilNotifierMatchesEnabledDefault(t *testing.T) {
	t.Parallel()

	a := Default()
	b := Default()
	on := true
	b.Notifier = &NotifierConfig{Enabled: &on}
	changed, _ := SummarizeConfigChange(a, b)
	assert.Empty(t, changed)

	b.Notifier = &NotifierConfig{}
	changed, _ = SummarizeConfigChange(a, b)
	assert.Empty(t, changed)

	off := false
	b.Notifier = &NotifierConfig{Enabled: &off}
	changed, _ = SummarizeConfigChange(a, b)
	assert.Equal(t, []string{"notifier"}, changed)
}

func TestWatchPublishesValidReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mindset.json")
	writeFile(t, path, `{"logging":{"level":"info"}}`)

	m := NewConfigManager(path)
	m.SetEnv(noEnv)
	m.SetValidator(func(_ context.Context, cfg *Config) error {
		if cfg.Logging.Level == "bogus" {
			return assert.AnError
		}
		return nil
	})
	_, err := m.Load()
	require.NoError(t, err)

	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)

	writeFile(t, path, `{"logging":{"level":"bogus"}}`)
	time.Sleep(600 * time.Millisecond)
	assert.Equal(t, "info", m.Get().Logging.Level)

	writeFile(t, path, `{"logging":{"level":"debug"}}`)
	select {
	case cfg := <-sub:
		assert.Equal(t, "debug", cfg.Logging.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("no config published")
	}
	assert.Equal(t, "debug", m.Get().Logging.Level)
}

func TestPublishKeepsNewest(t *testing.T) {
	t.Parallel()

	m := NewConfigManager("unused.json")
	sub := m.Subscribe(1)
	a, b := Default(), Default()
	b.Logging.Level = "warn"
	m.publish(a)
	m.publish(b)

	got := <-sub
	assert.Equal(t, "warn", got.Logging.Level)

	m.Unsubscribe(sub)
	_, ok := <-sub
	assert.False(t, ok)
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()

	d, err := ParseDurationOrDefault("scheduler.fire_timeout", "", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)

	d, err = ParseDurationField("x", " 1m30s ")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = ParseDurationField("scheduler.retry_delay", "-1s")
	require.Error(t, err)
	_, err = ParseDurationField("scheduler.retry_delay", "soon")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "scheduler.retry_delay:"))
}

func TestYAMLNonStringKeys(t *testing.T) {
	t.Parallel()

	jb, format, err := coerceToJSONBytes("c.yml", []byte("logging:\n  level: warn\nextra:\n  1: one\n  true: yes\n"))
	require.NoError(t, err)
	assert.Equal(t, "yaml", format)
	assert.JSONEq(t, `{"logging":{"level":"warn"},"extra":{"1":"one","true":"yes"}}`, string(jb))
}
