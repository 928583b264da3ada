package app

import (
	"testing"
	"time"

	"mindset/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()

	sc, err := mapStorageConfig(config.Default())
	require.NoError(t, err)
	assert.Equal(t, "sqlite", sc.Driver)
	assert.Empty(t, sc.Path)

	cfg := config.Default()
	cfg.Storage = &config.StorageConfig{Driver: "SQLite3", Path: " /tmp/t.db ", BusyTimeout: "3s"}
	sc, err = mapStorageConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", sc.Driver)
	assert.Equal(t, "/tmp/t.db", sc.Path)
	assert.Equal(t, 3*time.Second, sc.BusyTimeout)

	cfg.Storage = &config.StorageConfig{Driver: "postgres"}
	_, err = mapStorageConfig(cfg)
	assert.ErrorContains(t, err, "unknown storage.driver")
}

func TestMapTaskEngineConfig(t *testing.T) {
	t.Parallel()

	ec, err := mapTaskEngineConfig(config.Default())
	require.NoError(t, err)
	assert.True(t, ec.Enabled)
	assert.Equal(t, 2, ec.Workers)

	off := false
	cfg := config.Default()
	cfg.TaskEngine = &config.TaskEngineConfig{Enabled: &off, Workers: 4, DefaultTimeout: "45s"}
	ec, err = mapTaskEngineConfig(cfg)
	require.NoError(t, err)
	assert.False(t, ec.Enabled)
	assert.Equal(t, 4, ec.Workers)
	assert.Equal(t, 45*time.Second, ec.DefaultTimeout)

	cfg.TaskEngine = &config.TaskEngineConfig{QueueSize: -1}
	_, err = mapTaskEngineConfig(cfg)
	assert.Error(t, err)
}

func TestMapNotifierConfig(t *testing.T) {
	t.Parallel()

	nc, dc, err := mapNotifierConfig(config.Default())
	require.NoError(t, err)
	assert.True(t, nc.Enabled)
	assert.Equal(t, "pushover", dc.Driver)
	assert.Equal(t, 10*time.Second, nc.Timeout)

	cfg := config.Default()
	cfg.Notifier = &config.NotifierConfig{
		Driver:     "Telegram",
		Timeout:    "4s",
		Telegram:   config.TelegramConfig{Token: " t ", ChatID: 7},
		QuietHours: config.QuietHoursConfig{Enabled: true, Start: "22:00", End: "07:00"},
	}
	nc, dc, err = mapNotifierConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "telegram", dc.Driver)
	assert.Equal(t, "t", dc.Telegram.Token)
	assert.Equal(t, 4*time.Second, dc.Timeout)
	assert.True(t, nc.Quiet.Enabled)
	assert.True(t, nc.Enabled, "a section without enabled stays enabled")

	off := false
	cfg.Notifier = &config.NotifierConfig{Enabled: &off}
	nc, _, err = mapNotifierConfig(cfg)
	require.NoError(t, err)
	assert.False(t, nc.Enabled)

	bad := []*config.NotifierConfig{
		{Driver: "smoke-signal"},
		{Timeout: "later"},
		{RetryMax: -1},
		{QuietHours: config.QuietHoursConfig{Enabled: true, Start: "25:00", End: "07:00"}},
	}
	for _, n := range bad {
		cfg.Notifier = n
		_, _, err := mapNotifierConfig(cfg)
		assert.Error(t, err, "%+v", n)
	}
}

func TestMapSchedulerConfigDefaults(t *testing.T) {
	t.Parallel()

	sc, err := mapSchedulerConfig(config.Default())
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, sc.FireTimeout)
	assert.Equal(t, time.Second, sc.RetryDelay)

	cfg := config.Default()
	cfg.Scheduler.RetryDelay = "-5s"
	_, err = mapSchedulerConfig(cfg)
	assert.Error(t, err)
}

func TestMapHousekeepingConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Housekeeping.Reconcile = ""
	hc, reconcile, err := mapHousekeepingConfig(cfg)
	require.NoError(t, err)
	assert.True(t, hc.Enabled)
	assert.Equal(t, DefaultReconcile, reconcile)

	cfg.Housekeeping.Timezone = "Mars/Olympus"
	_, _, err = mapHousekeepingConfig(cfg)
	assert.ErrorContains(t, err, "housekeeping.timezone")

	cfg.Housekeeping.Timezone = ""
	cfg.Housekeeping.Reconcile = "cron:not a cron"
	_, _, err = mapHousekeepingConfig(cfg)
	assert.ErrorContains(t, err, "housekeeping.reconcile")
}

func TestValidateConfigRejectsNegativeQuoteHistory(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Quotes.History = -2
	assert.Error(t, validateConfig(cfg))
	assert.NoError(t, validateConfig(config.Default()))
}
