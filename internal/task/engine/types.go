package engine

import (
	"context"
	"time"
)

// Config is the mapped form of config.task_engine.
type Config struct {
	Enabled   bool
	Workers   int
	QueueSize int
	// DefaultTimeout bounds tasks that set no Timeout. Zero means unbounded.
	DefaultTimeout time.Duration
	HistorySize    int
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 200
	}
	return c
}

type OverlapPolicy int

const (
	OverlapAllow OverlapPolicy = iota
	// OverlapSkipIfRunning rejects a task while another with the same Name
	// is queued or running.
	OverlapSkipIfRunning
)

type Task struct {
	ID      string
	Name    string
	Timeout time.Duration
	Overlap OverlapPolicy
	Run     func(ctx context.Context) error
	// Dropped, if set, is called when the task was queued but is discarded
	// without running because its pool was retired.
	Dropped func()
}

// HistoryItem records one finished run.
type HistoryItem struct {
	ID         string
	Name       string
	Started    time.Time
	QueueDelay time.Duration
	Duration   time.Duration
	Error      string
}

type Snapshot struct {
	Enabled        bool
	Workers        int
	QueueLen       int
	QueueCap       int
	InFlight       int
	Dropped        uint64
	DefaultTimeout time.Duration
	History        []HistoryItem
}
