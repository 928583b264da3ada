package scheduler

import (
	"context"
	"time"

	"mindset/internal/eventbus"
	"mindset/internal/task"
	"mindset/internal/task/engine"
	logx "mindset/pkg/logx"
)

const (
	DefaultFireTimeout = 30 * time.Second
	DefaultRetryDelay  = time.Second
	DefaultFallback    = "Time for your reminder."

	// deleteTimeout bounds the row delete at the end of a one-time fire.
	deleteTimeout = 5 * time.Second
	// maxRetryDelay caps the backoff for rejected fires and failed deletes.
	maxRetryDelay = time.Minute
)

type Config struct {
	// FireTimeout bounds one fire: message lookup, delivery and cleanup.
	FireTimeout time.Duration
	// RetryDelay is the first wait before re-dispatching a fire the
	// executor rejected or retrying a failed one-time delete. Repeats
	// double it up to a minute.
	RetryDelay time.Duration
	// Fallback is sent when there is no description and no quote text.
	Fallback string
}

func (c Config) withDefaults() Config {
	if c.FireTimeout <= 0 {
		c.FireTimeout = DefaultFireTimeout
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.Fallback == "" {
		c.Fallback = DefaultFallback
	}
	return c
}

// Deliverer sends the reminder push.
type Deliverer interface {
	Send(ctx context.Context, text string) error
}

// QuoteSource supplies text for tasks without a description. The returned
// text is usable even when err is non-nil.
type QuoteSource interface {
	Next(ctx context.Context) (string, error)
}

// TaskStore is the part of the task table the scheduler touches.
type TaskStore interface {
	ListByStatus(ctx context.Context, status task.Status) ([]task.Task, error)
	Delete(ctx context.Context, id task.ID) error
}

// Executor runs fires off the loop goroutine.
type Executor interface {
	Enqueue(t engine.Task) error
}

type Deps struct {
	Store    TaskStore
	Quotes   QuoteSource
	Notifier Deliverer
	Executor Executor
	Events   eventbus.Sink
	Clock    Clock
	Log      logx.Logger
}

type JobState string

const (
	JobPending JobState = "pending"
	JobFiring  JobState = "firing"
	// JobDormant is armed but has no future fire instant.
	JobDormant JobState = "dormant"
)

// JobInfo is a read-only view of one armed job.
type JobInfo struct {
	TaskID      task.ID
	Kind        task.Kind
	Description string
	Spec        string
	State       JobState
	Next        time.Time
	ArmedAt     time.Time
	Fires       uint64
	LastFire    time.Time
}
