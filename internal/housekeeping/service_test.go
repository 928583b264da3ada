package housekeeping

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindset/internal/task/engine"
	logx "mindset/pkg/logx"
)

type fakeExec struct {
	mu    sync.Mutex
	tasks []engine.Task
	err   error
}

func (f *fakeExec) Enqueue(t engine.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, t)
	return nil
}

func noop(context.Context) error { return nil }

func TestAddValidates(t *testing.T) {
	t.Parallel()

	s := New(Config{Enabled: true}, &fakeExec{}, logx.Nop())
	assert.Error(t, s.Add("", "@every 1m", 0, noop))
	assert.Error(t, s.Add("x", "@every 1m", 0, nil))
	assert.Error(t, s.Add("x", "bogus", 0, noop))
	assert.Error(t, s.Add("x", "61 * * * *", 0, noop))
	assert.NoError(t, s.Add("x", "*/5 * * * *", 0, noop))
}

func TestTriggerEnqueuesWithOverlapSkip(t *testing.T) {
	t.Parallel()

	ex := &fakeExec{}
	s := New(Config{Enabled: true}, ex, logx.Nop())
	require.NoError(t, s.Add("reconcile", "1m", 5*time.Second, noop))

	require.NoError(t, s.Trigger("reconcile"))
	require.Len(t, ex.tasks, 1)
	assert.Equal(t, "housekeeping.reconcile", ex.tasks[0].Name)
	assert.Equal(t, engine.OverlapSkipIfRunning, ex.tasks[0].Overlap)
	assert.Equal(t, 5*time.Second, ex.tasks[0].Timeout)

	assert.Error(t, s.Trigger("missing"))
}

func TestStartSchedulesJobs(t *testing.T) {
	t.Parallel()

	s := New(Config{Enabled: true, Timezone: "UTC"}, &fakeExec{}, logx.Nop())
	require.NoError(t, s.Add("hourly", "@hourly", 0, noop))
	require.NoError(t, s.Add("tick", "@every 10m", 0, noop))

	before := s.Snapshot()
	require.Len(t, before, 2)
	assert.True(t, before[0].Next.IsZero())

	s.Start(context.Background())
	defer s.Stop(context.Background())

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "hourly", snap[0].Name)
	assert.Equal(t, "@every 10m", snap[1].Spec)
	for _, it := range snap {
		assert.False(t, it.Next.IsZero(), it.Name)
		assert.True(t, it.Next.After(time.Now()), it.Name)
	}

	assert.True(t, s.Remove("tick"))
	assert.False(t, s.Remove("tick"))
	assert.Len(t, s.Snapshot(), 1)
}

func TestDisabledDoesNotStart(t *testing.T) {
	t.Parallel()

	s := New(Config{}, &fakeExec{}, logx.Nop())
	require.NoError(t, s.Add("hourly", "@hourly", 0, noop))
	s.Start(context.Background())
	assert.True(t, s.Snapshot()[0].Next.IsZero())
}

func TestEnqueueErrorsAreThrottled(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := New(Config{}, &fakeExec{}, logx.NewWriter(&buf, "debug"))

	s.reportEnqueueError("reconcile", errors.New("queue full"))
	s.reportEnqueueError("reconcile", errors.New("queue full"))
	s.reportEnqueueError("reconcile", engine.ErrOverlapSkip)

	assert.Equal(t, 1, strings.Count(buf.String(), "job failed to enqueue"))
	assert.Equal(t, 1, strings.Count(buf.String(), "job trigger skipped"))
}
