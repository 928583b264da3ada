package reminder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindset/internal/eventbus"
	"mindset/internal/storage"
	"mindset/internal/task"
	"mindset/internal/task/schedule"
	logx "mindset/pkg/logx"
)

type fakeSched struct {
	mu       sync.Mutex
	armed    []task.Task
	disarmed []task.ID
}

func (f *fakeSched) Arm(t task.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	f.armed = append(f.armed, t)
	f.mu.Unlock()
	return nil
}

func (f *fakeSched) Disarm(id task.ID) {
	f.mu.Lock()
	f.disarmed = append(f.disarmed, id)
	f.mu.Unlock()
}

var now = time.Date(2026, 3, 2, 10, 3, 0, 0, time.UTC)

func newManager(t *testing.T) (*Manager, *fakeSched, *eventbus.Recorder) {
	t.Helper()
	fs := &fakeSched{}
	rec := &eventbus.Recorder{}
	m := New(storage.NewGuard(storage.NewMemory()), fs, logx.Nop(),
		WithEvents(rec),
		WithClock(func() time.Time { return now }),
	)
	return m, fs, rec
}

func hourly(t *testing.T) schedule.Spec {
	t.Helper()
	r, err := schedule.Preset(schedule.RuleHourly, schedule.PresetOptions{})
	require.NoError(t, err)
	return r
}

func TestCreateAndStart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, fs, rec := newManager(t)

	got, err := m.Create(ctx, Draft{Description: "  stand up  ", Spec: hourly(t)}, true)
	require.NoError(t, err)
	assert.Equal(t, "stand up", got.Description)
	assert.Equal(t, task.StatusRunning, got.Status)
	require.Len(t, fs.armed, 1)
	assert.Equal(t, got.ID, fs.armed[0].ID)

	row, err := m.Get(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusRunning, row.Status)

	evs := rec.For(got.ID)
	require.Len(t, evs, 1)
	assert.Equal(t, "✅ Task 1 created.", evs[0].Text)
}

func TestCreateStoppedDoesNotArm(t *testing.T) {
	t.Parallel()
	m, fs, _ := newManager(t)

	got, err := m.Create(context.Background(), Draft{Spec: schedule.Once{At: now.Add(time.Hour)}}, false)
	require.NoError(t, err)
	assert.Equal(t, task.StatusStopped, got.Status)
	assert.Empty(t, fs.armed)
}

func TestCreateRejectsInvalid(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, _, _ := newManager(t)

	_, err := m.Create(ctx, Draft{Description: "x"}, true)
	assert.ErrorIs(t, err, schedule.ErrInvalid)

	bad := schedule.Recurring{Rule: schedule.RuleCustom, Fields: schedule.Fields{Minute: schedule.Literal(75)}}
	_, err = m.Create(ctx, Draft{Spec: bad}, true)
	assert.ErrorIs(t, err, schedule.ErrInvalid)

	all, err := m.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestToggleStopStartDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, fs, _ := newManager(t)

	tk, err := m.Create(ctx, Draft{Description: "water", Spec: hourly(t)}, true)
	require.NoError(t, err)

	tk, err = m.Toggle(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusStopped, tk.Status)
	assert.Equal(t, []task.ID{tk.ID}, fs.disarmed)

	tk, err = m.Toggle(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusRunning, tk.Status)
	assert.Len(t, fs.armed, 2)

	running, err := m.List(ctx, task.StatusRunning)
	require.NoError(t, err)
	assert.Len(t, running, 1)

	require.NoError(t, m.Delete(ctx, tk.ID))
	assert.Len(t, fs.disarmed, 2)
	_, err = m.Get(ctx, tk.ID)
	assert.True(t, storage.IsNotFound(err))

	_, err = m.Stop(ctx, tk.ID)
	assert.True(t, storage.IsNotFound(err))
	assert.True(t, storage.IsNotFound(m.Delete(ctx, tk.ID)))
}

func TestUpcoming(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, _, _ := newManager(t)

	tk, err := m.Create(ctx, Draft{Spec: hourly(t)}, false)
	require.NoError(t, err)

	got, err := m.Upcoming(ctx, tk.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		now.Add(57 * time.Minute),
		now.Add(117 * time.Minute),
		now.Add(177 * time.Minute),
	}, got)
}

func TestWithoutScheduler(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := New(storage.NewGuard(storage.NewMemory()), nil, logx.Nop())

	tk, err := m.Create(ctx, Draft{Spec: hourly(t)}, true)
	require.NoError(t, err)
	assert.Equal(t, task.StatusRunning, tk.Status)
	require.NoError(t, m.Delete(ctx, tk.ID))
}
