// Package reminder holds the caller-side task operations: create, start,
// stop, toggle, delete and list. Each one updates the store first and then
// tells the scheduler.
package reminder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mindset/internal/eventbus"
	"mindset/internal/storage"
	"mindset/internal/task"
	"mindset/internal/task/schedule"
	logx "mindset/pkg/logx"
)

// Scheduler is the part of the scheduling core the manager drives.
type Scheduler interface {
	Arm(t task.Task) error
	Disarm(id task.ID)
}

// Draft is a task before it has an id.
type Draft struct {
	Description string
	Spec        schedule.Spec
}

type Manager struct {
	store  *storage.Guard
	sched  Scheduler
	events eventbus.Sink
	log    logx.Logger
	now    func() time.Time
}

type Option func(*Manager)

func WithEvents(sink eventbus.Sink) Option { return func(m *Manager) { m.events = sink } }
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New builds a Manager. sched may be nil: the store is still updated and a
// running daemon picks the change up on its next reconcile.
func New(store *storage.Guard, sched Scheduler, log logx.Logger, opts ...Option) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	m := &Manager{store: store, sched: sched, log: log, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Create stores a new task and, when start is set, runs it. An invalid
// draft creates nothing and returns an error matching schedule.ErrInvalid.
func (m *Manager) Create(ctx context.Context, d Draft, start bool) (task.Task, error) {
	t := task.Task{Description: strings.TrimSpace(d.Description), Spec: d.Spec}
	if err := t.Validate(); err != nil {
		return task.Task{}, err
	}
	if !schedule.Reachable(t.Spec, m.now()) {
		m.log.Warn("task schedule can never fire", logx.String("spec", t.Spec.String()))
	}

	id, err := m.store.Create(ctx, t)
	if err != nil {
		return task.Task{}, err
	}
	t.ID = id
	t.Status = task.StatusStopped
	m.log.Info("task created", logx.Int64("task", int64(id)), logx.String("spec", t.Spec.String()))
	m.emit(eventbus.Log(id, fmt.Sprintf("✅ Task %d created.", id)))

	if !start {
		return t, nil
	}
	return m.Start(ctx, id)
}

// Start marks the task running and arms it.
func (m *Manager) Start(ctx context.Context, id task.ID) (task.Task, error) {
	t, err := m.setStatus(ctx, id, task.StatusRunning)
	if err != nil {
		return task.Task{}, err
	}
	if m.sched != nil {
		if err := m.sched.Arm(t); err != nil {
			return t, err
		}
	}
	return t, nil
}

// Stop marks the task stopped and disarms it. The row stays.
func (m *Manager) Stop(ctx context.Context, id task.ID) (task.Task, error) {
	t, err := m.setStatus(ctx, id, task.StatusStopped)
	if err != nil {
		return task.Task{}, err
	}
	if m.sched != nil {
		m.sched.Disarm(id)
	}
	return t, nil
}

// Toggle flips running and stopped. Any other status starts the task.
func (m *Manager) Toggle(ctx context.Context, id task.ID) (task.Task, error) {
	t, err := m.Get(ctx, id)
	if err != nil {
		return task.Task{}, err
	}
	if t.Status == task.StatusRunning {
		return m.Stop(ctx, id)
	}
	return m.Start(ctx, id)
}

// Delete disarms the task, then removes its row.
func (m *Manager) Delete(ctx context.Context, id task.ID) error {
	if m.sched != nil {
		m.sched.Disarm(id)
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.log.Info("task deleted", logx.Int64("task", int64(id)))
	m.emit(eventbus.Log(id, fmt.Sprintf("🗑️ Task %d deleted.", id)))
	return nil
}

func (m *Manager) Get(ctx context.Context, id task.ID) (task.Task, error) {
	t, ok, err := m.store.Get(ctx, id)
	if err != nil {
		return task.Task{}, err
	}
	if !ok {
		return task.Task{}, &storage.Error{Op: "get", ID: id, Err: storage.ErrNotFound}
	}
	return t, nil
}

// List returns every task, or only those with status when it is non-empty.
func (m *Manager) List(ctx context.Context, status task.Status) ([]task.Task, error) {
	if status == "" {
		return m.store.List(ctx)
	}
	return m.store.ListByStatus(ctx, status)
}

// Upcoming previews the next n fire instants of a task.
func (m *Manager) Upcoming(ctx context.Context, id task.ID, n int) ([]time.Time, error) {
	t, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return schedule.Upcoming(t.Spec, m.now(), n), nil
}

func (m *Manager) setStatus(ctx context.Context, id task.ID, status task.Status) (task.Task, error) {
	var out task.Task
	err := m.store.Update(ctx, id, func(ctx context.Context, st storage.Store, t task.Task) error {
		if t.Status != status {
			if err := st.SetStatus(ctx, id, status); err != nil {
				return err
			}
		}
		t.Status = status
		out = t
		return nil
	})
	return out, err
}

func (m *Manager) emit(e eventbus.Event) {
	if m.events != nil {
		e.Time = m.now()
		m.events.Emit(e)
	}
}
