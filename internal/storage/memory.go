package storage

import (
	"context"
	"sort"
	"sync"

	"mindset/internal/task"
)

type memoryStore struct {
	mu     sync.RWMutex
	nextID task.ID
	rows   map[task.ID]task.Task
	closed bool
}

// NewMemory returns an in-process Store.
func NewMemory() Store {
	return &memoryStore{rows: map[task.ID]task.Task{}}
}

func (s *memoryStore) Create(ctx context.Context, t task.Task) (task.ID, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, wrap("create", 0, ErrClosed)
	}
	s.nextID++
	t.ID = s.nextID
	t.Status = task.StatusStopped
	s.rows[t.ID] = t
	return t.ID, nil
}

func (s *memoryStore) Get(ctx context.Context, id task.ID) (task.Task, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return task.Task{}, false, wrap("get", id, ErrClosed)
	}
	t, ok := s.rows[id]
	return t, ok, nil
}

func (s *memoryStore) List(ctx context.Context) ([]task.Task, error) {
	return s.filter("list", func(task.Task) bool { return true })
}

func (s *memoryStore) ListByStatus(ctx context.Context, status task.Status) ([]task.Task, error) {
	return s.filter("list", func(t task.Task) bool { return t.Status == status })
}

func (s *memoryStore) filter(op string, keep func(task.Task) bool) ([]task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, wrap(op, 0, ErrClosed)
	}
	out := make([]task.Task, 0, len(s.rows))
	for _, t := range s.rows {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryStore) SetStatus(ctx context.Context, id task.ID, status task.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return wrap("set_status", id, ErrClosed)
	}
	t, ok := s.rows[id]
	if !ok {
		return wrap("set_status", id, ErrNotFound)
	}
	t.Status = status
	s.rows[id] = t
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, id task.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return wrap("delete", id, ErrClosed)
	}
	if _, ok := s.rows[id]; !ok {
		return wrap("delete", id, ErrNotFound)
	}
	delete(s.rows, id)
	return nil
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
