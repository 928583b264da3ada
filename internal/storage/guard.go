package storage

import (
	"context"
	"sync"

	"mindset/internal/task"
)

// Guard serializes writes per task id. Reads pass straight through to the
// wrapped Store.
type Guard struct {
	Store

	mu    sync.Mutex
	locks map[task.ID]*rowLock
}

type rowLock struct {
	mu   sync.Mutex
	refs int
}

func NewGuard(st Store) *Guard {
	return &Guard{Store: st, locks: map[task.ID]*rowLock{}}
}

func (g *Guard) lock(id task.ID) func() {
	g.mu.Lock()
	l := g.locks[id]
	if l == nil {
		l = &rowLock{}
		g.locks[id] = l
	}
	l.refs++
	g.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		g.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(g.locks, id)
		}
		g.mu.Unlock()
	}
}

func (g *Guard) SetStatus(ctx context.Context, id task.ID, status task.Status) error {
	unlock := g.lock(id)
	defer unlock()
	return g.Store.SetStatus(ctx, id, status)
}

func (g *Guard) Delete(ctx context.Context, id task.ID) error {
	unlock := g.lock(id)
	defer unlock()
	return g.Store.Delete(ctx, id)
}

// Update runs fn under the row lock with the current row. fn must write
// through st (the unguarded store); calling back into the Guard for the same
// id deadlocks.
func (g *Guard) Update(ctx context.Context, id task.ID, fn func(ctx context.Context, st Store, t task.Task) error) error {
	unlock := g.lock(id)
	defer unlock()

	t, ok, err := g.Store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return wrap("update", id, ErrNotFound)
	}
	return fn(ctx, g.Store, t)
}
