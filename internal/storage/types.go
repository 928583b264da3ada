package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mindset/internal/task"
)

var (
	ErrNotFound = errors.New("storage: task not found")
	ErrClosed   = errors.New("storage: closed")
)

// Config configures storage.
type Config struct {
	Driver      string // sqlite (default) | file | memory
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the task table.
//
// Create always inserts with status stopped and returns the new id.
// Get reports ok=false for a missing row. SetStatus and Delete return an
// error matching ErrNotFound when the row does not exist.
type Store interface {
	Create(ctx context.Context, t task.Task) (task.ID, error)
	Get(ctx context.Context, id task.ID) (task.Task, bool, error)
	List(ctx context.Context) ([]task.Task, error)
	ListByStatus(ctx context.Context, status task.Status) ([]task.Task, error)
	SetStatus(ctx context.Context, id task.ID, status task.Status) error
	Delete(ctx context.Context, id task.ID) error
	Close() error
}

// Error is a failed store operation.
type Error struct {
	Op  string
	ID  task.ID
	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.ID == 0 {
		return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage: %s task %d: %v", e.Op, e.ID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(op string, id task.ID, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, ID: id, Err: err}
}

// IsNotFound reports whether err means the task row does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
