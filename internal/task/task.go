// Package task defines the reminder task record shared by storage, the
// scheduler and the caller-side operations.
package task

import (
	"fmt"
	"strconv"
	"strings"

	"mindset/internal/task/schedule"
)

type ID int64

func (id ID) String() string { return strconv.FormatInt(int64(id), 10) }

// ParseID parses a positive task id.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("task: invalid id %q", s)
	}
	return ID(n), nil
}

type Status string

const (
	StatusRunning   Status = "running"
	StatusStopped   Status = "stopped"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusRunning, StatusStopped, StatusCompleted, StatusError:
		return st, nil
	default:
		return "", fmt.Errorf("task: unknown status %q", s)
	}
}

type Kind string

const (
	KindOneTime   Kind = "one_time"
	KindRecurring Kind = "recurring"
)

// Task is a persisted reminder. Spec is schedule.Once or schedule.Recurring.
type Task struct {
	ID          ID
	Description string
	Spec        schedule.Spec
	Status      Status
}

func (t Task) Kind() Kind {
	if _, ok := t.Spec.(schedule.Once); ok {
		return KindOneTime
	}
	return KindRecurring
}

func (t Task) Validate() error { return schedule.Validate(t.Spec) }

// Label is a short human-readable line for lists and logs.
func (t Task) Label() string {
	desc := strings.TrimSpace(t.Description)
	if desc == "" {
		desc = "(quote)"
	}
	spec := "<none>"
	if t.Spec != nil {
		spec = t.Spec.String()
	}
	return fmt.Sprintf("#%d [%s] %s: %s", t.ID, t.Status, spec, desc)
}
