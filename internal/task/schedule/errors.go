package schedule

import (
	"errors"
	"fmt"
)

var (
	ErrInvalid     = errors.New("schedule: invalid")
	ErrUnreachable = errors.New("schedule: unreachable")
)

// ValidationError describes a field or value that cannot form a schedule.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Value == "" {
		return fmt.Sprintf("schedule: invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("schedule: invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

func invalid(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}
