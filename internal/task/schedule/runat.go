package schedule

import (
	"strings"
	"time"
)

// RunAtLayout is the entry format for one-time reminders.
const RunAtLayout = "01/02/2006 15:04"

// ParseRunAt parses a one-time instant in loc. Both RunAtLayout and RFC 3339
// are accepted.
func ParseRunAt(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, invalid("run_at", s, "missing")
	}
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.ParseInLocation(RunAtLayout, s, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	return time.Time{}, invalid("run_at", s, "expected MM/DD/YYYY HH:MM")
}
