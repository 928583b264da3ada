package notifier

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTitle is the push title when none is configured.
const DefaultTitle = "Mind Set Reminder"

// Config controls delivery policy. Driver credentials live in DriverConfig.
type Config struct {
	Enabled       bool
	Timeout       time.Duration
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	Title         string
	Quiet         QuietHours
	HistorySize   int
}

// QuietHours suppresses remote pushes inside [Start, End) local time.
// The window may wrap midnight ("22:00"-"08:00").
type QuietHours struct {
	Enabled bool
	Start   string
	End     string
}

type Message struct {
	Title string
	Text  string
}

// Sender performs one delivery attempt.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

type HistoryItem struct {
	At       time.Time
	Driver   string
	Text     string
	Attempts int
	Error    string
	Skipped  bool
}

// window is a parsed QuietHours in minutes since midnight.
type window struct {
	start, end int
	on         bool
}

func parseWindow(q QuietHours) (window, error) {
	if !q.Enabled {
		return window{}, nil
	}
	s, err := parseHHMM(q.Start)
	if err != nil {
		return window{}, fmt.Errorf("quiet_hours.start: %w", err)
	}
	e, err := parseHHMM(q.End)
	if err != nil {
		return window{}, fmt.Errorf("quiet_hours.end: %w", err)
	}
	return window{start: s, end: e, on: true}, nil
}

// ValidateQuietHours reports whether q can be parsed.
func ValidateQuietHours(q QuietHours) error {
	_, err := parseWindow(q)
	return err
}

func (w window) contains(t time.Time) bool {
	if !w.on || w.start == w.end {
		return false
	}
	m := t.Hour()*60 + t.Minute()
	if w.start < w.end {
		return m >= w.start && m < w.end
	}
	return m >= w.start || m < w.end
}

func parseHHMM(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	h, err1 := strconv.Atoi(hh)
	m, err2 := strconv.Atoi(mm)
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	return h*60 + m, nil
}
