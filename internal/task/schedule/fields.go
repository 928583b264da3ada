package schedule

import (
	"strings"
	"time"
)

// searchYears bounds the forward search. Eight years always contains a
// Feb 29, so any satisfiable combination is found well inside the window.
const searchYears = 8

// Fields is a five-field recurrence. The zero value fires every minute.
type Fields struct {
	Month      Field
	DayOfMonth Field
	DayOfWeek  Field
	Hour       Field
	Minute     Field
}

func (fs Fields) Validate() error {
	for _, p := range fs.pairs() {
		if err := p.f.validate(p.u); err != nil {
			return err
		}
	}
	return nil
}

type unitField struct {
	u Unit
	f Field
}

func (fs Fields) pairs() []unitField {
	return []unitField{
		{Month, fs.Month},
		{DayOfMonth, fs.DayOfMonth},
		{DayOfWeek, fs.DayOfWeek},
		{Hour, fs.Hour},
		{Minute, fs.Minute},
	}
}

// Matches reports whether the minute containing t is due.
func (fs Fields) Matches(t time.Time) bool {
	return fs.Month.Matches(Month, int(t.Month())) &&
		fs.DayOfMonth.Matches(DayOfMonth, t.Day()) &&
		fs.DayOfWeek.Matches(DayOfWeek, WeekdayIndex(t.Weekday())) &&
		fs.Hour.Matches(Hour, t.Hour()) &&
		fs.Minute.Matches(Minute, t.Minute())
}

// Next returns the first whole minute strictly after `after` at which every
// field matches. ok is false when no such minute exists within the search
// window (e.g. day_of_month=31 with month=2).
func (fs Fields) Next(after time.Time) (next time.Time, ok bool) {
	loc := after.Location()
	// Advance by absolute time so a repeated wall-clock hour never moves the
	// cursor backwards.
	t := after.Add(time.Minute - time.Duration(after.Second())*time.Second - time.Duration(after.Nanosecond()))
	limit := after.Year() + searchYears

	for t.Year() <= limit {
		if !fs.Month.Matches(Month, int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, loc)
			continue
		}
		if !fs.DayOfMonth.Matches(DayOfMonth, t.Day()) || !fs.DayOfWeek.Matches(DayOfWeek, WeekdayIndex(t.Weekday())) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
			continue
		}
		if !fs.Hour.Matches(Hour, t.Hour()) {
			n := time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, loc)
			if !n.After(t) {
				// Wall-clock hour repeated by a DST fold; move by absolute time.
				n = t.Add(time.Hour - time.Duration(t.Minute())*time.Minute)
			}
			t = n
			continue
		}
		if !fs.Minute.Matches(Minute, t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}
		return t, true
	}
	return time.Time{}, false
}

// String renders the fields with their unit names, in storage order.
func (fs Fields) String() string {
	var b strings.Builder
	for i, p := range fs.pairs() {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p.u.Name)
		b.WriteByte('=')
		b.WriteString(p.f.String())
	}
	return b.String()
}
