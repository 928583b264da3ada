package schedule

import (
	"time"
)

// Spec is the schedule payload of a task: either Once or Recurring.
type Spec interface {
	// Next returns the first fire instant relative to now. ok is false when
	// the schedule can never fire.
	Next(now time.Time) (next time.Time, ok bool)
	Validate() error
	String() string

	isSpec()
}

// Once fires a single time at At. An instant in the past is due immediately.
type Once struct {
	At time.Time
}

func (Once) isSpec() {}

func (o Once) Next(now time.Time) (time.Time, bool) {
	if o.At.After(now) {
		return o.At, true
	}
	return now, true
}

func (o Once) Validate() error {
	if o.At.IsZero() {
		return invalid("run_at", "", "missing")
	}
	return nil
}

func (o Once) String() string { return "once at " + o.At.Format(time.RFC3339) }

// Recurring fires at every minute its Fields match. Rule records the preset
// the fields were built from, or RuleCustom.
type Recurring struct {
	Rule   Rule
	Fields Fields
}

func (Recurring) isSpec() {}

// Next is strictly after now, so re-arming from a fire instant always moves
// forward.
func (r Recurring) Next(now time.Time) (time.Time, bool) {
	return r.Fields.Next(now)
}

func (r Recurring) Validate() error {
	if _, err := ParseRule(string(r.Rule)); err != nil {
		return err
	}
	return r.Fields.Validate()
}

func (r Recurring) String() string {
	rule := r.Rule
	if rule == "" {
		rule = RuleCustom
	}
	return string(rule) + " (" + r.Fields.String() + ")"
}

// Validate checks a Spec value, treating nil as invalid.
func Validate(s Spec) error {
	if s == nil {
		return invalid("schedule", "", "missing")
	}
	return s.Validate()
}

// Reachable reports whether s will ever fire after now.
func Reachable(s Spec, now time.Time) bool {
	if s == nil {
		return false
	}
	_, ok := s.Next(now)
	return ok
}

// Upcoming previews up to n fire instants after now.
func Upcoming(s Spec, now time.Time, n int) []time.Time {
	if s == nil || n <= 0 {
		return nil
	}
	out := make([]time.Time, 0, n)
	if o, ok := s.(Once); ok {
		next, _ := o.Next(now)
		return append(out, next)
	}
	cur := now
	for len(out) < n {
		next, ok := s.Next(cur)
		if !ok {
			break
		}
		out = append(out, next)
		cur = next
	}
	return out
}
