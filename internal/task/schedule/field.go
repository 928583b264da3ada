package schedule

import (
	"strconv"
	"strings"
	"time"
)

// Unit is one of the five calendar components a Field constrains.
type Unit struct {
	Name string
	Min  int
	Max  int
}

var (
	Month      = Unit{Name: "month", Min: 1, Max: 12}
	DayOfMonth = Unit{Name: "day_of_month", Min: 1, Max: 31}
	DayOfWeek  = Unit{Name: "day_of_week", Min: 0, Max: 6}
	Hour       = Unit{Name: "hour", Min: 0, Max: 23}
	Minute     = Unit{Name: "minute", Min: 0, Max: 59}
)

type FieldKind uint8

const (
	KindEvery FieldKind = iota
	KindLiteral
	KindStep
)

// Field constrains a single Unit. The zero value matches every value.
type Field struct {
	Kind FieldKind
	N    int
}

func Every() Field        { return Field{Kind: KindEvery} }
func Literal(n int) Field { return Field{Kind: KindLiteral, N: n} }
func Step(n int) Field    { return Field{Kind: KindStep, N: n} }

func (f Field) IsEvery() bool { return f.Kind == KindEvery }

// Matches reports whether v satisfies f. Steps count from the unit's lowest
// value, so */2 on day_of_month matches 1, 3, 5...
func (f Field) Matches(u Unit, v int) bool {
	switch f.Kind {
	case KindLiteral:
		return v == f.N
	case KindStep:
		if f.N <= 0 {
			return false
		}
		return (v-u.Min)%f.N == 0
	default:
		return true
	}
}

// String renders the stored form: "*", "5" or "*/5".
func (f Field) String() string {
	switch f.Kind {
	case KindLiteral:
		return strconv.Itoa(f.N)
	case KindStep:
		return "*/" + strconv.Itoa(f.N)
	default:
		return "*"
	}
}

func (f Field) validate(u Unit) error {
	switch f.Kind {
	case KindEvery:
		return nil
	case KindLiteral:
		if f.N < u.Min || f.N > u.Max {
			return invalid(u.Name, f.String(), "out of range "+strconv.Itoa(u.Min)+"-"+strconv.Itoa(u.Max))
		}
		return nil
	case KindStep:
		if f.N < 1 || f.N > u.Max-u.Min+1 {
			return invalid(u.Name, f.String(), "step out of range")
		}
		return nil
	default:
		return invalid(u.Name, "", "unknown field kind")
	}
}

var weekdayNames = map[string]int{
	"mon": 0, "monday": 0,
	"tue": 1, "tues": 1, "tuesday": 1,
	"wed": 2, "wednesday": 2,
	"thu": 3, "thur": 3, "thurs": 3, "thursday": 3,
	"fri": 4, "friday": 4,
	"sat": 5, "saturday": 5,
	"sun": 6, "sunday": 6,
}

var monthNames = map[string]int{
	"jan": 1, "january": 1,
	"feb": 2, "february": 2,
	"mar": 3, "march": 3,
	"apr": 4, "april": 4,
	"may": 5,
	"jun": 6, "june": 6,
	"jul": 7, "july": 7,
	"aug": 8, "august": 8,
	"sep": 9, "sept": 9, "september": 9,
	"oct": 10, "october": 10,
	"nov": 11, "november": 11,
	"dec": 12, "december": 12,
}

// ParseField parses the stored or user-entered form of a field. Empty input
// and "*" mean every value. Weekday and month names are accepted for their
// units.
func ParseField(u Unit, raw string) (Field, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" || s == "*" {
		return Every(), nil
	}
	if rest, ok := strings.CutPrefix(s, "*/"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil {
			return Field{}, invalid(u.Name, raw, "step must be an integer")
		}
		f := Step(n)
		return f, f.validate(u)
	}

	var names map[string]int
	switch u {
	case DayOfWeek:
		names = weekdayNames
	case Month:
		names = monthNames
	}
	if n, ok := names[s]; ok {
		return Literal(n), nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return Field{}, invalid(u.Name, raw, "expected *, */N, a number or a name")
	}
	f := Literal(n)
	return f, f.validate(u)
}

// WeekdayIndex converts a time.Weekday to the Monday-first index.
func WeekdayIndex(d time.Weekday) int { return (int(d) + 6) % 7 }
