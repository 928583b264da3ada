package schedule

import (
	"strconv"
	"strings"
)

// Rule names a recurrence preset.
type Rule string

const (
	RuleEveryMinute   Rule = "every_minute"
	RuleEvery5Minutes Rule = "every_5_minutes"
	RuleHourly        Rule = "hourly"
	RuleDaily         Rule = "daily"
	RuleWeekly        Rule = "weekly"
	RuleMonthly       Rule = "monthly"
	RuleYearly        Rule = "yearly"
	RuleCustom        Rule = "custom"
)

// Rules lists the presets in display order.
var Rules = []Rule{
	RuleEveryMinute,
	RuleEvery5Minutes,
	RuleHourly,
	RuleDaily,
	RuleWeekly,
	RuleMonthly,
	RuleYearly,
	RuleCustom,
}

// ParseRule accepts canonical names and display labels such as
// "Every 5 Minutes". Empty input is RuleCustom.
func ParseRule(s string) (Rule, error) {
	k := strings.ToLower(strings.TrimSpace(s))
	if k == "" {
		return RuleCustom, nil
	}
	k = strings.NewReplacer(" ", "_", "-", "_").Replace(k)
	for _, r := range Rules {
		if string(r) == k {
			return r, nil
		}
	}
	return "", invalid("rule", s, "unknown rule")
}

// Label is the human-readable form of the rule.
func (r Rule) Label() string {
	switch r {
	case RuleEveryMinute:
		return "Every Minute"
	case RuleEvery5Minutes:
		return "Every 5 Minutes"
	case "", RuleCustom:
		return "Custom"
	default:
		s := string(r)
		return strings.ToUpper(s[:1]) + s[1:]
	}
}

// PresetOptions carries the user-provided parts of a preset. Only the parts a
// rule uses are read: At for daily and longer, Weekday for weekly, Day for
// monthly and yearly, Month for yearly.
type PresetOptions struct {
	At      string // HH:MM
	Weekday string // mon..sun or 0-6
	Day     int    // 1-31
	Month   string // jan..dec or 1-12
}

// Preset expands a named rule into its recurrence. RuleCustom is rejected;
// build custom recurrences from Fields directly.
func Preset(rule Rule, opt PresetOptions) (Recurring, error) {
	r := Recurring{Rule: rule}
	switch rule {
	case RuleEveryMinute:
		r.Fields.Minute = Step(1)
		return r, nil
	case RuleEvery5Minutes:
		r.Fields.Minute = Step(5)
		return r, nil
	case RuleHourly:
		r.Fields.Minute = Literal(0)
		return r, nil
	case RuleDaily, RuleWeekly, RuleMonthly, RuleYearly:
	default:
		return Recurring{}, invalid("rule", string(rule), "not a preset")
	}

	h, m, err := ParseClock(opt.At)
	if err != nil {
		return Recurring{}, err
	}
	r.Fields.Hour = Literal(h)
	r.Fields.Minute = Literal(m)

	switch rule {
	case RuleWeekly:
		f, err := ParseField(DayOfWeek, opt.Weekday)
		if err != nil {
			return Recurring{}, err
		}
		if f.Kind != KindLiteral {
			return Recurring{}, invalid(DayOfWeek.Name, opt.Weekday, "weekly needs a single weekday")
		}
		r.Fields.DayOfWeek = f
	case RuleMonthly, RuleYearly:
		day := Literal(opt.Day)
		if err := day.validate(DayOfMonth); err != nil {
			return Recurring{}, err
		}
		r.Fields.DayOfMonth = day
		if rule == RuleYearly {
			f, err := ParseField(Month, opt.Month)
			if err != nil {
				return Recurring{}, err
			}
			if f.Kind != KindLiteral {
				return Recurring{}, invalid(Month.Name, opt.Month, "yearly needs a single month")
			}
			r.Fields.Month = f
		}
	}
	return r, nil
}

// ParseClock parses "HH:MM" (24h).
func ParseClock(s string) (hour, minute int, err error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, invalid("time", s, "expected HH:MM")
	}
	h, err1 := strconv.Atoi(hh)
	m, err2 := strconv.Atoi(mm)
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, invalid("time", s, "expected HH:MM")
	}
	return h, m, nil
}
