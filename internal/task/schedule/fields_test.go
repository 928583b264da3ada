package schedule

import (
	"fmt"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func mustPreset(t *testing.T, rule Rule, opt PresetOptions) Recurring {
	t.Helper()
	r, err := Preset(rule, opt)
	require.NoError(t, err)
	return r
}

func TestNextScenarios(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		rule  Rule
		opt   PresetOptions
		after string
		want  string
	}{
		{"hourly at quarter past", RuleHourly, PresetOptions{}, "2024-03-04 10:15:00", "2024-03-04 11:00:00"},
		{"every five minutes", RuleEvery5Minutes, PresetOptions{}, "2024-03-04 10:03:00", "2024-03-04 10:05:00"},
		{"every five minutes on boundary", RuleEvery5Minutes, PresetOptions{}, "2024-03-04 10:05:00", "2024-03-04 10:10:00"},
		{"every minute with seconds", RuleEveryMinute, PresetOptions{}, "2024-03-04 10:05:42", "2024-03-04 10:06:00"},
		{"daily later today", RuleDaily, PresetOptions{At: "18:30"}, "2024-03-04 10:00:00", "2024-03-04 18:30:00"},
		{"daily tomorrow", RuleDaily, PresetOptions{At: "08:00"}, "2024-03-04 10:00:00", "2024-03-05 08:00:00"},
		// 2024-03-04 is a Monday.
		{"weekly friday", RuleWeekly, PresetOptions{At: "09:00", Weekday: "fri"}, "2024-03-04 10:00:00", "2024-03-08 09:00:00"},
		{"weekly same day passed", RuleWeekly, PresetOptions{At: "09:00", Weekday: "mon"}, "2024-03-04 10:00:00", "2024-03-11 09:00:00"},
		{"monthly 31st skips short months", RuleMonthly, PresetOptions{At: "07:00", Day: 31}, "2024-04-01 00:00:00", "2024-05-31 07:00:00"},
		{"yearly", RuleYearly, PresetOptions{At: "12:00", Day: 25, Month: "dec"}, "2024-12-26 00:00:00", "2025-12-25 12:00:00"},
		{"yearly leap day", RuleYearly, PresetOptions{At: "00:00", Day: 29, Month: "feb"}, "2024-03-01 00:00:00", "2028-02-29 00:00:00"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := mustPreset(t, tc.rule, tc.opt)
			got, ok := r.Next(at(tc.after))
			require.True(t, ok)
			assert.Equal(t, at(tc.want), got)
		})
	}
}

func TestNextIsConjunctive(t *testing.T) {
	t.Parallel()

	// Friday the 13th at 13:00.
	fs := Fields{DayOfMonth: Literal(13), DayOfWeek: Literal(4), Hour: Literal(13), Minute: Literal(0)}
	got, ok := fs.Next(at("2024-01-01 00:00:00"))
	require.True(t, ok)
	assert.Equal(t, at("2024-09-13 13:00:00"), got)
	assert.Equal(t, time.Friday, got.Weekday())
}

func TestNextUnreachable(t *testing.T) {
	t.Parallel()

	fs := Fields{Month: Literal(2), DayOfMonth: Literal(31), Hour: Literal(9), Minute: Literal(0)}
	require.NoError(t, fs.Validate())

	_, ok := fs.Next(at("2024-01-01 00:00:00"))
	assert.False(t, ok)
	assert.False(t, Reachable(Recurring{Fields: fs}, at("2024-01-01 00:00:00")))
}

func TestNextStrictlyAfter(t *testing.T) {
	t.Parallel()

	r := mustPreset(t, RuleEveryMinute, PresetOptions{})
	now := at("2024-03-04 10:00:00")
	for i := 0; i < 120; i++ {
		next, ok := r.Next(now)
		require.True(t, ok)
		require.True(t, next.After(now))
		require.Equal(t, time.Minute, next.Sub(now))
		now = next
	}
}

func TestOnceNext(t *testing.T) {
	t.Parallel()

	now := at("2024-03-04 10:00:00")

	future := Once{At: now.Add(time.Hour)}
	got, ok := future.Next(now)
	require.True(t, ok)
	assert.Equal(t, now.Add(time.Hour), got)

	past := Once{At: now.Add(-time.Hour)}
	got, ok = past.Next(now)
	require.True(t, ok)
	assert.Equal(t, now, got)

	assert.ErrorIs(t, Once{}.Validate(), ErrInvalid)
}

func TestNextAcrossDST(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	// 2024-03-10 02:30 does not exist in New York.
	r := mustPreset(t, RuleDaily, PresetOptions{At: "02:30"})
	got, ok := r.Next(time.Date(2024, 3, 9, 12, 0, 0, 0, loc))
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 11, 2, 30, 0, 0, loc), got)

	// Hourly keeps moving forward through the fall-back fold.
	h := mustPreset(t, RuleHourly, PresetOptions{})
	cur := time.Date(2024, 11, 3, 0, 30, 0, 0, loc)
	for i := 0; i < 6; i++ {
		next, ok := h.Next(cur)
		require.True(t, ok)
		require.True(t, next.After(cur), "step %d: %s !> %s", i, next, cur)
		cur = next
	}
}

// crontab renders fields in robfig's standard order with Sunday-first days.
func crontab(fs Fields) string {
	dow := fs.DayOfWeek.String()
	if fs.DayOfWeek.Kind == KindLiteral {
		dow = fmt.Sprint((fs.DayOfWeek.N + 1) % 7)
	}
	return fmt.Sprintf("%s %s %s %s %s", fs.Minute, fs.Hour, fs.DayOfMonth, fs.Month, dow)
}

func TestNextAgreesWithCronParser(t *testing.T) {
	t.Parallel()

	// Expressions where field semantics coincide: at least one of the day
	// fields is unrestricted, and day-of-week steps are avoided because the
	// two numberings start on different days.
	cases := []Fields{
		{Minute: Step(1)},
		{Minute: Step(5)},
		{Minute: Step(7)},
		{Minute: Literal(0)},
		{Minute: Literal(30), Hour: Step(3)},
		{Minute: Literal(15), Hour: Literal(9)},
		{Minute: Literal(0), Hour: Literal(8), DayOfWeek: Literal(0)},
		{Minute: Literal(0), Hour: Literal(8), DayOfWeek: Literal(6)},
		{Minute: Literal(45), Hour: Literal(23), DayOfMonth: Literal(31)},
		{Minute: Literal(0), Hour: Literal(0), DayOfMonth: Step(2)},
		{Minute: Literal(0), Hour: Literal(12), DayOfMonth: Literal(1), Month: Step(3)},
		{Minute: Literal(10), Hour: Literal(10), DayOfMonth: Literal(29), Month: Literal(2)},
	}
	starts := []time.Time{
		at("2024-01-01 00:00:00"),
		at("2024-02-28 23:59:30"),
		at("2025-06-15 10:07:00"),
		at("2023-12-31 23:59:00"),
	}

	for _, fs := range cases {
		expr := crontab(fs)
		sched, err := cron.ParseStandard(expr)
		require.NoError(t, err, expr)

		for _, start := range starts {
			cur := start
			for i := 0; i < 5; i++ {
				want := sched.Next(cur)
				got, ok := fs.Next(cur)
				require.True(t, ok, expr)
				require.Equal(t, want, got, "%s after %s", expr, cur)
				cur = got
			}
		}
	}
}
