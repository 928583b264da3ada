package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"mindset/internal/app"
	"mindset/internal/quotes"
	"mindset/internal/reminder"
	"mindset/internal/task"
	"mindset/internal/task/schedule"
)

type handler func(ctx context.Context, off *app.Offline, args []string, out io.Writer) error

var commands = map[string]handler{
	"add":    cmdAdd,
	"list":   cmdList,
	"start":  idCommand((*reminder.Manager).Start),
	"stop":   idCommand((*reminder.Manager).Stop),
	"toggle": idCommand((*reminder.Manager).Toggle),
	"delete": cmdDelete,
	"next":   cmdNext,
	"quote":  cmdQuote,
}

func newFlags(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

// addFlags holds the raw "add" options before they become a Draft.
type addFlags struct {
	desc    string
	at      string
	rule    string
	clock   string
	weekday string
	day     int
	month   string
	minute  string
	hour    string
	dom     string
	dow     string
	stopped bool
}

func (f *addFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.desc, "desc", "", "reminder text (empty means a quote is sent)")
	fs.StringVar(&f.at, "at", "", "one-time reminder at 'MM/DD/YYYY HH:MM'")
	fs.StringVar(&f.rule, "rule", "", "recurrence: "+ruleNames())
	fs.StringVar(&f.clock, "time", "", "HH:MM for daily/weekly/monthly/yearly")
	fs.StringVar(&f.weekday, "weekday", "", "weekday for weekly (mon..sun)")
	fs.IntVar(&f.day, "day", 0, "day of month for monthly/yearly")
	fs.StringVar(&f.month, "month", "", "month for yearly (jan..dec); month field for custom")
	fs.StringVar(&f.minute, "minute", "", "custom minute field (*, */N, N)")
	fs.StringVar(&f.hour, "hour", "", "custom hour field")
	fs.StringVar(&f.dom, "dom", "", "custom day-of-month field")
	fs.StringVar(&f.dow, "dow", "", "custom day-of-week field")
	fs.BoolVar(&f.stopped, "stopped", false, "create without starting")
}

func ruleNames() string {
	names := make([]string, 0, len(schedule.Rules))
	for _, r := range schedule.Rules {
		names = append(names, string(r))
	}
	return strings.Join(names, ", ")
}

func (f addFlags) custom() bool {
	return f.minute != "" || f.hour != "" || f.dom != "" || f.dow != ""
}

// spec turns the flags into a schedule. Exactly one of -at, -rule or the
// custom field flags must be used.
func (f addFlags) spec(loc *time.Location) (schedule.Spec, error) {
	switch {
	case f.at != "" && (f.rule != "" || f.custom()):
		return nil, errors.New("-at cannot be combined with -rule or custom fields")
	case f.at != "":
		at, err := schedule.ParseRunAt(f.at, loc)
		if err != nil {
			return nil, err
		}
		return schedule.Once{At: at}, nil
	}

	rule, err := schedule.ParseRule(f.rule)
	if err != nil {
		return nil, err
	}
	if rule != schedule.RuleCustom {
		if f.custom() {
			return nil, fmt.Errorf("custom fields cannot be combined with -rule %s", rule)
		}
		return schedule.Preset(rule, schedule.PresetOptions{
			At:      f.clock,
			Weekday: f.weekday,
			Day:     f.day,
			Month:   f.month,
		})
	}
	if !f.custom() && f.month == "" {
		return nil, errors.New("one of -at, -rule or custom fields (-minute/-hour/-dom/-dow/-month) is required")
	}

	var fields schedule.Fields
	for _, p := range []struct {
		unit schedule.Unit
		raw  string
		dst  *schedule.Field
	}{
		{schedule.Minute, f.minute, &fields.Minute},
		{schedule.Hour, f.hour, &fields.Hour},
		{schedule.DayOfMonth, f.dom, &fields.DayOfMonth},
		{schedule.Month, f.month, &fields.Month},
		{schedule.DayOfWeek, f.dow, &fields.DayOfWeek},
	} {
		v, err := schedule.ParseField(p.unit, p.raw)
		if err != nil {
			return nil, err
		}
		*p.dst = v
	}
	return schedule.Recurring{Rule: schedule.RuleCustom, Fields: fields}, nil
}

func cmdAdd(ctx context.Context, off *app.Offline, args []string, out io.Writer) error {
	var f addFlags
	fs := newFlags("add", out)
	f.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	spec, err := f.spec(time.Local)
	if err != nil {
		return err
	}
	t, err := off.Reminders.Create(ctx, reminder.Draft{Description: f.desc, Spec: spec}, !f.stopped)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, t.Label())
	return nil
}

func cmdList(ctx context.Context, off *app.Offline, args []string, out io.Writer) error {
	fs := newFlags("list", out)
	status := fs.String("status", "", "only tasks with this status (running, stopped)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var st task.Status
	if *status != "" {
		var err error
		if st, err = task.ParseStatus(*status); err != nil {
			return err
		}
	}
	all, err := off.Reminders.List(ctx, st)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		fmt.Fprintln(out, "no reminders")
		return nil
	}
	for _, t := range all {
		fmt.Fprintln(out, t.Label())
	}
	return nil
}

func parseOneID(args []string) (task.ID, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: expected exactly one task id", errUsage)
	}
	return task.ParseID(args[0])
}

func idCommand(op func(*reminder.Manager, context.Context, task.ID) (task.Task, error)) handler {
	return func(ctx context.Context, off *app.Offline, args []string, out io.Writer) error {
		id, err := parseOneID(args)
		if err != nil {
			return err
		}
		t, err := op(off.Reminders, ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, t.Label())
		return nil
	}
}

func cmdDelete(ctx context.Context, off *app.Offline, args []string, out io.Writer) error {
	id, err := parseOneID(args)
	if err != nil {
		return err
	}
	if err := off.Reminders.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted task %d\n", id)
	return nil
}

func cmdNext(ctx context.Context, off *app.Offline, args []string, out io.Writer) error {
	fs := newFlags("next", out)
	n := fs.Int("n", 5, "number of fire times")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := parseOneID(fs.Args())
	if err != nil {
		return err
	}
	times, err := off.Reminders.Upcoming(ctx, id, *n)
	if err != nil {
		return err
	}
	if len(times) == 0 {
		fmt.Fprintf(out, "task %d will never fire\n", id)
		return nil
	}
	for _, at := range times {
		fmt.Fprintln(out, at.Format("Mon 2006-01-02 15:04 MST"))
	}
	return nil
}

func cmdQuote(ctx context.Context, off *app.Offline, _ []string, out io.Writer) error {
	text, err := off.Quotes.Next(ctx)
	fmt.Fprintln(out, text)
	if errors.Is(err, quotes.ErrEmpty) {
		return nil
	}
	return err
}
