package storage

import (
	"fmt"
	"strings"
	"time"

	"mindset/internal/task"
	"mindset/internal/task/schedule"
)

// record is the flat row shape shared by the sqlite and file drivers.
// Empty strings stand for NULL columns.
type record struct {
	ID          int64  `json:"id"`
	Description string `json:"description,omitempty"`
	TaskType    string `json:"task_type"`
	RunAt       string `json:"run_datetime,omitempty"`
	Rule        string `json:"recurrence_rule,omitempty"`
	Minute      string `json:"recurrence_minute,omitempty"`
	Hour        string `json:"recurrence_hour,omitempty"`
	DayOfMonth  string `json:"recurrence_day_of_month,omitempty"`
	DayOfWeek   string `json:"recurrence_day_of_week,omitempty"`
	Month       string `json:"recurrence_month,omitempty"`
	Status      string `json:"status"`
}

func fieldText(f schedule.Field) string {
	if f.IsEvery() {
		return ""
	}
	return f.String()
}

func toRecord(t task.Task) (record, error) {
	r := record{
		ID:          int64(t.ID),
		Description: strings.TrimSpace(t.Description),
		Status:      string(t.Status),
	}
	if r.Status == "" {
		r.Status = string(task.StatusStopped)
	}
	switch s := t.Spec.(type) {
	case schedule.Once:
		r.TaskType = string(task.KindOneTime)
		r.RunAt = s.At.Format(time.RFC3339)
	case schedule.Recurring:
		r.TaskType = string(task.KindRecurring)
		r.Rule = string(s.Rule)
		if r.Rule == "" {
			r.Rule = string(schedule.RuleCustom)
		}
		r.Minute = fieldText(s.Fields.Minute)
		r.Hour = fieldText(s.Fields.Hour)
		r.DayOfMonth = fieldText(s.Fields.DayOfMonth)
		r.DayOfWeek = fieldText(s.Fields.DayOfWeek)
		r.Month = fieldText(s.Fields.Month)
	default:
		return record{}, fmt.Errorf("unsupported schedule %T", t.Spec)
	}
	return r, nil
}

func (r record) toTask() (task.Task, error) {
	t := task.Task{
		ID:          task.ID(r.ID),
		Description: r.Description,
		Status:      task.Status(r.Status),
	}
	if t.Status == "" {
		t.Status = task.StatusStopped
	}

	switch task.Kind(r.TaskType) {
	case task.KindOneTime:
		at, err := time.Parse(time.RFC3339, r.RunAt)
		if err != nil {
			return task.Task{}, fmt.Errorf("run_datetime %q: %w", r.RunAt, err)
		}
		t.Spec = schedule.Once{At: at.Local()}
	case task.KindRecurring:
		rule, err := schedule.ParseRule(r.Rule)
		if err != nil {
			return task.Task{}, err
		}
		var fs schedule.Fields
		for _, p := range []struct {
			u   schedule.Unit
			raw string
			dst *schedule.Field
		}{
			{schedule.Minute, r.Minute, &fs.Minute},
			{schedule.Hour, r.Hour, &fs.Hour},
			{schedule.DayOfMonth, r.DayOfMonth, &fs.DayOfMonth},
			{schedule.DayOfWeek, r.DayOfWeek, &fs.DayOfWeek},
			{schedule.Month, r.Month, &fs.Month},
		} {
			f, err := schedule.ParseField(p.u, p.raw)
			if err != nil {
				return task.Task{}, err
			}
			*p.dst = f
		}
		t.Spec = schedule.Recurring{Rule: rule, Fields: fs}
	default:
		return task.Task{}, fmt.Errorf("unknown task_type %q", r.TaskType)
	}
	return t, nil
}
