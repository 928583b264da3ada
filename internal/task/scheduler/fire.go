package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mindset/internal/eventbus"
	"mindset/internal/notifier"
	"mindset/internal/storage"
	"mindset/internal/task"
	logx "mindset/pkg/logx"
)

// fire is the execution effect of one due job. It runs on an executor
// worker. Its events are emitted in order: log, delivery result,
// local_notify, then task_deleted for one-time tasks. Errors stay inside;
// the loop always hears back through the settled command.
func (s *Service) fire(ctx context.Context, t task.Task, gen, fireID uint64, due time.Time) error {
	settled := command{kind: cmdSettled, id: t.ID, gen: gen, fireID: fireID, firedAt: due}
	defer func() { s.box.post(settled) }()

	msg := s.message(ctx, t)
	s.emit(eventbus.Log(t.ID, fmt.Sprintf("▶️ Executing task %d: '%s'", t.ID, msg)))

	s.deliver(ctx, t.ID, msg)
	s.emit(eventbus.LocalNotify(t.ID, msg))

	if t.Kind() == task.KindOneTime {
		settled.failed = !s.finishOnce(t.ID)
	}
	return nil
}

func (s *Service) message(ctx context.Context, t task.Task) string {
	if msg := strings.TrimSpace(t.Description); msg != "" {
		return msg
	}
	fallback := s.config().Fallback
	if s.quotes == nil {
		return fallback
	}
	msg, err := s.quotes.Next(ctx)
	if err != nil {
		s.emit(eventbus.Error(t.ID, fmt.Sprintf("quote for task %d unavailable: %v", t.ID, err)))
	}
	if strings.TrimSpace(msg) == "" {
		return fallback
	}
	return msg
}

func (s *Service) deliver(ctx context.Context, id task.ID, msg string) {
	if s.notifier == nil {
		s.emit(eventbus.Log(id, fmt.Sprintf("Task %d notification skipped: no notifier configured.", id)))
		return
	}
	err := s.notifier.Send(ctx, msg)
	switch {
	case err == nil:
		s.emit(eventbus.Log(id, fmt.Sprintf("📨 Task %d notification sent.", id)))
	case errors.Is(err, notifier.ErrSkipped):
		s.emit(eventbus.Log(id, fmt.Sprintf("Task %d notification skipped: %v", id, err)))
	default:
		s.log.Warn("notification failed", logx.Int64("task", int64(id)), logx.Err(err))
		s.emit(eventbus.Error(id, fmt.Sprintf("notification for task %d failed: %v", id, err)))
	}
}

// finishOnce removes a fired one-time task and reports whether the row is
// gone. The fire context may already be spent, so the delete gets its own
// deadline.
func (s *Service) finishOnce(id task.ID) bool {
	if s.store == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()

	err := s.store.Delete(ctx, id)
	if err != nil && !storage.IsNotFound(err) {
		s.log.Error("one-time task delete failed", logx.Int64("task", int64(id)), logx.Err(err))
		s.emit(eventbus.Error(id, fmt.Sprintf("could not delete completed task %d: %v", id, err)))
		return false
	}
	s.emit(eventbus.Deleted(id))
	return true
}
