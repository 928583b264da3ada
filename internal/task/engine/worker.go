package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	rtsup "mindset/internal/runtime/supervisor"
	logx "mindset/pkg/logx"
)

const slowTask = 750 * time.Millisecond

// pool is one generation of workers. Start creates it and Stop retires it;
// a later Start builds a fresh one.
type pool struct {
	queue chan queued
	quit  chan struct{}
	sup   *rtsup.Supervisor
	// retired is non-nil once Stop has begun and is closed when all
	// workers have returned.
	retired chan struct{}
}

type queued struct {
	task      Task
	at        time.Time
	timeout   time.Duration
	exclusive bool
}

func (s *Service) spawn(p *pool, n int) {
	for i := range n {
		p.sup.GoRestart(fmt.Sprintf("worker.%d", i), func(c context.Context) error {
			s.drain(c, p)
			select {
			case <-p.quit:
				return context.Canceled
			default:
			}
			if err := c.Err(); err != nil {
				return err
			}
			return errors.New("worker exited unexpectedly")
		}, rtsup.WithPublishFirstError(true))
	}
}

// drain runs queued tasks until quit closes. Quit wins over pending work.
func (s *Service) drain(ctx context.Context, p *pool) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.quit:
			return
		default:
		}
		select {
		case <-ctx.Done():
			return
		case <-p.quit:
			return
		case q := <-p.queue:
			s.inFlight.Add(1)
			s.run(ctx, q)
			s.inFlight.Add(-1)
		}
	}
}

func (s *Service) run(ctx context.Context, q queued) {
	if q.exclusive {
		defer s.release(q.task.Name)
	}
	start := time.Now()
	wait := max(start.Sub(q.at), 0)
	log := s.log.With(logx.String("task", q.task.Name), logx.String("id", q.task.ID))
	log.Debug("task.started", logx.Duration("queue_delay", wait))

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if q.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, q.timeout)
	}
	err := s.call(runCtx, q.task, log)
	cancel()

	took := time.Since(start)
	rec := HistoryItem{ID: q.task.ID, Name: q.task.Name, Started: start, QueueDelay: wait, Duration: took}
	switch {
	case err != nil:
		rec.Error = err.Error()
		log.Warn("task.failed", logx.Err(err), logx.Duration("dur", took))
	case took >= slowTask:
		log.Info("task.completed", logx.Duration("queue_delay", wait), logx.Duration("dur", took))
	default:
		log.Debug("task.completed", logx.Duration("dur", took))
	}
	s.history.add(rec)
}

// call turns a panic into an error so the worker survives.
func (s *Service) call(ctx context.Context, t Task, log logx.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			log.Error("task.panic", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	return t.Run(ctx)
}

// discard empties a retired pool's queue, releasing exclusive names and
// reporting each task to its Dropped hook.
func (s *Service) discard(p *pool) int {
	n := 0
	for {
		select {
		case q := <-p.queue:
			if q.exclusive {
				s.release(q.task.Name)
			}
			if q.task.Dropped != nil {
				q.task.Dropped()
			}
			n++
		default:
			return n
		}
	}
}
