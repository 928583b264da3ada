package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"mindset/internal/eventbus"
	rtsup "mindset/internal/runtime/supervisor"
	"mindset/internal/task"
	logx "mindset/pkg/logx"
)

type Service struct {
	mu  sync.Mutex
	cfg Config
	sup *rtsup.Supervisor

	log      logx.Logger
	store    TaskStore
	quotes   QuoteSource
	notifier Deliverer
	exec     Executor
	events   eventbus.Sink
	clock    Clock

	box *mailbox
	seq atomic.Uint64
	// reconPending counts Reconcile listings not yet applied by the loop.
	// While it is zero no touched mark can matter.
	reconPending atomic.Int32

	// Owned by the loop goroutine.
	jobs      map[task.ID]*job
	queue     fireHeap
	touched   map[task.ID]uint64
	lastRecon uint64
	fireSeq   uint64
	// finished holds fired one-time ids whose row delete is being retried,
	// mapped to the current attempt.
	finished map[task.ID]uint64

	snap atomic.Pointer[[]JobInfo]
	// touchedLen is len(touched) as of the last publish.
	touchedLen atomic.Int64
}

func New(cfg Config, d Deps) *Service {
	log := d.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	clock := d.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	s := &Service{
		cfg:      cfg.withDefaults(),
		log:      log,
		store:    d.Store,
		quotes:   d.Quotes,
		notifier: d.Notifier,
		exec:     d.Executor,
		events:   d.Events,
		clock:    clock,
		box:      newMailbox(),
	}
	s.resetLoopState()
	return s
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg.withDefaults()
	s.mu.Unlock()
}

func (s *Service) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Start loads every running task, arms it, and starts the loop.
// It is idempotent.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil {
		return nil
	}

	var running []task.Task
	if s.store != nil {
		var err error
		running, err = s.store.ListByStatus(ctx, task.StatusRunning)
		if err != nil {
			return fmt.Errorf("scheduler: load running tasks: %w", err)
		}
	}
	for _, t := range running {
		if err := t.Validate(); err != nil {
			s.emit(eventbus.Error(t.ID, fmt.Sprintf("Task %d not scheduled: %v", t.ID, err)))
			continue
		}
		s.box.post(command{kind: cmdArm, seq: s.seq.Add(1), task: t})
	}

	s.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(s.log))
	s.sup.GoRestart("scheduler.loop", s.loop, rtsup.WithPublishFirstError(true))

	s.log.Info("scheduler started", logx.Int("restored", len(running)))
	s.emit(eventbus.Log(0, "Scheduler started."))
	return nil
}

// Stop halts the loop and forgets every armed job. Fires already handed to
// the executor are not interrupted.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	sup := s.sup
	s.sup = nil
	s.mu.Unlock()
	if sup == nil {
		return nil
	}

	s.emit(eventbus.Log(0, "Scheduler shutting down."))
	if err := sup.Stop(ctx); err != nil && ctx.Err() != nil {
		s.log.Warn("scheduler stop timed out", logx.Err(err))
		return err
	}
	for _, c := range s.box.drain() {
		if c.kind == cmdReconcile {
			s.reconPending.Add(-1)
		}
	}
	s.resetLoopState()
	s.publish()
	s.log.Info("scheduler stopped")
	return nil
}

func (s *Service) resetLoopState() {
	s.jobs = map[task.ID]*job{}
	s.queue = nil
	s.touched = map[task.ID]uint64{}
	s.finished = map[task.ID]uint64{}
	s.lastRecon = 0
}

// Arm schedules t, replacing any job for the same id. Only validation
// happens synchronously; the loop does the rest.
func (s *Service) Arm(t task.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.box.post(command{kind: cmdArm, seq: s.seq.Add(1), task: t})
	return nil
}

// Disarm removes the job for id, if any. An in-flight fire completes.
func (s *Service) Disarm(id task.ID) {
	s.box.post(command{kind: cmdDisarm, seq: s.seq.Add(1), id: id})
}

// Reconcile makes the job table match the store's running tasks. Ids that
// were armed or disarmed after the listing started are left alone.
func (s *Service) Reconcile(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	s.reconPending.Add(1)
	seq := s.seq.Load()
	running, err := s.store.ListByStatus(ctx, task.StatusRunning)
	if err != nil {
		s.reconPending.Add(-1)
		return fmt.Errorf("scheduler: reconcile: %w", err)
	}
	valid := running[:0]
	for _, t := range running {
		if t.Validate() == nil {
			valid = append(valid, t)
		}
	}
	s.box.post(command{kind: cmdReconcile, seq: seq, tasks: valid})
	return nil
}

// Snapshot returns the job table as of the loop's last iteration, ordered
// by task id.
func (s *Service) Snapshot() []JobInfo {
	p := s.snap.Load()
	if p == nil {
		return nil
	}
	return append([]JobInfo(nil), (*p)...)
}

// Armed looks up one job in the last published snapshot.
func (s *Service) Armed(id task.ID) (JobInfo, bool) {
	p := s.snap.Load()
	if p == nil {
		return JobInfo{}, false
	}
	for _, j := range *p {
		if j.TaskID == id {
			return j, true
		}
	}
	return JobInfo{}, false
}

func (s *Service) emit(e eventbus.Event) {
	if s.events == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = s.clock.Now()
	}
	s.events.Emit(e)
}
