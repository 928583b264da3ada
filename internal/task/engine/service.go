package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	rtsup "mindset/internal/runtime/supervisor"
	logx "mindset/pkg/logx"
)

const dropWarnEvery = 5 * time.Second

// Service runs Tasks on a bounded worker pool. Reminder fires and
// housekeeping jobs both go through it.
type Service struct {
	log logx.Logger

	mu  sync.Mutex
	cfg Config
	cur *pool

	busyMu sync.Mutex
	busy   map[string]struct{}

	history  history
	inFlight atomic.Int32
	dropped  atomic.Uint64
	lastWarn atomic.Int64
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	s := &Service{cfg: cfg, log: log, busy: make(map[string]struct{})}
	s.history.setLimit(cfg.HistorySize)
	return s
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Apply swaps the config. A running pool is rebuilt when its shape changes
// or the engine is disabled; tasks still queued in the old pool are lost.
func (s *Service) Apply(ctx context.Context, cfg Config) {
	cfg = cfg.withDefaults()
	s.history.setLimit(cfg.HistorySize)

	s.mu.Lock()
	prev := s.cfg
	s.cfg = cfg
	live := s.cur != nil && s.cur.retired == nil
	s.mu.Unlock()

	reshape := prev.Workers != cfg.Workers || prev.QueueSize != cfg.QueueSize
	if live && (reshape || !cfg.Enabled) {
		s.Stop(ctx)
		s.Start(ctx)
	}
}

// Start launches workers. It is a no-op while disabled or already running
// and waits for an in-progress Stop to finish first.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		s.mu.Lock()
		if !s.cfg.Enabled {
			s.mu.Unlock()
			return
		}
		p := s.cur
		if p == nil {
			break
		}
		s.mu.Unlock()
		if p.retired == nil {
			return
		}
		select {
		case <-p.retired:
		case <-ctx.Done():
			return
		}
	}
	defer s.mu.Unlock()

	cfg := s.cfg
	p := &pool{
		queue: make(chan queued, cfg.QueueSize),
		quit:  make(chan struct{}),
		sup:   rtsup.NewSupervisor(ctx, rtsup.WithLogger(s.log), rtsup.WithCancelOnError(false)),
	}
	s.cur = p
	s.spawn(p, cfg.Workers)
	s.log.Info("task engine started", logx.Int("workers", cfg.Workers), logx.Int("queue", cfg.QueueSize))
}

// Stop retires the current pool and waits for its workers until ctx ends.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	p := s.cur
	if p == nil {
		s.mu.Unlock()
		return
	}
	first := p.retired == nil
	if first {
		p.retired = make(chan struct{})
		close(p.quit)
	}
	retired := p.retired
	s.mu.Unlock()

	if first {
		p.sup.Cancel()
		go func() {
			_ = p.sup.Wait(context.Background())
			if n := s.discard(p); n > 0 {
				s.log.Warn("task engine dropped queued tasks", logx.Int("count", n))
			}
			s.mu.Lock()
			if s.cur == p {
				s.cur = nil
			}
			s.mu.Unlock()
			close(retired)
		}()
	}

	select {
	case <-retired:
		if first {
			s.log.Info("task engine stopped")
		}
	case <-ctx.Done():
		s.log.Warn("task engine stop timed out", logx.Err(ctx.Err()))
	}
}

// Enqueue queues t without blocking. A full queue returns ErrQueueFull.
func (s *Service) Enqueue(t Task) error {
	return s.enqueue(context.Background(), t, false)
}

// Submit waits for queue space until ctx ends or the engine stops.
func (s *Service) Submit(ctx context.Context, t Task) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.enqueue(ctx, t, true)
}

func (s *Service) enqueue(ctx context.Context, t Task, wait bool) error {
	if t.Run == nil {
		return errors.New("task Run is nil")
	}
	if t.Name = strings.TrimSpace(t.Name); t.Name == "" {
		return errors.New("task Name is required")
	}
	if strings.TrimSpace(t.ID) == "" {
		t.ID = uuid.NewString()
	}

	s.mu.Lock()
	cfg, p := s.cfg, s.cur
	s.mu.Unlock()
	switch {
	case !cfg.Enabled:
		return ErrDisabled
	case p == nil:
		return ErrStopped
	}
	select {
	case <-p.quit:
		return ErrStopping
	default:
	}

	q := queued{task: t, at: time.Now(), timeout: t.Timeout, exclusive: t.Overlap == OverlapSkipIfRunning}
	if q.timeout <= 0 {
		q.timeout = cfg.DefaultTimeout
	}
	if q.exclusive && !s.acquire(t.Name) {
		s.log.Debug("task skipped due to overlap", logx.String("task", t.Name), logx.String("id", t.ID))
		return ErrOverlapSkip
	}

	var err error
	if wait {
		select {
		case p.queue <- q:
		case <-ctx.Done():
			err = ctx.Err()
		case <-p.quit:
			err = ErrStopping
		}
	} else {
		select {
		case p.queue <- q:
		default:
			err = ErrQueueFull
			s.noteDrop(t, p)
		}
	}
	if err != nil && q.exclusive {
		s.release(t.Name)
	}
	return err
}

func (s *Service) acquire(name string) bool {
	s.busyMu.Lock()
	defer s.busyMu.Unlock()
	if _, ok := s.busy[name]; ok {
		return false
	}
	s.busy[name] = struct{}{}
	return true
}

func (s *Service) release(name string) {
	s.busyMu.Lock()
	delete(s.busy, name)
	s.busyMu.Unlock()
}

// noteDrop counts a rejected task and warns at most once per dropWarnEvery.
func (s *Service) noteDrop(t Task, p *pool) {
	total := s.dropped.Add(1)
	now := time.Now().UnixNano()
	prev := s.lastWarn.Load()
	if prev != 0 && now-prev < int64(dropWarnEvery) {
		return
	}
	if !s.lastWarn.CompareAndSwap(prev, now) {
		return
	}
	s.log.Warn("task dropped: queue full",
		logx.String("task", t.Name),
		logx.String("id", t.ID),
		logx.Int("queue_len", len(p.queue)),
		logx.Int("queue_cap", cap(p.queue)),
		logx.Uint64("dropped", total),
	)
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	cfg, p := s.cfg, s.cur
	s.mu.Unlock()

	snap := Snapshot{
		Enabled:        cfg.Enabled,
		Workers:        cfg.Workers,
		InFlight:       int(s.inFlight.Load()),
		Dropped:        s.dropped.Load(),
		DefaultTimeout: cfg.DefaultTimeout,
		History:        s.history.list(),
	}
	if p != nil {
		snap.QueueLen, snap.QueueCap = len(p.queue), cap(p.queue)
	}
	return snap
}
