package notifier

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	logx "mindset/pkg/logx"
)

// Service sends reminder pushes through a Sender.
// It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log     logx.Logger
	sender  Sender
	cfg     Config
	quiet   window
	limiter *rate.Limiter
	now     func() time.Time

	hmu     sync.Mutex
	history []HistoryItem
}

type Option func(*Service)

// WithClock overrides the time source used for quiet hours.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func New(cfg Config, sender Sender, log logx.Logger, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{log: log, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	s.applyLocked(cfg, sender)
	return s
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled && s.sender != nil
	s.mu.Unlock()
	return en
}

// Apply swaps policy and sender at runtime. A nil sender keeps the current one.
func (s *Service) Apply(cfg Config, sender Sender) {
	s.mu.Lock()
	if sender == nil {
		sender = s.sender
	}
	s.applyLocked(cfg, sender)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config, sender Sender) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 5 * time.Second
	}
	if strings.TrimSpace(cfg.Title) == "" {
		cfg.Title = DefaultTitle
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	w, err := parseWindow(cfg.Quiet)
	if err != nil {
		s.log.Warn("quiet hours ignored", logx.Err(err))
	}

	s.cfg = cfg
	s.quiet = w
	s.sender = sender
	// Token bucket: burst = rate per sec, so short spikes don't block too hard.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Send delivers text, retrying transient failures until cfg.Timeout elapses.
// It returns nil on success, an error matching ErrSkipped when delivery was
// intentionally not attempted, and a *DeliveryError otherwise.
func (s *Service) Send(ctx context.Context, text string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	cfg := s.cfg
	quiet := s.quiet
	lim := s.limiter
	sender := s.sender
	now := s.now()
	s.mu.Unlock()

	if !cfg.Enabled || sender == nil {
		return s.skip("", text, skipped("notifier disabled"))
	}
	if quiet.contains(now) {
		return s.skip(sender.Name(), text, skipped("quiet hours"))
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	msg := Message{Title: cfg.Title, Text: text}
	maxAttempts := 1 + cfg.RetryMax

	var lastErr error
	attempts := 0
attemptLoop:
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := lim.Wait(ctx); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			break
		}
		attempts = attempt
		err := sender.Send(ctx, msg)
		if err == nil {
			s.appendHistory(HistoryItem{At: time.Now(), Driver: sender.Name(), Text: text, Attempts: attempts})
			return nil
		}
		if errors.Is(err, ErrSkipped) {
			return s.skip(sender.Name(), text, err)
		}
		lastErr = err
		s.log.Debug("notify send failed", logx.String("driver", sender.Name()), logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", maxAttempts))

		if IsPermanent(err) || attempt >= maxAttempts {
			break
		}
		t := time.NewTimer(retryDelay(cfg, attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			break attemptLoop
		}
	}

	derr := &DeliveryError{Driver: sender.Name(), Attempts: attempts, Err: lastErr}
	s.appendHistory(HistoryItem{At: time.Now(), Driver: sender.Name(), Text: text, Attempts: attempts, Error: derr.Error()})
	return derr
}

func (s *Service) skip(driver, text string, err error) error {
	s.appendHistory(HistoryItem{At: time.Now(), Driver: driver, Text: text, Skipped: true, Error: err.Error()})
	return err
}

func (s *Service) Snapshot() []HistoryItem {
	s.hmu.Lock()
	out := append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return out
}

func (s *Service) appendHistory(item HistoryItem) {
	s.mu.Lock()
	size := s.cfg.HistorySize
	s.mu.Unlock()

	s.hmu.Lock()
	s.history = append(s.history, item)
	if len(s.history) > size {
		s.history = s.history[len(s.history)-size:]
	}
	s.hmu.Unlock()
}

func retryDelay(cfg Config, attempt int) time.Duration {
	// attempt starts at 1; the delay is for the NEXT attempt.
	d := cfg.RetryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cfg.RetryMaxDelay {
			d = cfg.RetryMaxDelay
			break
		}
	}
	// Jitter 0.7..1.3
	j := 0.7 + rand.Float64()*0.6
	d = time.Duration(float64(d) * j)
	if d < 0 {
		return 0
	}
	return min(d, cfg.RetryMaxDelay)
}
