package supervisor

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	logx "mindset/pkg/logx"
)

// A run that lasted this long resets the backoff.
const healthyRun = 30 * time.Second

type RestartOption func(*restartPolicy)

type restartPolicy struct {
	min, max time.Duration
	// limit caps restarts; zero or less is unlimited.
	limit   int
	publish bool
}

// WithRestartBackoff sets the backoff window between restarts.
func WithRestartBackoff(min, max time.Duration) RestartOption {
	return func(p *restartPolicy) {
		if min > 0 {
			p.min = min
		}
		if max > 0 {
			p.max = max
		}
	}
}

// WithMaxRestarts gives up after n restarts. The first run does not count.
func WithMaxRestarts(n int) RestartOption { return func(p *restartPolicy) { p.limit = n } }

// WithPublishFirstError records the first failure in Err while still
// restarting.
func WithPublishFirstError(enabled bool) RestartOption {
	return func(p *restartPolicy) { p.publish = enabled }
}

type backoff struct {
	min, max, cur time.Duration
}

// next returns the current delay plus up to 20% jitter and doubles it.
func (b *backoff) next() time.Duration {
	d := min(max(b.cur, b.min), b.max)
	if j := d / 5; j > 0 {
		d += rand.N(j + 1)
	}
	b.cur = min(max(b.cur, b.min)*2, b.max)
	return d
}

func (b *backoff) reset() { b.cur = b.min }

// GoRestart keeps fn running until the context ends. Errors and panics
// restart it after a jittered exponential backoff; a nil return or
// context.Canceled ends it.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error, opts ...RestartOption) {
	if fn == nil {
		return
	}
	pol := restartPolicy{min: 250 * time.Millisecond, max: 30 * time.Second}
	for _, o := range opts {
		o(&pol)
	}
	pol.max = max(pol.max, pol.min)

	s.Go0(name+".restart", func(ctx context.Context) {
		bo := backoff{min: pol.min, max: pol.max, cur: pol.min}
		for n := 1; ctx.Err() == nil; n++ {
			began := time.Now()
			err := s.guard(name, fn)
			if ctx.Err() != nil || clean(err) {
				return
			}
			err = fmt.Errorf("%s: %w", name, err)
			if pol.publish {
				s.record(err)
			}
			s.restarts.Add(1)
			if pol.limit > 0 && n > pol.limit {
				s.log.Error("goroutine gave up after restarts", logx.String("name", name), logx.Int("restarts", n), logx.Err(err))
				s.fail(err)
				return
			}
			if time.Since(began) >= healthyRun {
				bo.reset()
			}
			wait := bo.next()
			s.log.Warn("goroutine restarting", logx.String("name", name), logx.Duration("backoff", wait), logx.Err(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	})
}
