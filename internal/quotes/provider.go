package quotes

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	logx "mindset/pkg/logx"
)

// Provider hands out quotes with a cooldown on recent picks.
// It is safe for concurrent use.
type Provider struct {
	log logx.Logger

	mu  sync.Mutex // serializes pick + state write
	cfg Config
	rng *rand.Rand

	sf      singleflight.Group
	cacheMu sync.RWMutex
	cache   *pool
	builtin []Quote
}

type Option func(*Provider)

// WithRand fixes the random source.
func WithRand(r *rand.Rand) Option { return func(p *Provider) { p.rng = r } }

func New(cfg Config, log logx.Logger, opts ...Option) *Provider {
	if log.IsZero() {
		log = logx.Nop()
	}
	p := &Provider{log: log}
	p.cfg = normalize(cfg)
	for _, o := range opts {
		o(p)
	}
	if p.rng == nil {
		now := uint64(time.Now().UnixNano())
		p.rng = rand.New(rand.NewPCG(now, now>>17|1))
	}
	return p
}

func normalize(cfg Config) Config {
	cfg.File = strings.TrimSpace(cfg.File)
	cfg.StatePath = strings.TrimSpace(cfg.StatePath)
	if cfg.StatePath == "" {
		cfg.StatePath = DefaultStatePath
	}
	if cfg.History <= 0 {
		cfg.History = DefaultHistory
	}
	return cfg
}

// Apply swaps the config. The pool cache is dropped when the file changes.
func (p *Provider) Apply(cfg Config) {
	cfg = normalize(cfg)
	p.mu.Lock()
	prev := p.cfg
	p.cfg = cfg
	p.mu.Unlock()
	if prev.File != cfg.File {
		p.cacheMu.Lock()
		p.cache = nil
		p.cacheMu.Unlock()
	}
}

// Next returns the next quote text. The returned text is always usable: on
// failure it is one of the fallback messages and err matches ErrUnavailable.
func (p *Provider) Next(ctx context.Context) (string, error) {
	p.mu.Lock()
	cfg := p.cfg
	p.mu.Unlock()

	qs, err := p.load(ctx, cfg.File)
	if err != nil {
		return MsgUnavailable, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(qs) == 0 {
		return MsgEmpty, ErrEmpty
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	st := readState(cfg.StatePath)
	idx := Select(len(qs), st.recent, p.rng)
	st.push(idx, cfg.History)
	if err := writeState(cfg.StatePath, st); err != nil {
		p.log.Warn("quote state not saved", logx.String("path", cfg.StatePath), logx.Err(err))
	}
	return qs[idx].String(), nil
}

// Select picks a random index in [0, n) that is not in recent. When every
// index is recent the whole range is eligible again. It returns -1 for n <= 0.
func Select(n int, recent []int, rng *rand.Rand) int {
	if n <= 0 {
		return -1
	}
	seen := make(map[int]struct{}, len(recent))
	for _, i := range recent {
		seen[i] = struct{}{}
	}
	avail := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if _, ok := seen[i]; !ok {
			avail = append(avail, i)
		}
	}
	if len(avail) == 0 {
		for i := 0; i < n; i++ {
			avail = append(avail, i)
		}
	}
	if rng == nil {
		return avail[rand.IntN(len(avail))]
	}
	return avail[rng.IntN(len(avail))]
}

func (p *Provider) load(ctx context.Context, path string) ([]Quote, error) {
	if path == "" {
		return p.builtinPool()
	}

	p.cacheMu.RLock()
	cached := p.cache
	p.cacheMu.RUnlock()

	if cached != nil && !p.stale(path, cached) {
		return cached.quotes, nil
	}

	ch := p.sf.DoChan(path, func() (any, error) {
		pl, err := loadPoolFile(path)
		if err != nil {
			return nil, err
		}
		p.cacheMu.Lock()
		p.cache = &pl
		p.cacheMu.Unlock()
		p.log.Debug("quote pool loaded", logx.String("path", path), logx.Int("count", len(pl.quotes)))
		return pl.quotes, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Quote), nil
	}
}

func (p *Provider) stale(path string, cached *pool) bool {
	st, err := statFile(path)
	if err != nil {
		return true
	}
	return !st.ModTime().Equal(cached.mtime) || st.Size() != cached.size
}

func (p *Provider) builtinPool() ([]Quote, error) {
	p.cacheMu.RLock()
	b := p.builtin
	p.cacheMu.RUnlock()
	if b != nil {
		return b, nil
	}
	qs, err := parsePool(defaultQuotesJSON)
	if err != nil {
		return nil, errors.Join(errors.New("built-in quotes"), err)
	}
	p.cacheMu.Lock()
	p.builtin = qs
	p.cacheMu.Unlock()
	return qs, nil
}
