package app

import (
	"context"
	"fmt"

	"mindset/internal/eventbus"
	"mindset/internal/quotes"
	"mindset/internal/reminder"
	"mindset/internal/storage"
	logx "mindset/pkg/logx"
)

// Offline is a store-only handle for one-shot CLI commands. Tasks started
// through it are armed by the running daemon on its next reconcile.
type Offline struct {
	Config    *Config
	Reminders *reminder.Manager
	Quotes    *quotes.Provider

	log   logx.Logger
	store storage.Store
	unsub func()
	done  chan struct{}
}

// NewOffline loads the config and opens the store. Events raised by the
// reminder manager are logged through log.
func NewOffline(cfgPath string, log logx.Logger) (*Offline, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfgm := NewConfigManager(cfgPath)
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	sc, _ := mapStorageConfig(cfg)
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	qc, _ := mapQuotesConfig(cfg)

	bus := eventbus.New(log)
	events, unsub := bus.Subscribe(32)
	o := &Offline{
		Config: cfg,
		Quotes: quotes.New(qc, log.With(logx.String("comp", "quotes"))),
		log:    log,
		store:  store,
		unsub:  unsub,
		done:   make(chan struct{}),
	}
	o.Reminders = reminder.New(storage.NewGuard(store), nil, log.With(logx.String("comp", "reminder")), reminder.WithEvents(bus))
	go o.logEvents(events)
	return o, nil
}

func (o *Offline) logEvents(events <-chan eventbus.Event) {
	defer close(o.done)
	for e := range events {
		switch e.Kind {
		case eventbus.KindLog:
			o.log.Info(e.Text, logx.Int64("task_id", int64(e.TaskID)))
		case eventbus.KindError:
			o.log.Error(e.Text, logx.Int64("task_id", int64(e.TaskID)))
		}
	}
}

// Close flushes pending events and closes the store.
func (o *Offline) Close(ctx context.Context) error {
	o.unsub()
	select {
	case <-o.done:
	case <-ctx.Done():
	}
	return o.store.Close()
}
