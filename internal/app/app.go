package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"mindset/internal/eventbus"
	"mindset/internal/housekeeping"
	"mindset/internal/notifier"
	"mindset/internal/quotes"
	"mindset/internal/reminder"
	"mindset/internal/runtime/sdnotify"
	"mindset/internal/storage"
	"mindset/internal/task/engine"
	"mindset/internal/task/scheduler"
	logx "mindset/pkg/logx"
)

const (
	jobReconcile = "reconcile"
	jobWatchdog  = "systemd.watchdog"

	reconcileTimeout = 30 * time.Second
	watchdogTimeout  = 5 * time.Second
)

type App struct {
	cfgPath string

	cfgm *ConfigManager
	sup  *Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus
	out  io.Writer

	store storage.Store
	guard *storage.Guard

	engine *engine.Service
	sched  *scheduler.Service
	notif  *notifier.Service
	quotes *quotes.Provider
	house  *housekeeping.Service
	sd     *sdnotify.Notifier

	reminders *reminder.Manager

	drainCancel context.CancelFunc
}

type Option func(*App)

// WithLocalOutput sets where local reminder notifications are printed.
// Defaults to stdout.
func WithLocalOutput(w io.Writer) Option { return func(a *App) { a.out = w } }

func NewApp(cfgPath string, opts ...Option) (*App, error) {
	cfgm := NewConfigManager(cfgPath)
	cfgm.SetLogger(logx.NewConsole("INFO").With(logx.String("comp", "config")))
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	bus := eventbus.New(log.With(logx.String("comp", "eventbus")))

	sc, _ := mapStorageConfig(cfg)
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	log.Info("storage opened", logx.String("driver", sc.Driver))
	guard := storage.NewGuard(store)

	engCfg, _ := mapTaskEngineConfig(cfg)
	engineSvc := engine.New(engCfg, log.With(logx.String("comp", "taskengine")))

	ncfg, dc, _ := mapNotifierConfig(cfg)
	sender, err := notifier.NewSender(dc, log.With(logx.String("comp", "notifier")))
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	notifSvc := notifier.New(ncfg, sender, log.With(logx.String("comp", "notifier")))
	if !ncfg.Enabled {
		log.Warn("notifier disabled; reminders are shown locally only")
	}

	qcfg, _ := mapQuotesConfig(cfg)
	quoteSvc := quotes.New(qcfg, log.With(logx.String("comp", "quotes")))

	schedCfg, _ := mapSchedulerConfig(cfg)
	schedSvc := scheduler.New(schedCfg, scheduler.Deps{
		Store:    guard,
		Quotes:   quoteSvc,
		Notifier: notifSvc,
		Executor: engineSvc,
		Events:   bus,
		Log:      log.With(logx.String("comp", "scheduler")),
	})

	hcfg, _, _ := mapHousekeepingConfig(cfg)
	houseSvc := housekeeping.New(hcfg, engineSvc, log.With(logx.String("comp", "housekeeping")))

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		out:     os.Stdout,
		store:   store,
		guard:   guard,
		engine:  engineSvc,
		sched:   schedSvc,
		notif:   notifSvc,
		quotes:  quoteSvc,
		house:   houseSvc,
		sd:      sdnotify.New(cfg.Systemd.Notify, log.With(logx.String("comp", "systemd"))),
	}
	a.reminders = reminder.New(guard, schedSvc, log.With(logx.String("comp", "reminder")), reminder.WithEvents(bus))
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

func (a *App) Reminders() *reminder.Manager { return a.reminders }

func (a *App) Config() *Config { return a.cfgm.Get() }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, WithLogger(a.log), WithCancelOnError(true))
	a.cfgm.SetValidator(func(_ context.Context, cfg *Config) error { return validateConfig(cfg) })

	// The drain outlives the supervisor context so shutdown events are
	// still presented; Stop cancels it explicitly.
	events, unsub := a.bus.Subscribe(256)
	drainCtx, drainCancel := context.WithCancel(context.Background())
	a.drainCancel = drainCancel
	a.sup.Go0("eventbus.drain", func(context.Context) {
		defer unsub()
		a.drain(drainCtx, events)
	})

	runCtx := a.sup.Context()
	if a.engine.Enabled() {
		a.engine.Start(runCtx)
	} else {
		a.log.Warn("task engine disabled; reminders will not fire")
	}

	cfg := a.cfgm.Get()
	_, reconcile, _ := mapHousekeepingConfig(cfg)
	if err := a.addReconcile(reconcile); err != nil {
		return err
	}
	if iv := a.sd.WatchdogInterval(); iv > 0 {
		if err := a.house.Add(jobWatchdog, "@every "+iv.String(), watchdogTimeout, func(context.Context) error {
			return a.sd.Watchdog()
		}); err != nil {
			return err
		}
	}

	if err := a.sched.Start(runCtx); err != nil {
		return fmt.Errorf("scheduler start: %w", err)
	}
	a.house.Start(runCtx)

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.sd.Ready()
	a.log.Info("app started", logx.String("config", a.cfgPath))
	return nil
}

func (a *App) addReconcile(spec string) error {
	return a.house.Add(jobReconcile, spec, reconcileTimeout, a.sched.Reconcile)
}

// applyConfig pushes a committed reload into the live services.
func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *Config) {
	sections, attrs := SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	a.sd.Reloading()
	defer a.sd.Ready()

	if slices.Contains(sections, "storage") {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}
	if slices.Contains(sections, "systemd") {
		a.log.Warn("systemd config changed; restart required for changes to take effect")
	}

	a.logs.Apply(mapLoggingConfig(newCfg))

	if ec, err := mapTaskEngineConfig(newCfg); err != nil {
		a.log.Warn("invalid task_engine config; keeping previous", logx.Err(err))
	} else {
		wasEnabled := a.engine.Enabled()
		a.engine.Apply(ctx, ec)
		switch {
		case !wasEnabled && ec.Enabled:
			a.log.Info("task engine enabled via config")
			a.engine.Start(ctx)
		case wasEnabled && !ec.Enabled:
			a.log.Info("task engine disabled via config")
		}
	}

	if sc, err := mapSchedulerConfig(newCfg); err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
	} else {
		a.sched.Apply(sc)
	}

	if slices.Contains(sections, "notifier") {
		nc, dc, err := mapNotifierConfig(newCfg)
		if err == nil {
			var sender notifier.Sender
			sender, err = notifier.NewSender(dc, a.log.With(logx.String("comp", "notifier")))
			if err == nil {
				a.notif.Apply(nc, sender)
				if !nc.Enabled {
					a.log.Warn("notifier disabled; reminders are shown locally only")
				}
			}
		}
		if err != nil {
			a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
		}
	}

	if qc, err := mapQuotesConfig(newCfg); err != nil {
		a.log.Warn("invalid quotes config; keeping previous", logx.Err(err))
	} else {
		a.quotes.Apply(qc)
	}

	if hc, reconcile, err := mapHousekeepingConfig(newCfg); err != nil {
		a.log.Warn("invalid housekeeping config; keeping previous", logx.Err(err))
	} else {
		if err := a.addReconcile(reconcile); err != nil {
			a.log.Warn("reconcile job not updated", logx.Err(err))
		}
		a.house.Apply(ctx, hc)
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// drain presents scheduler events until ctx is canceled, then flushes
// whatever is already buffered.
func (a *App) drain(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			a.present(e)
		case <-ctx.Done():
			for {
				select {
				case e, ok := <-events:
					if !ok {
						return
					}
					a.present(e)
				default:
					return
				}
			}
		}
	}
}

func (a *App) present(e eventbus.Event) {
	id := logx.Int64("task_id", int64(e.TaskID))
	switch e.Kind {
	case eventbus.KindLog:
		a.log.Info(e.Text, id)
	case eventbus.KindError:
		a.log.Error(e.Text, id)
	case eventbus.KindStatus:
		a.log.Debug("task status", id, logx.String("status", string(e.Status)))
	case eventbus.KindTaskDeleted:
		a.log.Debug("task deleted", id)
	case eventbus.KindLocalNotify:
		if a.out != nil {
			fmt.Fprintf(a.out, "🔔 %s: %s\n", notifier.DefaultTitle, e.Text)
		}
	default:
		a.log.Debug("event", logx.String("event", e.String()))
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sd.Stopping()

	// First, cancel the app run context so background loops start unwinding immediately.
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		a.stopStep(ctx, name, max, fn)
	}

	step("housekeeping", 2*time.Second, func(c context.Context) error { a.house.Stop(c); return nil })
	step("scheduler", 2*time.Second, a.sched.Stop)
	step("taskengine", 3*time.Second, func(c context.Context) error { a.engine.Stop(c); return nil })
	step("storage", 1*time.Second, func(context.Context) error { return a.store.Close() })
	step("eventbus", time.Second, func(context.Context) error {
		if a.drainCancel != nil {
			a.drainCancel()
		}
		return nil
	})

	// Finally, wait for supervised goroutines (config watch/reload, event drain).
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// stopStep runs one shutdown step bounded by max and the caller's deadline
// so one component cannot stall the whole stop.
func (a *App) stopStep(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

	if dl, ok := ctx.Deadline(); ok {
		max = min(max, time.Until(dl))
	}
	if max <= 0 {
		a.log.Warn("stop step skipped (deadline reached)", logx.String("name", name))
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		took := time.Since(start)
		if took >= 500*time.Millisecond {
			a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
		} else {
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
		}
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Err(stepCtx.Err()),
			logx.Duration("elapsed", time.Since(start)),
		)
		go func() {
			err := <-done
			a.log.Info("stop step finished after deadline",
				logx.String("name", name), logx.Err(err), logx.Duration("took", time.Since(start)))
		}()
	}
}
