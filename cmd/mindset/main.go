package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mindset/internal/app"
	logx "mindset/pkg/logx"
)

const usage = `usage: mindset [-config path] <command> [flags] [args]

commands:
  run                          run the scheduler daemon
  add [flags]                  create a reminder (see "mindset add -h")
  list [-status s]             list reminders
  start|stop|toggle|delete ID  change one reminder
  next [-n N] ID               preview upcoming fire times
  quote                        print a quote
  service status|restart       inspect or restart the systemd unit
`

func main() {
	fs := flag.NewFlagSet("mindset", flag.ExitOnError)
	cfgPath := fs.String("config", "./config.yaml", "path to config (json or yaml)")
	logLevel := fs.String("log-level", "warn", "console log level for one-shot commands")
	fs.Usage = func() { fmt.Fprint(fs.Output(), usage) }
	_ = fs.Parse(os.Args[1:])

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		os.Exit(2)
	}

	var err error
	switch cmd, rest := args[0], args[1:]; cmd {
	case "run":
		err = run(*cfgPath)
	case "service":
		err = service(*cfgPath, rest, os.Stdout)
	default:
		err = oneShot(*cfgPath, *logLevel, cmd, rest, os.Stdout)
	}
	if errors.Is(err, errUsage) {
		fs.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "mindset:", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

func run(cfgPath string) error {
	a, err := app.NewApp(cfgPath)
	if err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		_ = a.Stop(stopCtx, app.StopFatalError)
		return fmt.Errorf("start: %w", err)
	}

	var reason app.StopReason
	select {
	case sig := <-sigs:
		reason = app.StopSIGINT
		if sig == syscall.SIGTERM {
			reason = app.StopSIGTERM
		}
	case <-a.Done():
		reason = app.StopFatalError
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx, reason); err != nil {
		return err
	}
	if reason == app.StopFatalError {
		return a.Err()
	}
	return nil
}

// oneShot runs a store-only command against the configured database.
func oneShot(cfgPath, level, cmd string, args []string, out io.Writer) error {
	h, ok := commands[cmd]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	off, err := app.NewOffline(cfgPath, logx.NewConsole(level))
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer closeCancel()
		_ = off.Close(closeCtx)
	}()
	return h(ctx, off, args, out)
}
