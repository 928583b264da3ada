package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"mindset/internal/config"
	"mindset/pkg/systemdmanager"
)

func service(cfgPath string, args []string, out io.Writer) error {
	fs := newFlags("service", out)
	unit := fs.String("unit", "", "systemd unit (default: systemd.unit from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: service status|restart", errUsage)
	}

	name := strings.TrimSpace(*unit)
	if name == "" {
		cm := config.NewConfigManager(cfgPath)
		cfg, err := cm.Load()
		if err != nil {
			return err
		}
		name = strings.TrimSpace(cfg.Systemd.Unit)
	}
	if name == "" {
		name = config.DefaultUnit
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	m, err := systemdmanager.New(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	switch fs.Arg(0) {
	case "status":
		st, err := m.Status(ctx, name)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, st.String())
		return nil
	case "restart":
		if err := m.Restart(ctx, name); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s restarted\n", name)
		return nil
	default:
		return fmt.Errorf("%w: unknown service action %q", errUsage, fs.Arg(0))
	}
}
