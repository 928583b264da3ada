//go:build !linux

package systemdmanager

import (
	"context"
)

type Manager struct{}

func New(ctx context.Context) (*Manager, error) { return nil, ErrUnsupported }

func (m *Manager) Close() error { return nil }

func (m *Manager) Status(ctx context.Context, unit string) (*UnitStatus, error) {
	return nil, ErrUnsupported
}

func (m *Manager) Restart(ctx context.Context, unit string) error { return ErrUnsupported }
