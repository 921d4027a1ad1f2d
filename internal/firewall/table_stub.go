//go:build !linux

package firewall

import "grimm.is/wrtd/internal/logging"

// TableManager is a stub for non-Linux systems.
type TableManager struct{}

// Open always fails on non-Linux systems.
func Open(ns string, logger *logging.Logger) (*TableManager, error) {
	return nil, ErrNotSupported
}

func (m *TableManager) Provision() error { return ErrNotSupported }

func (m *TableManager) ForceDelete() error { return ErrNotSupported }

func (m *TableManager) AddMasquerade(chain, oif, comment string) error { return ErrNotSupported }

func (m *TableManager) DeleteRulesByComment(chain, prefix string) error { return ErrNotSupported }

func (m *TableManager) Close() error { return nil }
