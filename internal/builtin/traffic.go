package builtin

import (
	"fmt"

	"grimm.is/wrtd/internal/config"
	"grimm.is/wrtd/internal/logging"
	"grimm.is/wrtd/internal/manager"
	"grimm.is/wrtd/internal/network"
)

// IPForwardKey is the sysctl enabling IPv4 forwarding.
const IPForwardKey = "net.ipv4.ip_forward"

// Traffic enables IPv4 forwarding for the daemon's lifetime and restores
// the previous setting on dispose.
type Traffic struct {
	sysctl network.SystemController
	logger *logging.Logger

	previous string
	changed  bool
}

func (t *Traffic) Name() string        { return NameTraffic }
func (t *Traffic) InitAfter() []string { return nil }

func (t *Traffic) Init(cfg config.PluginConfig, tmpDir, varDir string, ctx *manager.Context) error {
	t.logger = ctx.PluginLogger(manager.TypeManager, NameTraffic)

	prev, err := t.sysctl.ReadSysctl(IPForwardKey)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", IPForwardKey, err)
	}
	t.previous = prev
	if prev == "1" {
		t.logger.Debug("ip forwarding already enabled")
		return nil
	}
	if err := t.sysctl.WriteSysctl(IPForwardKey, "1"); err != nil {
		return fmt.Errorf("failed to enable ip forwarding: %w", err)
	}
	t.changed = true
	t.logger.Info("ip forwarding enabled")
	return nil
}

func (t *Traffic) Dispose() error {
	if !t.changed {
		return nil
	}
	t.changed = false
	if err := t.sysctl.WriteSysctl(IPForwardKey, t.previous); err != nil {
		return fmt.Errorf("failed to restore %s: %w", IPForwardKey, err)
	}
	t.logger.Info("ip forwarding restored", "value", t.previous)
	return nil
}
