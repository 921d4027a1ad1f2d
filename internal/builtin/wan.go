package builtin

import (
	"grimm.is/wrtd/internal/config"
	"grimm.is/wrtd/internal/logging"
	"grimm.is/wrtd/internal/manager"
)

// WAN hosts the WAN connection plugin named by wan-connection in the
// global config. Without one the daemon runs with no upstream.
type WAN struct {
	logger *logging.Logger
	plugin manager.Plugin
	owner  manager.InterfaceOwner
}

func (w *WAN) Name() string        { return NameWAN }
func (w *WAN) InitAfter() []string { return nil }

func (w *WAN) Init(cfg config.PluginConfig, tmpDir, varDir string, ctx *manager.Context) error {
	w.logger = ctx.PluginLogger(manager.TypeManager, NameWAN)

	if ctx.Global == nil || ctx.Global.WANConnection == "" {
		w.logger.Info("no wan connection configured")
		return nil
	}
	name := ctx.Global.WANConnection
	p, owner, err := initOwner(ctx, manager.TypeWANConn, name)
	if err != nil {
		return err
	}
	w.plugin, w.owner = p, owner
	w.logger.Info("wan connection plugin activated", "plugin", name)
	return nil
}

func (w *WAN) Dispose() error {
	if w.plugin == nil {
		return nil
	}
	p := w.plugin
	w.plugin, w.owner = nil, nil
	if err := p.Dispose(); err != nil {
		return err
	}
	w.logger.Info("wan connection plugin deactivated", "plugin", p.Name())
	return nil
}

// WANConnection returns the active WAN connection plugin, or nil.
func (w *WAN) WANConnection() manager.InterfaceOwner {
	return w.owner
}
