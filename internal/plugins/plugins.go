// Package plugins registers the stock plugins with a manager.Registry.
package plugins

import (
	"grimm.is/wrtd/internal/manager"
	"grimm.is/wrtd/internal/network"
	"grimm.is/wrtd/internal/plugins/command"
	"grimm.is/wrtd/internal/plugins/lanbridge"
	"grimm.is/wrtd/internal/plugins/wanstatic"
)

// Deps are the host facilities the stock plugins need.
type Deps struct {
	Netlink network.Netlinker
}

// Register adds every stock plugin to reg.
func Register(reg *manager.Registry, deps Deps) error {
	entries := []struct {
		typ  manager.PluginType
		name string
		f    manager.Factory
	}{
		{manager.TypeWANConn, wanstatic.Name, func() manager.Plugin { return wanstatic.New() }},
		{manager.TypeLIF, lanbridge.Name, func() manager.Plugin { return lanbridge.New(deps.Netlink) }},
		{manager.TypeManager, command.Name, func() manager.Plugin { return command.New() }},
	}
	for _, e := range entries {
		if err := reg.Register(e.typ, e.name, e.f); err != nil {
			return err
		}
	}
	return nil
}
