// Package builtin implements the three managers every daemon run has:
// traffic, wan and lan. They are initialized in that order before any
// manager plugin and disposed after all of them.
package builtin

import (
	"fmt"

	"grimm.is/wrtd/internal/config"
	"grimm.is/wrtd/internal/manager"
	"grimm.is/wrtd/internal/network"
)

// Names of the built-in managers.
const (
	NameTraffic = "traffic"
	NameWAN     = "wan"
	NameLAN     = "lan"
)

// Deps are the host facilities the built-ins drive.
type Deps struct {
	Netlink network.Netlinker
	Sysctl  network.SystemController
}

// Set holds the built-in managers.
type Set struct {
	Traffic *Traffic
	WAN     *WAN
	LAN     *LAN
}

// New builds the built-in managers.
func New(deps Deps) *Set {
	sys := deps.Sysctl
	if sys == nil {
		sys = network.DefaultSystemController
	}
	return &Set{
		Traffic: &Traffic{sysctl: sys},
		WAN:     &WAN{},
		LAN:     &LAN{links: deps.Netlink},
	}
}

// Managers returns the built-ins in initialization order.
func (s *Set) Managers() []manager.Manager {
	return []manager.Manager{s.Traffic, s.WAN, s.LAN}
}

// initOwner builds, configures and initializes an interface-owning plugin
// of the given type.
func initOwner(ctx *manager.Context, typ manager.PluginType, name string) (manager.Plugin, manager.InterfaceOwner, error) {
	p, err := ctx.Registry.New(typ, name)
	if err != nil {
		return nil, nil, err
	}
	owner, ok := p.(manager.InterfaceOwner)
	if !ok {
		return nil, nil, fmt.Errorf("%s plugin %s cannot own interfaces", typ, name)
	}

	cfg, err := config.LoadPluginConfig(config.PluginConfigPath(ctx.EtcDir, string(typ), name))
	if err != nil {
		return nil, nil, fmt.Errorf("%s plugin %s: %w", typ, name, err)
	}
	if err := p.Init(cfg, ctx.TmpDir, ctx.VarDir, ctx); err != nil {
		return nil, nil, fmt.Errorf("%s plugin %s: init failed: %w", typ, name, err)
	}
	return p, owner, nil
}
