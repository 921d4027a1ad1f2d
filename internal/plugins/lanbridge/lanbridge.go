// Package lanbridge is a LAN interface plugin that enslaves matching ports
// into the LAN bridge.
package lanbridge

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"grimm.is/wrtd/internal/config"
	"grimm.is/wrtd/internal/logging"
	"grimm.is/wrtd/internal/manager"
	"grimm.is/wrtd/internal/network"
)

// Name is the plugin's registry name.
const Name = "bridge"

// DefaultPrefixes are the port name prefixes claimed by default.
var DefaultPrefixes = []string{"wl", "en", "eth"}

// Config is read from lif-bridge.json.
type Config struct {
	Prefixes []string `json:"prefixes"`
	// Exclude lists interfaces never claimed, e.g. a dedicated uplink.
	Exclude []string `json:"exclude"`
}

// Plugin enslaves claimed ports to the bridge.
type Plugin struct {
	links  network.Netlinker
	cfg    Config
	bridge string
	logger *logging.Logger

	ports map[string]struct{}
}

// New returns an uninitialized plugin.
func New(links network.Netlinker) *Plugin {
	return &Plugin{links: links, ports: make(map[string]struct{})}
}

func (p *Plugin) Name() string { return Name }

func (p *Plugin) Init(cfg config.PluginConfig, tmpDir, varDir string, ctx *manager.Context) error {
	p.logger = ctx.PluginLogger(manager.TypeLIF, Name)
	if p.links == nil {
		return errors.New("no netlink backend")
	}
	if err := cfg.Decode(&p.cfg); err != nil {
		return err
	}
	if len(p.cfg.Prefixes) == 0 {
		p.cfg.Prefixes = DefaultPrefixes
	}
	p.bridge = config.DefaultLANBridge
	if ctx.Global != nil && ctx.Global.LANBridge != "" {
		p.bridge = ctx.Global.LANBridge
	}
	return nil
}

func (p *Plugin) matches(name string) bool {
	if slices.Contains(p.cfg.Exclude, name) {
		return false
	}
	for _, prefix := range p.cfg.Prefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// InterfaceAppeared enslaves a matching port. A port that cannot be
// enslaved is declined.
func (p *Plugin) InterfaceAppeared(name string) bool {
	if !p.matches(name) {
		return false
	}
	if err := p.enslave(name); err != nil {
		p.logger.Error("failed to add port", "interface", name, "bridge", p.bridge, "error", err)
		return false
	}
	p.ports[name] = struct{}{}
	p.logger.Info("port added", "interface", name, "bridge", p.bridge)
	return true
}

func (p *Plugin) enslave(name string) error {
	br, err := p.links.LinkByName(p.bridge)
	if err != nil {
		return fmt.Errorf("bridge: %w", err)
	}
	link, err := p.links.LinkByName(name)
	if err != nil {
		return err
	}
	if err := p.links.LinkSetMaster(link, br); err != nil {
		return err
	}
	return p.links.LinkSetUp(link)
}

// InterfaceDisappeared forgets the port. The kernel has already removed it
// from the bridge.
func (p *Plugin) InterfaceDisappeared(name string) {
	if _, ok := p.ports[name]; !ok {
		return
	}
	delete(p.ports, name)
	p.logger.Info("port removed", "interface", name, "bridge", p.bridge)
}

// Dispose detaches every port still held.
func (p *Plugin) Dispose() error {
	var errs []error
	for _, name := range slices.Sorted(maps.Keys(p.ports)) {
		link, err := p.links.LinkByName(name)
		if err == nil {
			err = p.links.LinkSetNoMaster(link)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("port %s: %w", name, err))
		}
		delete(p.ports, name)
	}
	return errors.Join(errs...)
}

// Ports returns the enslaved ports, sorted.
func (p *Plugin) Ports() []string {
	return slices.Sorted(maps.Keys(p.ports))
}
