// Package wanstatic is a WAN connection plugin that takes a fixed uplink
// interface and masquerades traffic leaving through it.
package wanstatic

import (
	"errors"
	"fmt"
	"strings"

	"grimm.is/wrtd/internal/config"
	"grimm.is/wrtd/internal/firewall"
	"grimm.is/wrtd/internal/logging"
	"grimm.is/wrtd/internal/manager"
)

// Name is the plugin's registry name.
const Name = "static"

// DefaultPrefixes are matched when no interface is configured.
var DefaultPrefixes = []string{"eth", "en"}

// Config is read from wconn-static.json.
type Config struct {
	// Interface is the uplink. When empty, the first offered interface
	// matching Prefixes is taken.
	Interface string   `json:"interface"`
	Prefixes  []string `json:"prefixes"`
}

// Plugin owns at most one uplink at a time.
type Plugin struct {
	cfg    Config
	fw     firewall.RuleEditor
	logger *logging.Logger

	uplink string
}

// New returns an uninitialized plugin.
func New() *Plugin {
	return &Plugin{}
}

func (p *Plugin) Name() string { return Name }

func (p *Plugin) Init(cfg config.PluginConfig, tmpDir, varDir string, ctx *manager.Context) error {
	p.logger = ctx.PluginLogger(manager.TypeWANConn, Name)
	if err := cfg.Decode(&p.cfg); err != nil {
		return err
	}
	if len(p.cfg.Prefixes) == 0 {
		p.cfg.Prefixes = DefaultPrefixes
	}
	if ctx.Firewall == nil {
		return errors.New("no firewall table")
	}
	p.fw = ctx.Firewall
	return nil
}

func (p *Plugin) matches(name string) bool {
	if p.cfg.Interface != "" {
		return name == p.cfg.Interface
	}
	for _, prefix := range p.cfg.Prefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func comment(iface string) string {
	return "wconn-" + Name + ":" + iface
}

// InterfaceAppeared claims name if no uplink is held and name matches.
func (p *Plugin) InterfaceAppeared(name string) bool {
	if p.uplink != "" || !p.matches(name) {
		return false
	}
	if err := p.fw.AddMasquerade(firewall.ChainNATPost, name, comment(name)); err != nil {
		p.logger.Error("failed to install masquerade", "interface", name, "error", err)
		return false
	}
	p.uplink = name
	p.logger.Info("uplink up", "interface", name)
	return true
}

// InterfaceDisappeared drops the uplink's masquerade rule.
func (p *Plugin) InterfaceDisappeared(name string) {
	if name != p.uplink {
		return
	}
	if err := p.release(); err != nil {
		p.logger.Error("failed to remove masquerade", "interface", name, "error", err)
	}
	p.logger.Info("uplink down", "interface", name)
}

func (p *Plugin) release() error {
	name := p.uplink
	p.uplink = ""
	if err := p.fw.DeleteRulesByComment(firewall.ChainNATPost, comment(name)); err != nil {
		return fmt.Errorf("uplink %s: %w", name, err)
	}
	return nil
}

func (p *Plugin) Dispose() error {
	if p.uplink == "" {
		return nil
	}
	return p.release()
}

// Uplink returns the claimed interface, or "".
func (p *Plugin) Uplink() string {
	return p.uplink
}
