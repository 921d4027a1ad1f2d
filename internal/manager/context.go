package manager

import (
	"github.com/google/uuid"

	"grimm.is/wrtd/internal/config"
	"grimm.is/wrtd/internal/firewall"
	"grimm.is/wrtd/internal/logging"
	"grimm.is/wrtd/internal/loop"
	"grimm.is/wrtd/internal/metrics"
	"grimm.is/wrtd/internal/prefixpool"
)

// Context is the shared record every manager receives at init. It is built
// once per daemon run. Only the manager mapping changes afterwards, growing
// as managers come online.
type Context struct {
	EtcDir string
	TmpDir string
	VarDir string
	UUID   uuid.UUID

	Global     *config.GlobalConfig
	Registry   *Registry
	PrefixPool *prefixpool.Pool
	Caller     *Caller
	Firewall   firewall.RuleEditor
	Loop       loop.Poster
	Logger     *logging.Logger
	Metrics    *metrics.Registry

	managers map[string]Manager
	order    []string
}

// Manager returns the named manager if it has been initialized.
func (c *Context) Manager(name string) (Manager, bool) {
	m, ok := c.managers[name]
	return m, ok
}

// Managers returns the initialized managers in initialization order.
func (c *Context) Managers() []Manager {
	out := make([]Manager, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.managers[name])
	}
	return out
}

func (c *Context) register(m Manager) {
	if c.managers == nil {
		c.managers = make(map[string]Manager)
	}
	if _, ok := c.managers[m.Name()]; !ok {
		c.order = append(c.order, m.Name())
	}
	c.managers[m.Name()] = m
}

// PluginLogger returns a logger scoped to a plugin.
func (c *Context) PluginLogger(typ PluginType, name string) *logging.Logger {
	l := c.Logger
	if l == nil {
		l = logging.Default()
	}
	return l.WithComponent(string(typ) + "/" + name)
}
