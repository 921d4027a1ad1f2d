package manager

import (
	"fmt"

	"grimm.is/wrtd/internal/events"
	"grimm.is/wrtd/internal/logging"
)

// Caller dispatches manager notifications: directly to managers that
// implement InitListener, and as events on the hub for everything else.
type Caller struct {
	hub      *events.Hub
	logger   *logging.Logger
	managers []Manager
	builtin  map[string]bool
}

// NewCaller creates a caller publishing on hub.
func NewCaller(hub *events.Hub, logger *logging.Logger) *Caller {
	if logger == nil {
		logger = logging.Default()
	}
	return &Caller{
		hub:     hub,
		logger:  logger.WithComponent("caller"),
		builtin: make(map[string]bool),
	}
}

// AddManager makes m a notification target.
func (c *Caller) AddManager(m Manager, builtin bool) {
	c.managers = append(c.managers, m)
	c.builtin[m.Name()] = builtin
}

// NotifyManagerInit tells every listener added so far that m is up, then
// publishes events.EventManagerInit. A panicking listener is logged and
// skipped.
func (c *Caller) NotifyManagerInit(m Manager, builtin bool) {
	for _, target := range c.managers {
		l, ok := target.(InitListener)
		if !ok {
			continue
		}
		c.call(target.Name(), func() { l.OnManagerInit(m) })
	}
	c.hub.EmitManagerInit(m.Name(), builtin)
}

func (c *Caller) call(target string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("listener panicked", "manager", target, "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

// Managers returns the notification targets in the order they were added.
func (c *Caller) Managers() []Manager {
	return append([]Manager(nil), c.managers...)
}

// Hub returns the event hub.
func (c *Caller) Hub() *events.Hub {
	return c.hub
}
