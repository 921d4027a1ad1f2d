package manager

import (
	"errors"
	"fmt"
	"runtime/debug"
	"slices"

	"grimm.is/wrtd/internal/config"
	"grimm.is/wrtd/internal/depgraph"
	"grimm.is/wrtd/internal/logging"
)

type entry struct {
	m       Manager
	builtin bool
	state   State
}

// Controller initializes the built-in managers and the registry's manager
// plugins, and disposes them in reverse. It is not safe for concurrent use;
// it runs on the daemon loop.
type Controller struct {
	ctx      *Context
	builtins []Manager
	logger   *logging.Logger

	entries map[string]*entry
	// initialized is the realized init order; disposal walks it backwards.
	initialized []*entry
}

// NewController creates a controller. builtins are initialized in the given
// order by InitBuiltins.
func NewController(ctx *Context, builtins []Manager, logger *logging.Logger) *Controller {
	if logger == nil {
		logger = logging.Default()
	}
	return &Controller{
		ctx:      ctx,
		builtins: builtins,
		logger:   logger.WithComponent("manager"),
		entries:  make(map[string]*entry),
	}
}

// InitBuiltins initializes the built-in managers in fixed order. They take
// no part in dependency resolution.
func (c *Controller) InitBuiltins() error {
	for _, m := range c.builtins {
		if _, dup := c.entries[m.Name()]; dup {
			return fmt.Errorf("%w: built-in manager %s", ErrDuplicatePlugin, m.Name())
		}
		e := &entry{m: m, builtin: true}
		c.entries[m.Name()] = e
		if err := c.initOne(e); err != nil {
			return err
		}
	}
	return nil
}

// LoadPlugins instantiates every manager plugin in the registry, resolves
// their order and initializes them. Any failure aborts: a cycle or unknown
// dependency before any plugin is initialized, an init error after the
// plugins before it are up. Those stay tracked for DisposeAll.
func (c *Controller) LoadPlugins() error {
	names := c.ctx.Registry.Names(TypeManager)

	plugins := make(map[string]Manager, len(names))
	for _, name := range names {
		if _, dup := c.entries[name]; dup {
			return fmt.Errorf("%w: manager plugin %s collides with a built-in", ErrDuplicatePlugin, name)
		}
		p, err := c.ctx.Registry.New(TypeManager, name)
		if err != nil {
			return err
		}
		m, ok := p.(Manager)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotManager, name)
		}
		if m.Name() != name {
			return fmt.Errorf("manager plugin registered as %s reports name %s", name, m.Name())
		}
		plugins[name] = m
	}

	graph := make(map[string][]string, len(plugins))
	for name, m := range plugins {
		var deps []string
		for _, dep := range m.InitAfter() {
			if _, ok := plugins[dep]; ok {
				deps = append(deps, dep)
				continue
			}
			if _, ok := c.entries[dep]; ok {
				// Built-ins are always up before any plugin.
				continue
			}
			return fmt.Errorf("%w: %s requires %s", ErrUnknownDependency, name, dep)
		}
		graph[name] = deps
	}

	order, err := depgraph.Resolve(graph)
	if err != nil {
		return fmt.Errorf("failed to order manager plugins: %w", err)
	}
	c.logger.Debug("manager plugin order resolved", "order", order)

	for _, name := range order {
		e := &entry{m: plugins[name]}
		c.entries[name] = e
		if err := c.initOne(e); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) initOne(e *entry) error {
	name := e.m.Name()
	path := config.PluginConfigPath(c.ctx.EtcDir, string(TypeManager), name)

	cfg, err := config.LoadPluginConfig(path)
	if err != nil {
		c.ctx.Metrics.RecordManagerError(name, "init")
		return fmt.Errorf("manager %s: %w", name, err)
	}

	if err := c.safeInit(e.m, cfg); err != nil {
		c.ctx.Metrics.RecordManagerError(name, "init")
		return fmt.Errorf("manager %s: init failed: %w", name, err)
	}

	e.state = StateInitialized
	c.initialized = append(c.initialized, e)
	c.ctx.Metrics.ManagerUp()
	if e.builtin {
		c.logger.Info("built-in manager activated", "manager", name)
	} else {
		c.logger.Info("manager plugin activated", "manager", name)
	}

	c.ctx.Caller.NotifyManagerInit(e.m, e.builtin)
	c.ctx.Caller.AddManager(e.m, e.builtin)
	c.ctx.register(e.m)
	return nil
}

func (c *Controller) safeInit(m Manager, cfg config.PluginConfig) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			c.logger.Error("manager init panicked", "manager", m.Name(), "stack", string(debug.Stack()))
		}
	}()
	return m.Init(cfg, c.ctx.TmpDir, c.ctx.VarDir, c.ctx)
}

// DisposeAll disposes every initialized manager in reverse init order,
// built-ins last. A failing or panicking Dispose is logged and the rest
// still run. Calling it again disposes nothing.
func (c *Controller) DisposeAll() error {
	var errs []error
	for _, e := range slices.Backward(c.initialized) {
		if e.state != StateInitialized {
			continue
		}
		name := e.m.Name()
		err := c.safeDispose(e.m)
		e.state = StateDisposed
		c.ctx.Metrics.ManagerDown()
		c.ctx.Caller.Hub().EmitManagerDispose(name, err)

		if err != nil {
			c.ctx.Metrics.RecordManagerError(name, "dispose")
			c.logger.Error("manager dispose failed", "manager", name, "error", err)
			errs = append(errs, fmt.Errorf("manager %s: %w", name, err))
			continue
		}
		c.logger.Info("manager deactivated", "manager", name)
	}
	return errors.Join(errs...)
}

func (c *Controller) safeDispose(m Manager) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return m.Dispose()
}

// InitOrder returns the names of managers in realized initialization order.
func (c *Controller) InitOrder() []string {
	out := make([]string, 0, len(c.initialized))
	for _, e := range c.initialized {
		out = append(out, e.m.Name())
	}
	return out
}

// State returns the lifecycle state of the named manager.
func (c *Controller) State(name string) State {
	if e, ok := c.entries[name]; ok {
		return e.state
	}
	return StateUnloaded
}
