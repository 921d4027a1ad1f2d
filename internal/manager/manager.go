// Package manager defines the manager plugin contract and drives manager
// lifecycles.
//
// A manager is a long-lived component governing one functional area. The
// built-in managers (traffic, wan, lan) always exist and come up first in a
// fixed order. Pluggable managers come from the Registry and are initialized
// in dependency order. Disposal is the exact reverse of the realized
// initialization order.
package manager

import (
	"errors"

	"grimm.is/wrtd/internal/config"
)

// Errors returned by the controller and registry.
var (
	ErrUnknownPlugin     = errors.New("unknown plugin")
	ErrDuplicatePlugin   = errors.New("duplicate plugin")
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrNotManager        = errors.New("plugin does not implement Manager")
)

// State is a manager's lifecycle state.
type State int

const (
	StateUnloaded State = iota
	StateInitialized
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateInitialized:
		return "initialized"
	case StateDisposed:
		return "disposed"
	}
	return "unknown"
}

// Plugin is anything the registry can build: managers, WAN connection
// plugins and LAN interface plugins.
type Plugin interface {
	Name() string
	// Init is called once. cfg is the plugin's own configuration object,
	// tmpDir and varDir are the daemon's scratch and persistent roots.
	Init(cfg config.PluginConfig, tmpDir, varDir string, ctx *Context) error
	// Dispose is called once, and only after a successful Init.
	Dispose() error
}

// Manager is a plugin with declared initialization dependencies.
type Manager interface {
	Plugin
	// InitAfter names the managers that must be initialized first.
	InitAfter() []string
}

// InterfaceOwner is implemented by plugins that can own network interfaces.
type InterfaceOwner interface {
	Name() string
	// InterfaceAppeared offers the interface; returning true claims it.
	InterfaceAppeared(name string) bool
	// InterfaceDisappeared tells the owner a claimed interface is gone.
	InterfaceDisappeared(name string)
}

// InitListener is implemented by managers that want to hear about every
// manager that comes online after them.
type InitListener interface {
	OnManagerInit(m Manager)
}
