// Package events provides the daemon's pub/sub bus.
// Manager lifecycle and interface ownership changes are published here for
// collaborators outside the core (metrics, a management surface).
package events

import "time"

// EventType identifies the category of event.
type EventType string

const (
	// Manager lifecycle
	EventManagerInit    EventType = "manager.init"
	EventManagerDispose EventType = "manager.dispose"

	// Interface ownership
	EventInterfaceClaimed   EventType = "interface.claimed"
	EventInterfaceUnmanaged EventType = "interface.unmanaged"
	EventInterfaceReleased  EventType = "interface.released"

	// Daemon
	EventDaemonStopping EventType = "daemon.stopping"
)

// Event is the core message passed through the event bus.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Data      any       `json:"data"`
}

// ManagerData is the payload for manager lifecycle events.
type ManagerData struct {
	Name    string `json:"name"`
	Builtin bool   `json:"builtin,omitempty"`
	Error   string `json:"error,omitempty"`
}

// InterfaceData is the payload for interface ownership events.
// Owner is empty for unmanaged interfaces.
type InterfaceData struct {
	Interface string `json:"interface"`
	Owner     string `json:"owner,omitempty"`
}

// DaemonStoppingData is the payload for EventDaemonStopping.
type DaemonStoppingData struct {
	Restart bool `json:"restart"`
}
