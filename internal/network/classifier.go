package network

import (
	"fmt"
	"runtime/debug"
	"slices"

	"grimm.is/wrtd/internal/events"
	"grimm.is/wrtd/internal/logging"
	"grimm.is/wrtd/internal/manager"
	"grimm.is/wrtd/internal/metrics"
)

type unmanagedOwner struct{}

func (unmanagedOwner) Name() string                  { return "unmanaged" }
func (unmanagedOwner) InterfaceAppeared(string) bool { return false }
func (unmanagedOwner) InterfaceDisappeared(string)   {}

// Unmanaged is the owner recorded for an interface nobody claimed. It is a
// tracked state: the interface is not offered again until it disappears.
var Unmanaged manager.InterfaceOwner = unmanagedOwner{}

// WANSource yields the configured WAN connection plugin, or nil.
type WANSource interface {
	WANConnection() manager.InterfaceOwner
}

// LANSource yields the LAN interface plugins in priority order.
type LANSource interface {
	LANInterfaces() []manager.InterfaceOwner
}

// Classifier maps each observed interface to exactly one owner.
type Classifier struct {
	wan     WANSource
	lan     LANSource
	hub     *events.Hub
	metrics *metrics.Registry
	logger  *logging.Logger

	owners map[string]manager.InterfaceOwner
}

// NewClassifier creates a classifier. wan and lan may be nil.
func NewClassifier(wan WANSource, lan LANSource, hub *events.Hub, m *metrics.Registry, logger *logging.Logger) *Classifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &Classifier{
		wan:     wan,
		lan:     lan,
		hub:     hub,
		metrics: m,
		logger:  logger.WithComponent("classifier"),
		owners:  make(map[string]manager.InterfaceOwner),
	}
}

// Diff compares a fresh enumeration with the tracked set.
func (c *Classifier) Diff(current []string) (added, removed []string) {
	seen := make(map[string]struct{}, len(current))
	for _, name := range current {
		seen[name] = struct{}{}
		if _, ok := c.owners[name]; !ok {
			added = append(added, name)
		}
	}
	for name := range c.owners {
		if _, ok := seen[name]; !ok {
			removed = append(removed, name)
		}
	}
	slices.Sort(added)
	slices.Sort(removed)
	return added, removed
}

// Apply processes removals, then additions. Interfaces in neither set are
// left alone.
func (c *Classifier) Apply(added, removed []string) {
	if len(added) == 0 && len(removed) == 0 {
		return
	}
	for _, name := range sorted(removed) {
		c.remove(name)
	}
	for _, name := range sorted(added) {
		if _, tracked := c.owners[name]; tracked {
			continue
		}
		c.add(name)
	}
	c.metrics.SetOwned(c.counts())
}

func (c *Classifier) remove(name string) {
	owner, ok := c.owners[name]
	if !ok {
		return
	}
	delete(c.owners, name)

	if owner == Unmanaged {
		c.logger.Debug("unmanaged interface gone", "interface", name)
		return
	}
	if err := c.guard(owner, name, func() { owner.InterfaceDisappeared(name) }); err != nil {
		c.logger.Error("owner failed on interface removal", "interface", name, "owner", owner.Name(), "error", err)
	}
	c.logger.Info("interface released", "interface", name, "owner", owner.Name())
	c.hub.EmitInterface(events.EventInterfaceReleased, name, owner.Name())
	c.metrics.RecordTransition("released")
}

func (c *Classifier) add(name string) {
	for _, owner := range c.candidates() {
		var claimed bool
		err := c.guard(owner, name, func() { claimed = owner.InterfaceAppeared(name) })
		if err != nil {
			// Left untracked, so the next scan offers it again.
			c.logger.Error("owner failed on interface offer", "interface", name, "owner", owner.Name(), "error", err)
			return
		}
		if claimed {
			c.owners[name] = owner
			c.logger.Info("interface claimed", "interface", name, "owner", owner.Name())
			c.hub.EmitInterface(events.EventInterfaceClaimed, name, owner.Name())
			c.metrics.RecordTransition("claimed")
			return
		}
	}

	c.owners[name] = Unmanaged
	c.logger.Info("interface unmanaged", "interface", name)
	c.hub.EmitInterface(events.EventInterfaceUnmanaged, name, Unmanaged.Name())
	c.metrics.RecordTransition("unmanaged")
}

func (c *Classifier) candidates() []manager.InterfaceOwner {
	var out []manager.InterfaceOwner
	if c.wan != nil {
		if w := c.wan.WANConnection(); w != nil {
			out = append(out, w)
		}
	}
	if c.lan != nil {
		for _, l := range c.lan.LANInterfaces() {
			if l != nil {
				out = append(out, l)
			}
		}
	}
	return out
}

func (c *Classifier) guard(owner manager.InterfaceOwner, name string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			c.logger.Debug("owner panic", "interface", name, "owner", owner.Name(), "stack", string(debug.Stack()))
		}
	}()
	fn()
	return nil
}

// counts returns the number of interfaces per owner name. Unmanaged
// interfaces are counted apart from any owner name.
func (c *Classifier) counts() (owned map[string]int, unmanaged int) {
	owned = make(map[string]int)
	for _, owner := range c.owners {
		if owner == Unmanaged {
			unmanaged++
			continue
		}
		owned[owner.Name()]++
	}
	return owned, unmanaged
}

// Owner returns the owner tracked for name.
func (c *Classifier) Owner(name string) (manager.InterfaceOwner, bool) {
	o, ok := c.owners[name]
	return o, ok
}

// Tracked returns the tracked interface names, sorted.
func (c *Classifier) Tracked() []string {
	names := make([]string, 0, len(c.owners))
	for name := range c.owners {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func sorted(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}
