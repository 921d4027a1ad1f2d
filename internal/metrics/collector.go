package metrics

import (
	"context"

	"grimm.is/wrtd/internal/events"
	"grimm.is/wrtd/internal/logging"
)

// Collector counts hub events by type.
type Collector struct {
	registry *Registry
	hub      *events.Hub
	logger   *logging.Logger
}

// NewCollector creates a collector feeding registry from hub.
func NewCollector(registry *Registry, hub *events.Hub, logger *logging.Logger) *Collector {
	if logger == nil {
		logger = logging.Default()
	}
	return &Collector{
		registry: registry,
		hub:      hub,
		logger:   logger.WithComponent("metrics"),
	}
}

// Start subscribes to the hub and consumes events in the background until
// ctx is done. Events published after Start returns are counted.
func (c *Collector) Start(ctx context.Context) {
	ch := c.hub.Subscribe(256)
	go func() {
		defer c.hub.Unsubscribe(ch)
		c.consume(ctx, ch)
	}()
}

func (c *Collector) consume(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-ch:
			c.registry.EventsTotal.WithLabelValues(string(e.Type)).Inc()
			c.logger.Debug("event", "type", e.Type, "source", e.Source)
		}
	}
}
