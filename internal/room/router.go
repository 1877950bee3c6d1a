package room

import (
	"log/slog"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// Router delivers events to every current member of a room.
type Router struct {
	registry *Registry
	logger   *slog.Logger
}

// NewRouter returns a router that looks members up in registry. A nil logger
// falls back to slog.Default.
func NewRouter(registry *Registry, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{registry: registry, logger: logger}
}

// Publish hands e to every member currently in room and returns how many of
// them accepted it. Members are delivered to independently: a member that
// rejects the event does not affect the others. Events published one after
// another by the same caller reach each member's queue in that order.
func (rt *Router) Publish(room string, e chat.Event) int {
	members := rt.registry.Members(room)

	delivered := 0
	for _, m := range members {
		if m.Deliver(e) {
			delivered++
			continue
		}
		rt.logger.Warn("Member rejected room event", "room", room, "handle", m.Handle(), "kind", e.Kind)
	}

	rt.logger.Debug("Broadcast room event", "room", room, "kind", e.Kind, "members", len(members), "delivered", delivered)
	return delivered
}
