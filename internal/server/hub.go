package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/room"
)

// Notifier is told about members entering and leaving rooms.
type Notifier interface {
	MemberJoined(roomName string, h room.Handle, identity string)
	MemberLeft(roomName string, h room.Handle, identity string)
}

type nopNotifier struct{}

func (nopNotifier) MemberJoined(string, room.Handle, string) {}
func (nopNotifier) MemberLeft(string, room.Handle, string)   {}

// Hub owns the room registry and router shared by all sessions, tracks the
// live sessions and waits for their pumps on shutdown.
type Hub struct {
	registry *room.Registry
	router   *room.Router
	notifier Notifier
	logger   *slog.Logger

	mailboxSize    int
	maxMessageSize int64

	mutex    sync.Mutex
	sessions map[*Session]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithNotifier reports membership changes to n.
func WithNotifier(n Notifier) HubOption {
	return func(h *Hub) {
		if n != nil {
			h.notifier = n
		}
	}
}

// WithLogger sets the hub's logger.
func WithLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMailboxSize sets how many events a session may have queued before it
// is considered stalled.
func WithMailboxSize(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.mailboxSize = size
		}
	}
}

// WithMaxMessageSize limits the size of inbound frames.
func WithMaxMessageSize(size int64) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.maxMessageSize = size
		}
	}
}

// NewHub creates a Hub over the given registry and router.
func NewHub(registry *room.Registry, router *room.Router, opts ...HubOption) *Hub {
	h := &Hub{
		registry:       registry,
		router:         router,
		notifier:       nopNotifier{},
		logger:         slog.Default(),
		mailboxSize:    256,
		maxMessageSize: 4096,
		sessions:       make(map[*Session]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Attach joins conn to roomName as a new session and starts its pumps. The
// hub takes ownership of conn; on ErrHubClosed the caller still owns it.
func (h *Hub) Attach(conn *websocket.Conn, roomName string, id Identity) (*Session, error) {
	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		return nil, ErrHubClosed
	}
	s := newSession(conn, h, roomName, id)
	h.sessions[s] = struct{}{}
	count := len(h.sessions)
	h.wg.Add(2)
	h.mutex.Unlock()

	if h.join(s) {
		s.logger.Info("Session joined room", "room_members", h.registry.Len(roomName), "total_sessions", count)
	}

	go func() {
		defer h.wg.Done()
		s.writePump()
	}()
	go func() {
		defer h.wg.Done()
		s.readPump()
	}()

	return s, nil
}

// join moves s from Connecting to Joined and registers it. A session closed
// before it got here (a Shutdown racing Attach) stays out of the registry.
func (h *Hub) join(s *Session) bool {
	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		return false
	}
	s.state = StateJoined
	added := h.registry.Join(s.room, s)
	s.mu.Unlock()

	if added {
		h.notifier.MemberJoined(s.room, s.handle, s.identity.String())
	}
	return true
}

// leave deregisters s. It runs once per session, on entry to Closing.
func (h *Hub) leave(s *Session) {
	if h.registry.Leave(s.room, s.handle) {
		h.notifier.MemberLeft(s.room, s.handle, s.identity.String())
	}

	h.mutex.Lock()
	delete(h.sessions, s)
	count := len(h.sessions)
	h.mutex.Unlock()

	s.logger.Info("Session left room", "room_members", h.registry.Len(s.room), "total_sessions", count)
}

// Registry returns the hub's room registry.
func (h *Hub) Registry() *room.Registry {
	return h.registry
}

// SessionCount returns the number of live sessions.
func (h *Hub) SessionCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.sessions)
}

// Stats returns the member count of every non-empty room.
func (h *Hub) Stats() map[string]int {
	rooms := h.registry.Rooms()
	stats := make(map[string]int, len(rooms))
	for _, name := range rooms {
		if n := h.registry.Len(name); n > 0 {
			stats[name] = n
		}
	}
	return stats
}

// Shutdown stops accepting sessions, closes every live session and waits for
// their pumps to finish. It returns context.DeadlineExceeded if that takes
// longer than timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("Initiating hub shutdown...")

	h.mutex.Lock()
	h.closed = true
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mutex.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	h.logger.Info("Closed client sessions", "count", len(sessions))

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		h.logger.Warn("Hub shutdown timeout reached, some sessions may still be running")
		return context.DeadlineExceeded
	}
}
