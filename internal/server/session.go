package server

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/room"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// State is the lifecycle state of a Session.
type State int

const (
	StateConnecting State = iota
	StateJoined
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one client's live WebSocket connection to a room. It owns the
// connection's read and write pumps and a mailbox through which the room's
// router hands it events.
type Session struct {
	handle   room.Handle
	room     string
	identity Identity
	conn     *websocket.Conn
	hub      *Hub
	logger   *slog.Logger

	maxMessageSize int64

	mu      sync.RWMutex
	state   State
	mailbox chan chat.Event

	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, hub *Hub, roomName string, id Identity) *Session {
	handle := room.NewHandle()
	return &Session{
		handle:         handle,
		room:           roomName,
		identity:       id,
		conn:           conn,
		hub:            hub,
		logger:         hub.logger.With("room", roomName, "handle", handle, "identity", id.String()),
		maxMessageSize: hub.maxMessageSize,
		state:          StateConnecting,
		mailbox:        make(chan chat.Event, hub.mailboxSize),
	}
}

// Handle returns the session's registry handle.
func (s *Session) Handle() room.Handle {
	return s.handle
}

// Room returns the name of the room the session joined.
func (s *Session) Room() string {
	return s.room
}

// Identity returns the caller identity supplied at connection time.
func (s *Session) Identity() Identity {
	return s.identity
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Deliver queues e for the write pump without blocking. It returns false once
// the session is closing. A full mailbox means the peer has stalled; the
// session is closed rather than letting it hold back the room.
func (s *Session) Deliver(e chat.Event) bool {
	s.mu.RLock()
	if s.state != StateJoined {
		s.mu.RUnlock()
		return false
	}
	select {
	case s.mailbox <- e:
		s.mu.RUnlock()
		return true
	default:
	}
	s.mu.RUnlock()

	s.logger.Warn("Mailbox full, closing stalled session", "mailbox_size", cap(s.mailbox))
	s.closeWithReason("mailbox full")
	return false
}

// Close moves the session to Closing: it leaves its room, stops accepting
// events and lets the write pump send a close frame. It is safe to call more
// than once and from any goroutine.
func (s *Session) Close() {
	s.closeWithReason("closed by server")
}

func (s *Session) closeWithReason(reason string) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosing
		close(s.mailbox)
		s.mu.Unlock()

		s.hub.leave(s)
		s.logger.Info("Session closing", "reason", reason)

		if s.conn == nil {
			s.setState(StateClosed)
		}
	})
}

// onInboundData decodes one frame from the peer and publishes it to the room.
// Malformed payloads are logged and dropped; the connection stays open.
func (s *Session) onInboundData(raw []byte) {
	e, err := chat.Decode(raw)
	if err != nil {
		var decodeErr *chat.DecodeError
		if errors.As(err, &decodeErr) {
			s.logger.Warn("Dropping malformed message", "error", decodeErr, "bytes", len(raw))
			return
		}
		s.logger.Error("Unexpected decode failure", "error", err)
		return
	}

	if s.State() != StateJoined {
		return
	}
	s.hub.router.Publish(s.room, e)
}

// onBroadcastEvent writes an event delivered by the room to the peer and
// returns false when the connection is no longer writable.
func (s *Session) onBroadcastEvent(e chat.Event) bool {
	switch e.Kind {
	case chat.KindMessage:
		raw, err := chat.Encode(e)
		if err != nil {
			s.logger.Error("Failed to encode event", "kind", e.Kind, "error", err)
			return true
		}
		return s.writeFrame(websocket.TextMessage, raw)
	default:
		s.logger.Warn("Skipping event of unknown kind", "kind", e.Kind)
		return true
	}
}

// setupReadConnection configures the read limit, read deadline and pong handler.
func (s *Session) setupReadConnection() {
	s.conn.SetReadLimit(s.maxMessageSize)
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.logger.Warn("Error setting initial read deadline", "error", err)
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// logReadError logs why the read loop is ending at a level matching how
// expected the cause is.
func (s *Session) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		s.logger.Warn("Message exceeded maximum size", "max_bytes", s.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived):
		s.logger.Info("Client disconnected", "reason", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		s.logger.Info("Connection closed", "reason", err)
	case websocket.IsUnexpectedCloseError(err):
		s.logger.Warn("Unexpected close from client", "error", err)
	default:
		s.logger.Warn("WebSocket read error", "error", err)
	}
}

func (s *Session) readPump() {
	defer func() {
		s.closeWithReason("read loop ended")
		s.closeConnection()
	}()

	s.setupReadConnection()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.logReadError(err)
			return
		}
		s.onInboundData(raw)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.closeConnection()
		s.setState(StateClosed)
	}()

	for s.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop.
func (s *Session) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case e, ok := <-s.mailbox:
		if !ok {
			s.writeCloseMessage()
			return false
		}
		if s.State() != StateJoined {
			// Drain what was queued before Closing without writing it.
			return true
		}
		if !s.onBroadcastEvent(e) {
			s.closeWithReason("write failed")
			return false
		}
		return true
	case <-ticker.C:
		if !s.writeFrame(websocket.PingMessage, nil) {
			s.closeWithReason("ping failed")
			return false
		}
		return true
	}
}

func (s *Session) writeFrame(messageType int, data []byte) bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.logger.Warn("Error setting write deadline", "error", err)
		return false
	}
	if err := s.conn.WriteMessage(messageType, data); err != nil {
		if !isExpectedCloseError(err) {
			s.logger.Warn("Error writing to client", "frame_type", messageType, "error", err)
		}
		return false
	}
	return true
}

// writeCloseMessage sends a going-away close frame to the client.
func (s *Session) writeCloseMessage() {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
	if err := s.conn.WriteMessage(websocket.CloseMessage, msg); err != nil && !isExpectedCloseError(err) {
		s.logger.Debug("Error writing close message", "error", err)
	}
}

// closeConnection closes the socket, ignoring errors expected during teardown.
func (s *Session) closeConnection() {
	if s.conn == nil {
		return
	}
	if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
		s.logger.Warn("Error closing connection", "error", err)
	}
}
