package server

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/room"
)

const testOrigin = "http://localhost:8080"

// fixture is a relay served by an httptest server.
type fixture struct {
	hub    *Hub
	server *httptest.Server
	wsBase string
}

func newFixture(t *testing.T, auth Authenticator, opts ...HubOption) *fixture {
	t.Helper()

	registry := room.NewRegistry()
	hub := NewHub(registry, room.NewRouter(registry, nil), opts...)
	handler := NewHandler(hub, NewOriginPolicy([]string{testOrigin}, nil), auth)
	srv := httptest.NewServer(SetupRoutes(handler, nil))

	t.Cleanup(func() {
		_ = hub.Shutdown(2 * time.Second)
		srv.Close()
	})

	return &fixture{
		hub:    hub,
		server: srv,
		wsBase: "ws" + strings.TrimPrefix(srv.URL, "http"),
	}
}

// dialRaw opens a WebSocket to path with the given Origin header.
func (f *fixture) dialRaw(path, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}
	return dialer.Dial(f.wsBase+path, headers)
}

// join connects to roomName and waits until the hub has registered the session.
func (f *fixture) join(t *testing.T, roomName string) *websocket.Conn {
	t.Helper()

	before := f.hub.Registry().Len(roomName)
	conn, resp, err := f.dialRaw("/ws/chat/"+roomName+"/", testOrigin)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool {
		return f.hub.Registry().Len(roomName) == before+1
	}, 2*time.Second, 5*time.Millisecond, "session never joined %s", roomName)
	return conn
}

func sendText(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]string{"message": text}))
}

func sendRaw(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(raw)))
}

// readText reads one frame and returns its message field.
func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(raw, &payload), "frame %q is not JSON", raw)
	text, ok := payload["message"].(string)
	require.True(t, ok, "frame %q has no message field", raw)
	assert.Len(t, payload, 1, "frame %q carries extra fields", raw)
	return text
}

// expectNoMessage asserts nothing arrives within d. The connection cannot be
// read from afterwards.
func expectNoMessage(t *testing.T, conn *websocket.Conn, d time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(d)))
	_, raw, err := conn.ReadMessage()
	require.Error(t, err, "unexpected message %q", raw)

	var netErr net.Error
	assert.True(t, errors.As(err, &netErr) && netErr.Timeout(), "expected read timeout, got %v", err)
}

// expectClosed asserts the server closes the connection.
func expectClosed(t *testing.T, conn *websocket.Conn) error {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			var netErr net.Error
			require.False(t, errors.As(err, &netErr) && netErr.Timeout(), "connection was not closed")
			return err
		}
	}
}
