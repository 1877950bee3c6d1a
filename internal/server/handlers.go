package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Handler serves the relay's HTTP endpoints.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	auth     Authenticator
}

// NewHandler creates a Handler attaching connections to hub. A nil auth
// accepts every caller anonymously.
func NewHandler(hub *Hub, origins *OriginPolicy, auth Authenticator) *Handler {
	if auth == nil {
		auth = AnonymousAuthenticator{}
	}
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.CheckOrigin,
		},
		auth: auth,
	}
}

// ChatSocket upgrades GET /ws/chat/:room/ to a WebSocket and joins the
// connection to the room.
func (h *Handler) ChatSocket(c echo.Context) error {
	logger := LoggerFromContext(c.Request().Context())

	var params RoomParams
	if err := c.Bind(&params); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid room")
	}
	if err := c.Validate(&params); err != nil {
		logger.Info("Rejected invalid room name", "room", params.Room, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "room name must match \\w+")
	}

	id, err := h.auth.Authenticate(c.Request())
	if err != nil {
		logger.Info("Rejected unauthenticated WebSocket request", "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written an HTTP error response.
		logger.Warn("WebSocket upgrade failed", "error", err)
		return nil
	}

	if _, err := h.hub.Attach(conn, params.Room, id); err != nil {
		if errors.Is(err, ErrHubClosed) {
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			_ = conn.WriteMessage(websocket.CloseMessage, msg)
		}
		logger.Warn("Rejected WebSocket session", "room", params.Room, "error", err)
		_ = conn.Close()
	}
	return nil
}

// Health provides a simple plain text health check.
func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "Room chat relay is running!")
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Sessions int            `json:"sessions"`
	Rooms    map[string]int `json:"rooms"`
}

// Stats reports live sessions and per-room member counts.
func (h *Handler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, StatsResponse{
		Sessions: h.hub.SessionCount(),
		Rooms:    h.hub.Stats(),
	})
}

// RoomPage serves a small HTML page for trying a room from the browser.
func (h *Handler) RoomPage(c echo.Context) error {
	var params RoomParams
	if err := c.Bind(&params); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid room")
	}
	if err := c.Validate(&params); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "room name must match \\w+")
	}

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	if err := RoomPage(params.Room).Render(c.Response()); err != nil {
		return fmt.Errorf("render room page: %w", err)
	}
	return nil
}
