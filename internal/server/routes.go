package server

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// SetupRoutes builds the echo router with all application routes.
func SetupRoutes(h *Handler, logger *slog.Logger) *echo.Echo {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(RequestLogger(logger))

	e.GET("/", h.Health)
	e.GET("/stats", h.Stats)
	e.GET("/ws/chat/:room", h.ChatSocket)
	e.GET("/ws/chat/:room/", h.ChatSocket)
	e.GET("/chat/:room", h.RoomPage)
	e.GET("/chat/:room/", h.RoomPage)

	return e
}
