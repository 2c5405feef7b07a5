// Package handlers contains the HTTP endpoints of the bridge.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// PendingCounter reports how many forwards await replay.
type PendingCounter interface {
	Pending(ctx context.Context) (int, error)
}

// PingHandler answers liveness probes.
type PingHandler struct {
	pending PendingCounter
	logger  *slog.Logger
}

// NewPingHandler creates a PingHandler. The pending counter is optional.
func NewPingHandler(log *slog.Logger, pending PendingCounter) *PingHandler {
	if log == nil {
		log = slog.Default()
	}
	return &PingHandler{
		pending: pending,
		logger:  log.With(slog.String("handler", "ping")),
	}
}

func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.HEAD("/health", h.PingHead)
}

func (h *PingHandler) Ping(c echo.Context) error {
	resp := map[string]any{"status": "ok"}
	if h.pending != nil {
		if count, err := h.pending.Pending(c.Request().Context()); err == nil {
			resp["pending_replays"] = count
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *PingHandler) PingHead(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
