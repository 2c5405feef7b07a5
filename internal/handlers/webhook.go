package handlers

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/wootbridge/wootbridge/internal/bridge"
)

// WebhookForwarder delivers one Chatwoot event toward the chat transport.
type WebhookForwarder interface {
	Forward(ctx context.Context, event bridge.WebhookEvent) error
}

// WebhookHandler receives Chatwoot webhook callbacks.
type WebhookHandler struct {
	forwarder WebhookForwarder
	secret    string
	logger    *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler guarded by the shared secret. An
// empty secret leaves the endpoint open.
func NewWebhookHandler(log *slog.Logger, forwarder WebhookForwarder, secret string) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		forwarder: forwarder,
		secret:    strings.TrimSpace(secret),
		logger:    log.With(slog.String("handler", "webhook")),
	}
}

// Register registers the webhook route.
func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhooks/chatwoot", h.Receive)
}

// Receive accepts one webhook event and dispatches it asynchronously. The
// response does not reflect the forwarding outcome; failed forwards land in
// the replay ledger instead.
func (h *WebhookHandler) Receive(c echo.Context) error {
	if h.secret != "" {
		token := strings.TrimSpace(c.Request().Header.Get("x-webhook-token"))
		if token == "" {
			token = strings.TrimSpace(c.QueryParam("token"))
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) != 1 {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid webhook token")
		}
	}

	var event bridge.WebhookEvent
	if err := c.Bind(&event); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed event payload")
	}

	// The request context dies with the response; forwarding continues on its
	// own deadline.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := h.forwarder.Forward(ctx, event); err != nil {
			h.logger.Debug("webhook forward failed", slog.Any("error", err))
		}
	}()

	return c.JSON(http.StatusOK, map[string]string{"status": "accepted"})
}
