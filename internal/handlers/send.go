package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// ChannelSender delivers text to a Telegram channel reference.
type ChannelSender interface {
	SendToChannel(ctx context.Context, target, text string) error
}

// SendRequest is the channel-send request body.
type SendRequest struct {
	Channel string `json:"channel" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// SendHandler exposes token-guarded channel delivery.
type SendHandler struct {
	sender   ChannelSender
	token    string
	validate *validator.Validate
	logger   *slog.Logger
}

// NewSendHandler creates a SendHandler. An empty token disables the endpoint:
// every request is refused until a token is configured.
func NewSendHandler(log *slog.Logger, sender ChannelSender, token string) *SendHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SendHandler{
		sender:   sender,
		token:    strings.TrimSpace(token),
		validate: validator.New(),
		logger:   log.With(slog.String("handler", "send")),
	}
}

// Register registers the channel-send route.
func (h *SendHandler) Register(e *echo.Echo) {
	e.POST("/telegram/send-channel", h.Send)
}

// Send delivers the message to the requested channel.
func (h *SendHandler) Send(c echo.Context) error {
	if h.token == "" {
		return echo.NewHTTPError(http.StatusForbidden, "channel send is disabled")
	}
	token := strings.TrimSpace(c.Request().Header.Get("x-send-token"))
	if token == "" {
		token = strings.TrimSpace(c.QueryParam("token"))
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) != 1 {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid send token")
	}

	var req SendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if err := h.validate.Struct(req); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) && len(invalid) > 0 {
			return echo.NewHTTPError(http.StatusBadRequest, strings.ToLower(invalid[0].Field())+" is required")
		}
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	if err := h.sender.SendToChannel(c.Request().Context(), req.Channel, req.Message); err != nil {
		h.logger.Error("channel send failed",
			slog.String("channel", req.Channel),
			slog.Any("error", err),
		)
		// The remote error text is the only clue the caller gets about why
		// delivery failed.
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	h.logger.Info("channel send delivered", slog.String("channel", req.Channel))
	return c.JSON(http.StatusOK, map[string]string{"status": "sent"})
}
