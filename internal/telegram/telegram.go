// Package telegram wraps the Telegram Bot API behind the small transport
// surface the bridge needs: a long-polling message stream and plain-text
// delivery.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/wootbridge/wootbridge/internal/bridge"
)

const maxMessageLength = 4096

// botAPI is the subset of tgbotapi.BotAPI the client uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Client is the Telegram transport.
type Client struct {
	bot         botAPI
	logger      *slog.Logger
	pollTimeout int
}

// NewClient authenticates the bot token against the Telegram API.
func NewClient(log *slog.Logger, token string, pollTimeout int) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	logger := log.With(slog.String("component", "telegram"))
	_ = tgbotapi.SetLogger(&slogBotLogger{log: logger})
	bot, err := tgbotapi.NewBotAPI(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	if pollTimeout <= 0 {
		pollTimeout = 30
	}
	return &Client{bot: bot, logger: logger, pollTimeout: pollTimeout}, nil
}

// Handler consumes one normalized inbound message.
type Handler func(ctx context.Context, msg bridge.InboundMessage) error

// Listen long-polls for updates and forwards each private text message to the
// handler in its own goroutine. It blocks until the context is cancelled or
// the updates channel closes.
func (c *Client) Listen(ctx context.Context, handler Handler) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = c.pollTimeout
	updates := c.bot.GetUpdatesChan(updateConfig)
	c.logger.Info("listening for updates")

	for {
		select {
		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			// Drain remaining updates so the library's polling goroutine can
			// finish writing and exit.
			for range updates {
			}
			return
		case update, ok := <-updates:
			if !ok {
				c.logger.Info("updates channel closed")
				return
			}
			msg, ok := normalizeMessage(update.Message)
			if !ok {
				continue
			}
			c.logger.Info("inbound received",
				slog.Int64("sender_id", msg.SenderID),
				slog.Bool("is_group", msg.IsGroup),
			)
			go func() {
				if err := handler(ctx, msg); err != nil {
					c.logger.Error("handle inbound failed",
						slog.Int64("sender_id", msg.SenderID),
						slog.Any("error", err),
					)
				}
			}()
		}
	}
}

// SendText delivers plain text to a chat, sanitized to valid UTF-8 and
// truncated to the Telegram message limit.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	message := tgbotapi.NewMessage(chatID, truncateText(sanitizeText(text)))
	if _, err := c.bot.Send(message); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// ResolveChannel turns a channel reference into a numeric chat id. An
// @handle is resolved remotely; anything else must already be numeric.
func (c *Client) ResolveChannel(ctx context.Context, target string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return 0, fmt.Errorf("channel is required")
	}
	if strings.HasPrefix(target, "@") {
		chat, err := c.bot.GetChat(tgbotapi.ChatInfoConfig{
			ChatConfig: tgbotapi.ChatConfig{SuperGroupUsername: target},
		})
		if err != nil {
			return 0, fmt.Errorf("resolve channel %s: %w", target, err)
		}
		return chat.ID, nil
	}
	chatID, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("channel must be an @handle or numeric chat id")
	}
	return chatID, nil
}

// SendToChannel resolves the channel reference and delivers the text there.
func (c *Client) SendToChannel(ctx context.Context, target, text string) error {
	chatID, err := c.ResolveChannel(ctx, target)
	if err != nil {
		return err
	}
	return c.SendText(ctx, chatID, text)
}

// normalizeMessage flattens a raw update message into the bridge's inbound
// shape. The second return is false when the update carries nothing to
// forward.
func normalizeMessage(msg *tgbotapi.Message) (bridge.InboundMessage, bool) {
	if msg == nil || msg.From == nil {
		return bridge.InboundMessage{}, false
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		text = strings.TrimSpace(msg.Caption)
	}
	if text == "" {
		return bridge.InboundMessage{}, false
	}
	out := bridge.InboundMessage{
		SenderID:  msg.From.ID,
		Username:  strings.TrimSpace(msg.From.UserName),
		FirstName: strings.TrimSpace(msg.From.FirstName),
		LastName:  strings.TrimSpace(msg.From.LastName),
		Text:      text,
	}
	if msg.Chat != nil && msg.Chat.Type != "private" {
		out.IsGroup = true
	}
	// The phone number is only trusted when the sender shared their own
	// contact card.
	if msg.Contact != nil && msg.Contact.UserID == msg.From.ID {
		out.Phone = strings.TrimSpace(msg.Contact.PhoneNumber)
	}
	return out, true
}

// sanitizeText strips invalid byte sequences so the Telegram API does not
// reject the payload.
func sanitizeText(text string) string {
	if utf8.ValidString(text) {
		return text
	}
	return strings.ToValidUTF8(text, "")
}

// truncateText cuts text to the Telegram message limit on a valid rune
// boundary, appending "..." when truncation occurs.
func truncateText(text string) string {
	if len(text) <= maxMessageLength {
		return text
	}
	const suffix = "..."
	limit := maxMessageLength - len(suffix)
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit] + suffix
}
