package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wootbridge/wootbridge/internal/chatwoot"
	"github.com/wootbridge/wootbridge/internal/identity"
)

// ConversationFetcher fetches a single conversation's detail shape.
type ConversationFetcher interface {
	GetConversation(ctx context.Context, id int) (chatwoot.Conversation, error)
}

// Outbound forwards Chatwoot agent replies back to the chat transport.
type Outbound struct {
	fetcher   ConversationFetcher
	transport Transport
	ledger    FailureLedger
	logger    *slog.Logger
}

// NewOutbound creates the Chatwoot-to-transport forwarder.
func NewOutbound(log *slog.Logger, fetcher ConversationFetcher, transport Transport, ledger FailureLedger) *Outbound {
	if log == nil {
		log = slog.Default()
	}
	return &Outbound{
		fetcher:   fetcher,
		transport: transport,
		ledger:    ledger,
		logger:    log.With(slog.String("component", "outbound")),
	}
}

// Forward delivers one webhook event to the chat identity that owns the
// conversation. Events that are not outgoing agent messages, carry no
// content, or belong to a conversation from another transport are skipped
// without error.
func (f *Outbound) Forward(ctx context.Context, event WebhookEvent) error {
	if event.MessageType != "outgoing" {
		return nil
	}
	text := strings.TrimSpace(event.Content)
	if text == "" {
		return nil
	}
	if event.Conversation == nil {
		f.logger.Warn("outgoing event without conversation", slog.String("event", event.Event))
		return nil
	}

	tag, err := f.sourceTag(ctx, event)
	if err != nil {
		f.fail(ctx, event, "", fmt.Errorf("resolve source tag: %w", err))
		return err
	}
	senderID, ok := identity.Parse(tag)
	if !ok {
		// Conversations owned by other transports route through their own
		// bridges.
		f.logger.Debug("skipping foreign conversation",
			slog.Int("conversation_id", event.Conversation.ID),
			slog.String("source_tag", tag),
		)
		return nil
	}

	if err := f.transport.SendText(ctx, senderID, text); err != nil {
		f.fail(ctx, event, tag, fmt.Errorf("send text: %w", err))
		return err
	}
	f.logger.Info("outbound forwarded",
		slog.String("identity_key", tag),
		slog.Int("conversation_id", event.Conversation.ID),
	)
	return nil
}

// sourceTag prefers the tag embedded in the event and falls back to a remote
// detail fetch when the webhook shape omits it.
func (f *Outbound) sourceTag(ctx context.Context, event WebhookEvent) (string, error) {
	if tag := strings.TrimSpace(event.Conversation.SourceID); tag != "" {
		return tag, nil
	}
	conversation, err := f.fetcher.GetConversation(ctx, event.Conversation.ID)
	if err != nil {
		return "", err
	}
	return conversation.SourceTag(), nil
}

func (f *Outbound) fail(ctx context.Context, event WebhookEvent, key string, err error) {
	f.logger.Error("outbound forward failed",
		slog.Int("conversation_id", event.Conversation.ID),
		slog.Any("error", err),
	)
	if f.ledger == nil {
		return
	}
	payload := map[string]any{
		"conversation_id": event.Conversation.ID,
		"source_id":       event.Conversation.SourceID,
		"content":         event.Content,
	}
	if lerr := f.ledger.Append(ctx, DirectionOutbound, key, payload, err.Error()); lerr != nil {
		f.logger.Error("ledger append failed", slog.Any("error", lerr))
	}
}
