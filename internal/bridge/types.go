// Package bridge implements the conversation identity resolution and
// message-forwarding protocol between the Telegram transport and the Chatwoot
// directory.
package bridge

import (
	"context"
	"strings"
)

// InboundMessage is a normalized private message received from the chat
// transport.
type InboundMessage struct {
	SenderID  int64  `json:"sender_id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Text      string `json:"text"`
	IsGroup   bool   `json:"is_group"`
}

// DisplayName builds the contact display name from the sender's profile,
// falling back to the username when no name parts are set.
func (m InboundMessage) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(m.FirstName) + " " + strings.TrimSpace(m.LastName))
	if name != "" {
		return name
	}
	return strings.TrimSpace(m.Username)
}

// WebhookEvent is the subset of a Chatwoot webhook payload the bridge acts on.
type WebhookEvent struct {
	Event        string             `json:"event"`
	MessageType  string             `json:"message_type"`
	Content      string             `json:"content"`
	Conversation *EventConversation `json:"conversation"`
}

// EventConversation is the conversation block embedded in a webhook event.
type EventConversation struct {
	ID       int    `json:"id"`
	SourceID string `json:"source_id"`
}

// Transport delivers text messages back to a chat identity.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string) error
}
