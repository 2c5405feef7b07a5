package chatwoot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Known envelopes for single-message responses, in priority order.
var messageObjectPaths = [][]string{
	{"payload"},
	{"data"},
	{},
}

// CreateMessage posts a message into a conversation with the given direction
// ("incoming" or "outgoing").
func (c *Client) CreateMessage(ctx context.Context, conversationID int, content, messageType string) (Message, error) {
	body := map[string]string{
		"content":      content,
		"message_type": messageType,
	}
	payload, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/conversations/%d/messages", conversationID), nil, body)
	if err != nil {
		return Message{}, err
	}
	raw, err := unwrapObject(payload, messageObjectPaths)
	if err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	var message Message
	if err := json.Unmarshal(raw, &message); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	return message, nil
}
