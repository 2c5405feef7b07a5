package chatwoot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Known envelopes for single-conversation responses, in priority order.
var conversationObjectPaths = [][]string{
	{"payload"},
	{"data"},
	{},
}

// Known envelopes for conversation lists, in priority order. Servers disagree
// on where the list lives, so each shape is tried before giving up.
var conversationListPaths = [][]string{
	{"data", "payload"},
	{"payload"},
	{"data"},
	{},
}

// CreateConversation creates a conversation for (inbox, contact), tagged with
// input.SourceID when set. A conflict on the source tag is returned to the
// caller untouched; reconciliation is the resolver's job.
func (c *Client) CreateConversation(ctx context.Context, input ConversationInput) (Conversation, error) {
	payload, err := c.do(ctx, http.MethodPost, "/conversations", nil, input)
	if err != nil {
		return Conversation{}, err
	}
	return decodeConversation(payload)
}

// ListConversations returns one page of conversations. A zero inboxID lists
// across all inboxes. An empty page means end-of-list; pagination metadata is
// not trusted because older servers omit or misreport it.
func (c *Client) ListConversations(ctx context.Context, inboxID int, status string, page int) ([]Conversation, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	if inboxID > 0 {
		query.Set("inbox_id", strconv.Itoa(inboxID))
	}
	if page > 1 {
		query.Set("page", strconv.Itoa(page))
	}
	payload, err := c.do(ctx, http.MethodGet, "/conversations", query, nil)
	if err != nil {
		return nil, err
	}
	raw, err := unwrapList(payload, conversationListPaths)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	var conversations []Conversation
	if err := json.Unmarshal(raw, &conversations); err != nil {
		return nil, fmt.Errorf("decode conversation list: %w", err)
	}
	return conversations, nil
}

// GetConversation fetches the full detail of one conversation.
func (c *Client) GetConversation(ctx context.Context, conversationID int) (Conversation, error) {
	payload, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/conversations/%d", conversationID), nil, nil)
	if err != nil {
		return Conversation{}, err
	}
	return decodeConversation(payload)
}

func decodeConversation(payload []byte) (Conversation, error) {
	raw, err := unwrapObject(payload, conversationObjectPaths)
	if err != nil {
		return Conversation{}, fmt.Errorf("decode conversation: %w", err)
	}
	var conversation Conversation
	if err := json.Unmarshal(raw, &conversation); err != nil {
		return Conversation{}, fmt.Errorf("decode conversation: %w", err)
	}
	if conversation.ID == 0 {
		return Conversation{}, fmt.Errorf("decode conversation: %w", ErrUnrecognizedResponse)
	}
	return conversation, nil
}
