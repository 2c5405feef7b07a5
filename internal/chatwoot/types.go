package chatwoot

import "strings"

// Contact is a Chatwoot contact record, keyed remotely by its identifier.
type Contact struct {
	ID          int    `json:"id"`
	Identifier  string `json:"identifier"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
}

// ContactInput carries the writable contact fields.
type ContactInput struct {
	Identifier  string `json:"identifier,omitempty"`
	Name        string `json:"name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// ConversationSender is the contact embedded in a conversation's meta block.
type ConversationSender struct {
	ID         int    `json:"id"`
	Identifier string `json:"identifier"`
}

// ConversationMeta holds the nested metadata some API versions attach to a
// conversation.
type ConversationMeta struct {
	Sender ConversationSender `json:"sender"`
}

// Conversation is a Chatwoot conversation. The source tag recording the
// originating identity key has moved between fields across server versions, so
// all known locations are modeled and read through SourceTag.
type Conversation struct {
	ID                   int              `json:"id"`
	InboxID              int              `json:"inbox_id"`
	Status               string           `json:"status"`
	SourceID             string           `json:"source_id"`
	AdditionalAttributes map[string]any   `json:"additional_attributes"`
	Meta                 ConversationMeta `json:"meta"`
}

// SourceTag returns the conversation's source tag, checking each known field
// location in a fixed priority order.
func (c Conversation) SourceTag() string {
	if tag := strings.TrimSpace(c.SourceID); tag != "" {
		return tag
	}
	if c.AdditionalAttributes != nil {
		if raw, ok := c.AdditionalAttributes["source_id"].(string); ok {
			if tag := strings.TrimSpace(raw); tag != "" {
				return tag
			}
		}
	}
	return strings.TrimSpace(c.Meta.Sender.Identifier)
}

// ContactID returns the id of the contact the conversation belongs to, or 0
// when the listing shape does not expose it.
func (c Conversation) ContactID() int {
	return c.Meta.Sender.ID
}

// ConversationInput carries the writable conversation fields.
type ConversationInput struct {
	InboxID   int    `json:"inbox_id"`
	ContactID int    `json:"contact_id"`
	SourceID  string `json:"source_id,omitempty"`
}

// Message is a message posted into a conversation. The response's
// message_type is deliberately not modeled: servers disagree on whether it is
// the numeric enum or its string name.
type Message struct {
	ID      int    `json:"id"`
	Content string `json:"content"`
}

// Message directions understood by the Chatwoot messages API.
const (
	MessageIncoming = "incoming"
	MessageOutgoing = "outgoing"
)

// Conversation status filters for listing.
const (
	StatusAll  = "all"
	StatusOpen = "open"
)
