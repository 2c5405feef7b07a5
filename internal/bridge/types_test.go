package bridge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "John Doe", InboundMessage{FirstName: "John", LastName: "Doe"}.DisplayName())
	assert.Equal(t, "John", InboundMessage{FirstName: " John "}.DisplayName())
	assert.Equal(t, "jdoe", InboundMessage{Username: "jdoe"}.DisplayName())
	assert.Equal(t, "", InboundMessage{}.DisplayName())
	assert.Equal(t, "John Doe", InboundMessage{FirstName: "John", LastName: "Doe", Username: "jdoe"}.DisplayName())
}

func TestWebhookEventDecode(t *testing.T) {
	t.Parallel()

	raw := `{
		"event": "message_created",
		"message_type": "outgoing",
		"content": "hello",
		"conversation": {"id": 20, "source_id": "telegram_42"},
		"sender": {"id": 1, "name": "Agent"}
	}`
	var event WebhookEvent
	err := json.Unmarshal([]byte(raw), &event)
	assert.NoError(t, err)
	assert.Equal(t, "outgoing", event.MessageType)
	assert.Equal(t, "hello", event.Content)
	if assert.NotNil(t, event.Conversation) {
		assert.Equal(t, 20, event.Conversation.ID)
		assert.Equal(t, "telegram_42", event.Conversation.SourceID)
	}
}

func TestWebhookEventDecodeWithoutConversation(t *testing.T) {
	t.Parallel()

	var event WebhookEvent
	err := json.Unmarshal([]byte(`{"event":"conversation_updated"}`), &event)
	assert.NoError(t, err)
	assert.Nil(t, event.Conversation)
}
