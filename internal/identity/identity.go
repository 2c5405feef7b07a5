// Package identity derives the stable external identifier that correlates a
// Telegram sender with their Chatwoot contact and conversation records.
package identity

import (
	"strconv"
	"strings"
)

// Prefix marks identity keys that originate from the Telegram side of the
// bridge. Conversations whose source tag lacks this prefix were not created by
// us and must be left alone.
const Prefix = "telegram_"

// Key returns the identity key for a Telegram sender id. The key is used both
// as the Chatwoot contact identifier and as the conversation source tag.
func Key(senderID int64) string {
	return Prefix + strconv.FormatInt(senderID, 10)
}

// Parse extracts the Telegram sender id from an identity key. It returns
// ok=false when the key does not carry the Telegram prefix or the remainder is
// not a valid sender id.
func Parse(key string) (int64, bool) {
	key = strings.TrimSpace(key)
	if !strings.HasPrefix(key, Prefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(key, Prefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// HasPrefix reports whether key was derived from a Telegram sender.
func HasPrefix(key string) bool {
	return strings.HasPrefix(strings.TrimSpace(key), Prefix)
}
