package chatwoot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Known envelopes for single-contact responses, in priority order.
var contactObjectPaths = [][]string{
	{"payload", "contact"},
	{"payload"},
	{"data", "contact"},
	{"data"},
	{},
}

// Known envelopes for contact lists, in priority order.
var contactListPaths = [][]string{
	{"payload"},
	{"data", "payload"},
	{"data"},
	{},
}

// CreateContact creates a contact keyed by input.Identifier. When the remote
// rejects the create because the identifier is already taken, the existing
// contact is fetched via search instead; if the search then finds nothing the
// conflict is surfaced as-is, since the remote state is inconsistent.
func (c *Client) CreateContact(ctx context.Context, input ContactInput) (Contact, error) {
	payload, err := c.do(ctx, http.MethodPost, "/contacts", nil, input)
	if err != nil {
		if !IsConflict(err) {
			return Contact{}, err
		}
		c.logger.Info("contact identifier taken, falling back to search",
			slog.String("identifier", input.Identifier))
		existing, found, searchErr := c.SearchContact(ctx, input.Identifier)
		if searchErr != nil {
			return Contact{}, searchErr
		}
		if !found {
			return Contact{}, fmt.Errorf("contact %q conflicts but cannot be found: %w", input.Identifier, err)
		}
		return existing, nil
	}
	return decodeContact(payload)
}

// UpdateContact overwrites the given fields on an existing contact.
func (c *Client) UpdateContact(ctx context.Context, contactID int, input ContactInput) (Contact, error) {
	payload, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/contacts/%d", contactID), nil, input)
	if err != nil {
		return Contact{}, err
	}
	return decodeContact(payload)
}

// SearchContact looks a contact up by its identifier. The search endpoint
// matches loosely, so results are filtered down to an exact identifier match.
func (c *Client) SearchContact(ctx context.Context, identifier string) (Contact, bool, error) {
	query := url.Values{"q": []string{identifier}}
	payload, err := c.do(ctx, http.MethodGet, "/contacts/search", query, nil)
	if err != nil {
		return Contact{}, false, err
	}
	raw, err := unwrapList(payload, contactListPaths)
	if err != nil {
		return Contact{}, false, fmt.Errorf("search contact %q: %w", identifier, err)
	}
	var contacts []Contact
	if err := json.Unmarshal(raw, &contacts); err != nil {
		return Contact{}, false, fmt.Errorf("decode contact list: %w", err)
	}
	for _, contact := range contacts {
		if strings.TrimSpace(contact.Identifier) == strings.TrimSpace(identifier) {
			return contact, true, nil
		}
	}
	return Contact{}, false, nil
}

func decodeContact(payload []byte) (Contact, error) {
	raw, err := unwrapObject(payload, contactObjectPaths)
	if err != nil {
		return Contact{}, fmt.Errorf("decode contact: %w", err)
	}
	var contact Contact
	if err := json.Unmarshal(raw, &contact); err != nil {
		return Contact{}, fmt.Errorf("decode contact: %w", err)
	}
	if contact.ID == 0 {
		return Contact{}, fmt.Errorf("decode contact: %w", ErrUnrecognizedResponse)
	}
	return contact, nil
}
