package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wootbridge/wootbridge/internal/chatwoot"
	"github.com/wootbridge/wootbridge/internal/identity"
)

// Forwarding directions recorded in the failure ledger.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// ContactDirectory is the contact-and-message subset of the Chatwoot client
// the inbound forwarder needs.
type ContactDirectory interface {
	CreateContact(ctx context.Context, input chatwoot.ContactInput) (chatwoot.Contact, error)
	UpdateContact(ctx context.Context, id int, input chatwoot.ContactInput) (chatwoot.Contact, error)
	SearchContact(ctx context.Context, identifier string) (chatwoot.Contact, bool, error)
	CreateMessage(ctx context.Context, conversationID int, content, messageType string) (chatwoot.Message, error)
}

// FailureLedger records forwards that could not be delivered so they can be
// replayed later.
type FailureLedger interface {
	Append(ctx context.Context, direction, identityKey string, payload map[string]any, cause string) error
}

// ConversationResolver maps an identity key to its conversation.
type ConversationResolver interface {
	Resolve(ctx context.Context, identityKey string, inboxID, contactID int) (chatwoot.Conversation, error)
}

// Inbound forwards normalized transport messages into Chatwoot conversations.
type Inbound struct {
	directory    ContactDirectory
	resolver     ConversationResolver
	ledger       FailureLedger
	inboxID      int
	ignoreGroups bool
	logger       *slog.Logger
}

// NewInbound creates the transport-to-Chatwoot forwarder targeting the given
// inbox. With ignoreGroups set, group chat messages are dropped silently.
func NewInbound(log *slog.Logger, directory ContactDirectory, resolver ConversationResolver, ledger FailureLedger, inboxID int, ignoreGroups bool) *Inbound {
	if log == nil {
		log = slog.Default()
	}
	return &Inbound{
		directory:    directory,
		resolver:     resolver,
		ledger:       ledger,
		inboxID:      inboxID,
		ignoreGroups: ignoreGroups,
		logger:       log.With(slog.String("component", "inbound")),
	}
}

// Forward delivers one transport message into its identity's conversation.
// Delivery failures are appended to the failure ledger and reported back; the
// caller is expected to log and keep consuming.
func (f *Inbound) Forward(ctx context.Context, msg InboundMessage) error {
	if msg.IsGroup && f.ignoreGroups {
		return nil
	}
	key := identity.Key(msg.SenderID)

	if err := f.forward(ctx, key, msg); err != nil {
		f.logger.Error("inbound forward failed",
			slog.String("identity_key", key),
			slog.Any("error", err),
		)
		if f.ledger != nil {
			payload := map[string]any{
				"sender_id":  msg.SenderID,
				"username":   msg.Username,
				"first_name": msg.FirstName,
				"last_name":  msg.LastName,
				"phone":      msg.Phone,
				"text":       msg.Text,
			}
			if lerr := f.ledger.Append(ctx, DirectionInbound, key, payload, err.Error()); lerr != nil {
				f.logger.Error("ledger append failed",
					slog.String("identity_key", key),
					slog.Any("error", lerr),
				)
			}
		}
		return err
	}
	return nil
}

func (f *Inbound) forward(ctx context.Context, key string, msg InboundMessage) error {
	contact, err := f.ensureContact(ctx, key, msg)
	if err != nil {
		return fmt.Errorf("ensure contact: %w", err)
	}
	conversation, err := f.resolver.Resolve(ctx, key, f.inboxID, contact.ID)
	if err != nil {
		return fmt.Errorf("resolve conversation: %w", err)
	}
	if _, err := f.directory.CreateMessage(ctx, conversation.ID, msg.Text, chatwoot.MessageIncoming); err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	return nil
}

// ensureContact finds or creates the contact for the identity key, pushing
// profile updates only when the remote values actually differ.
func (f *Inbound) ensureContact(ctx context.Context, key string, msg InboundMessage) (chatwoot.Contact, error) {
	name := msg.DisplayName()
	phone := strings.TrimSpace(msg.Phone)

	contact, found, err := f.directory.SearchContact(ctx, key)
	if err != nil {
		return chatwoot.Contact{}, fmt.Errorf("search contact: %w", err)
	}
	if !found {
		created, err := f.directory.CreateContact(ctx, chatwoot.ContactInput{
			Identifier:  key,
			Name:        name,
			PhoneNumber: phone,
		})
		if err != nil {
			return chatwoot.Contact{}, fmt.Errorf("create contact: %w", err)
		}
		return created, nil
	}

	var update chatwoot.ContactInput
	if name != "" && name != contact.Name {
		update.Name = name
	}
	if phone != "" && phone != contact.PhoneNumber {
		update.PhoneNumber = phone
	}
	if update == (chatwoot.ContactInput{}) {
		return contact, nil
	}
	updated, err := f.directory.UpdateContact(ctx, contact.ID, update)
	if err != nil {
		// A stale name must not block message delivery.
		f.logger.Warn("contact update failed",
			slog.String("identity_key", key),
			slog.Any("error", err),
		)
		return contact, nil
	}
	return updated, nil
}
