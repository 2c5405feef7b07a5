package bridge

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/wootbridge/wootbridge/internal/chatwoot"
)

// maxSearchPages bounds every paginated conversation scan so a large or
// misbehaving directory cannot stall resolution.
const maxSearchPages = 10

// ConversationDirectory is the conversation-side subset of the Chatwoot client
// the resolver needs.
type ConversationDirectory interface {
	CreateConversation(ctx context.Context, input chatwoot.ConversationInput) (chatwoot.Conversation, error)
	ListConversations(ctx context.Context, inboxID int, status string, page int) ([]chatwoot.Conversation, error)
	GetConversation(ctx context.Context, id int) (chatwoot.Conversation, error)
}

// Resolver maps an identity key to exactly one Chatwoot conversation,
// creating it when absent. Concurrent resolutions of the same key collapse
// into a single upstream attempt.
type Resolver struct {
	directory ConversationDirectory
	logger    *slog.Logger
	group     singleflight.Group
}

// NewResolver creates a conversation resolver backed by the given directory.
func NewResolver(log *slog.Logger, directory ConversationDirectory) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		directory: directory,
		logger:    log.With(slog.String("component", "resolver")),
	}
}

// Resolve returns the conversation owned by identityKey in the given inbox,
// creating one when none exists. Creation conflicts caused by concurrent
// writers are absorbed by re-searching for the winner.
func (r *Resolver) Resolve(ctx context.Context, identityKey string, inboxID, contactID int) (chatwoot.Conversation, error) {
	if identityKey == "" {
		return chatwoot.Conversation{}, fmt.Errorf("resolve conversation: empty identity key")
	}
	v, err, _ := r.group.Do(fmt.Sprintf("%s/%d", identityKey, inboxID), func() (any, error) {
		return r.resolve(ctx, identityKey, inboxID, contactID)
	})
	if err != nil {
		return chatwoot.Conversation{}, err
	}
	return v.(chatwoot.Conversation), nil
}

func (r *Resolver) resolve(ctx context.Context, identityKey string, inboxID, contactID int) (chatwoot.Conversation, error) {
	conversation, found, err := r.findByContact(ctx, inboxID, contactID)
	if err != nil {
		return chatwoot.Conversation{}, fmt.Errorf("search inbox conversations: %w", err)
	}
	if found {
		r.logger.Info("conversation resolved",
			slog.String("outcome", "found_existing"),
			slog.String("identity_key", identityKey),
			slog.Int("conversation_id", conversation.ID),
		)
		return conversation, nil
	}

	conversation, err = r.directory.CreateConversation(ctx, chatwoot.ConversationInput{
		InboxID:   inboxID,
		ContactID: contactID,
		SourceID:  identityKey,
	})
	if err == nil {
		r.logger.Info("conversation resolved",
			slog.String("outcome", "created"),
			slog.String("identity_key", identityKey),
			slog.Int("conversation_id", conversation.ID),
		)
		return conversation, nil
	}
	if !chatwoot.IsConflict(err) {
		return chatwoot.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}

	// A concurrent writer won the source tag. The winner's conversation may
	// live outside the inbox filter, so search across all inboxes.
	conversation, found, serr := r.findBySourceTag(ctx, identityKey)
	if serr != nil {
		return chatwoot.Conversation{}, fmt.Errorf("search conflicting conversation: %w", serr)
	}
	if found {
		r.logger.Info("conversation resolved",
			slog.String("outcome", "conflict_resolved"),
			slog.String("identity_key", identityKey),
			slog.Int("conversation_id", conversation.ID),
		)
		return conversation, nil
	}

	// The conflicting conversation is invisible to every search shape.
	// Creating without a source tag keeps messages flowing at the cost of a
	// second conversation for this identity.
	conversation, err = r.directory.CreateConversation(ctx, chatwoot.ConversationInput{
		InboxID:   inboxID,
		ContactID: contactID,
	})
	if err != nil {
		return chatwoot.Conversation{}, fmt.Errorf("create conversation without source tag: %w", err)
	}
	r.logger.Warn("conversation resolved",
		slog.String("outcome", "created_without_source"),
		slog.String("identity_key", identityKey),
		slog.Int("conversation_id", conversation.ID),
	)
	return conversation, nil
}

// findByContact scans the inbox for a conversation belonging to the contact,
// regardless of its status.
func (r *Resolver) findByContact(ctx context.Context, inboxID, contactID int) (chatwoot.Conversation, bool, error) {
	for page := 1; page <= maxSearchPages; page++ {
		conversations, err := r.directory.ListConversations(ctx, inboxID, chatwoot.StatusAll, page)
		if err != nil {
			return chatwoot.Conversation{}, false, err
		}
		if len(conversations) == 0 {
			return chatwoot.Conversation{}, false, nil
		}
		for _, c := range conversations {
			if c.ContactID() == contactID {
				return c, true, nil
			}
		}
	}
	return chatwoot.Conversation{}, false, nil
}

// findBySourceTag scans conversations across all inboxes for one carrying the
// identity key as its source tag. Listings that hide the tag are re-fetched
// individually, since the detail shape exposes fields the listing omits.
func (r *Resolver) findBySourceTag(ctx context.Context, identityKey string) (chatwoot.Conversation, bool, error) {
	for page := 1; page <= maxSearchPages; page++ {
		conversations, err := r.directory.ListConversations(ctx, 0, chatwoot.StatusAll, page)
		if err != nil {
			return chatwoot.Conversation{}, false, err
		}
		if len(conversations) == 0 {
			return chatwoot.Conversation{}, false, nil
		}
		for _, c := range conversations {
			tag := c.SourceTag()
			if tag == "" {
				detail, derr := r.directory.GetConversation(ctx, c.ID)
				if derr != nil {
					r.logger.Warn("conversation detail fetch failed",
						slog.Int("conversation_id", c.ID),
						slog.Any("error", derr),
					)
					continue
				}
				c = detail
				tag = detail.SourceTag()
			}
			if tag == identityKey {
				return c, true, nil
			}
		}
	}
	return chatwoot.Conversation{}, false, nil
}
