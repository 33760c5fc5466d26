package sync

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/avilar/dealersync/internal/phone"
	"github.com/avilar/dealersync/internal/store"
)

// Resolver maps phone numbers to persisted conversations, creating one
// on first contact. Conversations are never deleted here.
type Resolver struct {
	db *store.DB
}

// NewResolver creates a resolver backed by the store.
func NewResolver(db *store.DB) *Resolver {
	return &Resolver{db: db}
}

// Resolve finds the conversation for a phone number, creating it if
// absent. vehicleID and userID are only applied on creation; an
// existing conversation keeps its links.
func (r *Resolver) Resolve(phoneNumber, vehicleID, userID string) (*store.Conversation, error) {
	core := phone.Canonical(phoneNumber)
	if core == "" {
		return nil, fmt.Errorf("phone number %q has no digits", phoneNumber)
	}

	conv, err := r.db.GetConversationByPhone(core)
	if err != nil {
		return nil, fmt.Errorf("lookup conversation by phone: %w", err)
	}
	if conv != nil {
		return conv, nil
	}

	conv = &store.Conversation{
		ID:          uuid.NewString(),
		PhoneNumber: core,
		ChatID:      phone.ChatID(core),
		VehicleID:   vehicleID,
		UserID:      userID,
	}
	if err := r.db.CreateConversation(conv); err != nil {
		// Lost the race against a concurrent create for the same number.
		if existing, lookupErr := r.db.GetConversationByPhone(core); lookupErr == nil && existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// Get loads a conversation by id. Returns ErrConversationNotFound when
// the id is unknown to the store.
func (r *Resolver) Get(id string) (*store.Conversation, error) {
	conv, err := r.db.GetConversation(id)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}
