// Package sync pulls conversation history from the live messaging
// session into the CRM store: normalize, deduplicate, persist. Every
// entry point is idempotent at the message level, so a crashed or
// abandoned run is recovered by simply running again.
package sync

import "context"

// Chat is one peer thread as the messaging session sees it.
type Chat struct {
	ID   string // phone-number-derived identifier with a service suffix
	Name string
}

// NativeMessage is a message in the messaging session's own shape.
type NativeMessage struct {
	ID         string // service-unique id; empty means the service gave none
	Body       string
	FromMe     bool
	Timestamp  int64 // seconds since epoch
	SenderName string
}

// Inbound is a live message delivered by the session adapter over the bus.
type Inbound struct {
	ChatID  string
	Message NativeMessage
}

// Session is the capability the engine needs from the messaging session.
// Implemented by the WhatsApp adapter; tests use fakes.
type Session interface {
	// Connected reports whether the session can be queried right now.
	Connected() bool
	// Chats lists the live chats known to the session.
	Chats(ctx context.Context) ([]Chat, error)
	// Messages returns up to limit messages for one chat, oldest first.
	Messages(ctx context.Context, chatID string, limit int) ([]NativeMessage, error)
}
