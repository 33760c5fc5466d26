package sync

import (
	"errors"
	"fmt"
)

// Sentinel failures surfaced to callers. Per-message persistence failures
// are never surfaced as errors; they are absorbed into Result.Failed.
var (
	// ErrConversationNotFound means the conversation id is unknown to the store.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrChatNotFound means no live chat matches the conversation's phone number.
	ErrChatNotFound = errors.New("no matching chat in session")
	// ErrSessionUnavailable means the messaging session is not connected.
	ErrSessionUnavailable = errors.New("messaging session unavailable")
)

// LookupError wraps a failure reading a conversation's existing
// message-id set. Bulk sync treats it per Options.AbortOnLookupError.
type LookupError struct {
	ConversationID string
	Err            error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("load message-id set for conversation %s: %v", e.ConversationID, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }
