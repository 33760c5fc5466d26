package sync

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/avilar/dealersync/internal/store"
)

// Normalize converts one session-native message into the store's shape.
// The external id is kept when the service provided one, else a local
// UUID takes its place so the row still has a stable dedup key. The
// timestamp moves from epoch seconds to the store's unix-milli form.
//
// Input is validated rather than passed through: a message without a
// positive timestamp is rejected, and the caller counts it as invalid.
func Normalize(n NativeMessage, conversationID string) (*store.Message, error) {
	if n.Timestamp <= 0 {
		return nil, fmt.Errorf("message %q: non-positive timestamp %d", n.ID, n.Timestamp)
	}

	id := n.ID
	if id == "" {
		id = "local-" + uuid.NewString()
	}

	return &store.Message{
		ConversationID: conversationID,
		MessageID:      id,
		Body:           n.Body,
		FromMe:         n.FromMe,
		Timestamp:      n.Timestamp * 1000,
	}, nil
}
