package store

// Conversation groups all messages exchanged with one phone number,
// optionally tied to a vehicle sale and an owning staff user.
type Conversation struct {
	ID            string
	PhoneNumber   string // canonical numeric core, unique
	ChatID        string // messaging-service chat identifier
	VehicleID     string // empty when not linked to a vehicle
	UserID        string // empty when unassigned
	LastMessageAt int64  // unix millis, 0 until the first message lands
}

// Message is one persisted message. Rows are created once and never
// mutated; (ConversationID, MessageID) is unique.
type Message struct {
	ID             int64
	ConversationID string
	MessageID      string // messaging-service id, the dedup key
	Body           string
	FromMe         bool
	Timestamp      int64 // unix millis
	UserID         string
}

// OutboxEntry is a staff-sent message waiting to go out.
type OutboxEntry struct {
	ID             int64
	ClientMsgID    string
	ConversationID string
	Body           string
	Status         string // queued, sending, sent, failed
	ErrorMessage   string
	ServerMsgID    string
}
