package store

import "time"

// InsertMessage persists one message. Inserting the same
// (conversation_id, message_id) twice is a no-op: the unique index is
// the last line of defense against concurrent writers racing the
// dedup pass.
func (db *DB) InsertMessage(m *Message) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (conversation_id, message_id, body, is_from_me, timestamp, user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id, message_id) DO NOTHING`,
		m.ConversationID, m.MessageID, m.Body, m.FromMe, m.Timestamp, m.UserID, now)
	return err
}

// MessageIDSet returns the set of external message ids already persisted
// for a conversation. Re-read on every sync pass; nothing is cached.
func (db *DB) MessageIDSet(conversationID string) (map[string]struct{}, error) {
	rows, err := db.Query(`SELECT message_id FROM messages WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// ListMessages returns messages for a conversation using keyset
// pagination by timestamp, newest first.
func (db *DB) ListMessages(conversationID string, beforeTs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT id, conversation_id, message_id, body, is_from_me, timestamp, user_id
		FROM messages
		WHERE conversation_id = ? AND timestamp < ?
		ORDER BY timestamp DESC
		LIMIT ?`, conversationID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.MessageID, &m.Body, &m.FromMe, &m.Timestamp, &m.UserID); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// CountMessages returns the number of persisted messages for a conversation.
func (db *DB) CountMessages(conversationID string) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&n)
	return n, err
}
