package store

import (
	"database/sql"
	"time"
)

// CreateConversation inserts a new conversation row.
func (db *DB) CreateConversation(c *Conversation) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO conversations (id, phone_number, chat_id, vehicle_id, user_id, last_message_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.PhoneNumber, c.ChatID, c.VehicleID, c.UserID, c.LastMessageAt, now, now)
	return err
}

// GetConversation returns a conversation by id, or nil if absent.
func (db *DB) GetConversation(id string) (*Conversation, error) {
	return db.scanConversation(db.QueryRow(`
		SELECT id, phone_number, chat_id, vehicle_id, user_id, last_message_at
		FROM conversations WHERE id = ?`, id))
}

// GetConversationByPhone returns a conversation by its canonical phone
// number, or nil if absent.
func (db *DB) GetConversationByPhone(phone string) (*Conversation, error) {
	return db.scanConversation(db.QueryRow(`
		SELECT id, phone_number, chat_id, vehicle_id, user_id, last_message_at
		FROM conversations WHERE phone_number = ?`, phone))
}

func (db *DB) scanConversation(row *sql.Row) (*Conversation, error) {
	var c Conversation
	err := row.Scan(&c.ID, &c.PhoneNumber, &c.ChatID, &c.VehicleID, &c.UserID, &c.LastMessageAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConversations returns conversations sorted by last activity descending.
func (db *DB) ListConversations(limit, offset int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, phone_number, chat_id, vehicle_id, user_id, last_message_at
		FROM conversations
		ORDER BY last_message_at DESC, id
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.PhoneNumber, &c.ChatID, &c.VehicleID, &c.UserID, &c.LastMessageAt); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// TouchConversation advances last_message_at to ts. The timestamp never
// moves backwards: a sync replaying old history cannot shadow a newer
// live message.
func (db *DB) TouchConversation(id string, ts int64) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE conversations
		SET last_message_at = MAX(last_message_at, ?), updated_at = ?
		WHERE id = ?`, ts, now, id)
	return err
}

// AssignConversation updates the vehicle and user links on a conversation.
func (db *DB) AssignConversation(id, vehicleID, userID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE conversations SET vehicle_id = ?, user_id = ?, updated_at = ?
		WHERE id = ?`, vehicleID, userID, now, id)
	return err
}
