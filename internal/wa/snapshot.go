package wa

import (
	"sort"
	stdsync "sync"

	isync "github.com/avilar/dealersync/internal/sync"
)

// maxBuffered caps how many messages the snapshot keeps per chat. The
// sync core re-reads the store on every pass, so older history falling
// off the buffer is only unavailable to future pulls, never lost from
// the store.
const maxBuffered = 2000

// snapshot is the in-memory mirror of the live session: chats and their
// recent messages, fed by history-sync and live message events. It is
// what makes the event-driven whatsmeow connection queryable pull-style.
type snapshot struct {
	mu    stdsync.RWMutex
	chats map[string]*chatBuffer
}

type chatBuffer struct {
	id           string
	name         string
	lastActivity int64
	msgs         []isync.NativeMessage
	seen         map[string]struct{}
}

func newSnapshot() *snapshot {
	return &snapshot{chats: make(map[string]*chatBuffer)}
}

// record adds one message to a chat's buffer, creating the chat entry
// on first sight. Messages already buffered (by id) are ignored.
func (s *snapshot) record(chatID, chatName string, msg isync.NativeMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cb := s.chats[chatID]
	if cb == nil {
		cb = &chatBuffer{id: chatID, seen: make(map[string]struct{})}
		s.chats[chatID] = cb
	}
	if chatName != "" {
		cb.name = chatName
	}
	if msg.Timestamp > cb.lastActivity {
		cb.lastActivity = msg.Timestamp
	}

	if msg.ID != "" {
		if _, dup := cb.seen[msg.ID]; dup {
			return
		}
		cb.seen[msg.ID] = struct{}{}
	}
	cb.msgs = append(cb.msgs, msg)
	if len(cb.msgs) > maxBuffered {
		evicted := cb.msgs[0]
		cb.msgs = cb.msgs[1:]
		if evicted.ID != "" {
			delete(cb.seen, evicted.ID)
		}
	}
}

// list returns the known chats, most recently active first.
func (s *snapshot) list() []isync.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chats := make([]isync.Chat, 0, len(s.chats))
	order := make(map[string]int64, len(s.chats))
	for _, cb := range s.chats {
		chats = append(chats, isync.Chat{ID: cb.id, Name: cb.name})
		order[cb.id] = cb.lastActivity
	}
	sort.Slice(chats, func(i, j int) bool {
		if order[chats[i].ID] != order[chats[j].ID] {
			return order[chats[i].ID] > order[chats[j].ID]
		}
		return chats[i].ID < chats[j].ID
	})
	return chats
}

// messages returns up to limit messages for one chat in the order they
// were recorded, keeping the newest when truncating.
func (s *snapshot) messages(chatID string, limit int) []isync.NativeMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cb := s.chats[chatID]
	if cb == nil {
		return nil
	}
	msgs := cb.msgs
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]isync.NativeMessage, len(msgs))
	copy(out, msgs)
	return out
}
