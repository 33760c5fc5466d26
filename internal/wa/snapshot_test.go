package wa

import (
	"fmt"
	"testing"

	isync "github.com/avilar/dealersync/internal/sync"
)

func TestSnapshotRecordAndList(t *testing.T) {
	s := newSnapshot()
	s.record("111@s.whatsapp.net", "Alice", isync.NativeMessage{ID: "a1", Timestamp: 100})
	s.record("222@s.whatsapp.net", "Bob", isync.NativeMessage{ID: "b1", Timestamp: 300})
	s.record("111@s.whatsapp.net", "", isync.NativeMessage{ID: "a2", Timestamp: 200})

	chats := s.list()
	if len(chats) != 2 {
		t.Fatalf("got %d chats, want 2", len(chats))
	}
	// Most recently active first.
	if chats[0].ID != "222@s.whatsapp.net" {
		t.Errorf("chats[0] = %q, want 222", chats[0].ID)
	}
	// Name survives a record call with empty name.
	if chats[1].Name != "Alice" {
		t.Errorf("name = %q, want Alice", chats[1].Name)
	}
}

func TestSnapshotDeduplicatesByID(t *testing.T) {
	s := newSnapshot()
	s.record("c", "", isync.NativeMessage{ID: "m1", Timestamp: 1})
	s.record("c", "", isync.NativeMessage{ID: "m1", Timestamp: 1})

	if got := s.messages("c", 0); len(got) != 1 {
		t.Errorf("got %d messages, want 1", len(got))
	}
}

func TestSnapshotMessagesLimitKeepsNewest(t *testing.T) {
	s := newSnapshot()
	for i := 1; i <= 5; i++ {
		s.record("c", "", isync.NativeMessage{ID: fmt.Sprintf("m%d", i), Timestamp: int64(i)})
	}

	got := s.messages("c", 2)
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	if got[0].ID != "m4" || got[1].ID != "m5" {
		t.Errorf("messages = [%s %s], want newest [m4 m5] in order", got[0].ID, got[1].ID)
	}
}

func TestSnapshotUnknownChat(t *testing.T) {
	s := newSnapshot()
	if got := s.messages("nope", 10); got != nil {
		t.Errorf("messages for unknown chat = %v, want nil", got)
	}
}

func TestSnapshotEviction(t *testing.T) {
	s := newSnapshot()
	for i := 0; i < maxBuffered+10; i++ {
		s.record("c", "", isync.NativeMessage{ID: fmt.Sprintf("m%d", i), Timestamp: int64(i + 1)})
	}

	got := s.messages("c", 0)
	if len(got) != maxBuffered {
		t.Fatalf("got %d messages, want cap %d", len(got), maxBuffered)
	}
	if got[0].ID != "m10" {
		t.Errorf("oldest kept = %q, want m10", got[0].ID)
	}
	// An evicted id can be recorded again.
	s.record("c", "", isync.NativeMessage{ID: "m0", Timestamp: 1})
	if got := s.messages("c", 0); got[len(got)-1].ID != "m0" {
		t.Error("evicted id could not be re-recorded")
	}
}
