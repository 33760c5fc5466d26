package outbox

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/avilar/dealersync/internal/bus"
	"github.com/avilar/dealersync/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type fakeTextSender struct {
	sent    []string // chat ids
	fail    error
	msgID   string
	lastMsg string
}

func (f *fakeTextSender) SendText(_ context.Context, chatID, text string) (string, error) {
	if f.fail != nil {
		return "", f.fail
	}
	f.sent = append(f.sent, chatID)
	f.lastMsg = text
	return f.msgID, nil
}

func TestSenderDeliversQueued(t *testing.T) {
	db := testDB(t)
	if err := db.CreateConversation(&store.Conversation{
		ID: "c1", PhoneNumber: "5585992403672", ChatID: "5585992403672@s.whatsapp.net",
	}); err != nil {
		t.Fatal(err)
	}
	if err := db.QueueOutbox("client1", "c1", "seu carro está pronto"); err != nil {
		t.Fatal(err)
	}

	fake := &fakeTextSender{msgID: "SRV1"}
	s := NewSender(db, fake, bus.New(), zap.NewNop(), 0)
	s.ProcessPending(context.Background())

	if len(fake.sent) != 1 || fake.sent[0] != "5585992403672@s.whatsapp.net" {
		t.Errorf("sent to %v, want the conversation's chat id", fake.sent)
	}

	pending, err := db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("%d entries still pending", len(pending))
	}

	// The sent copy is persisted under the server message id.
	msgs, err := db.ListMessages("c1", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].MessageID != "SRV1" || !msgs[0].FromMe {
		t.Errorf("persisted copy = %+v, want from-me message with id SRV1", msgs)
	}

	conv, err := db.GetConversation("c1")
	if err != nil {
		t.Fatal(err)
	}
	if conv.LastMessageAt == 0 {
		t.Error("conversation timestamp not bumped after send")
	}
}

func TestSenderMarksFailed(t *testing.T) {
	db := testDB(t)
	if err := db.CreateConversation(&store.Conversation{ID: "c1", PhoneNumber: "111"}); err != nil {
		t.Fatal(err)
	}
	if err := db.QueueOutbox("client1", "c1", "msg"); err != nil {
		t.Fatal(err)
	}

	fake := &fakeTextSender{fail: errors.New("socket closed")}
	NewSender(db, fake, bus.New(), zap.NewNop(), 0).ProcessPending(context.Background())

	var status, errMsg string
	if err := db.QueryRow(`SELECT status, error_message FROM outbox WHERE client_msg_id = 'client1'`).
		Scan(&status, &errMsg); err != nil {
		t.Fatal(err)
	}
	if status != "failed" || errMsg != "socket closed" {
		t.Errorf("status=%q error=%q, want failed/socket closed", status, errMsg)
	}

	// No message row for a failed send.
	n, err := db.CountMessages("c1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("message count = %d, want 0", n)
	}
}

func TestSenderSkipsUnknownConversation(t *testing.T) {
	db := testDB(t)
	// Queue against a conversation, then remove it to simulate a stale entry.
	if err := db.CreateConversation(&store.Conversation{ID: "c1", PhoneNumber: "111"}); err != nil {
		t.Fatal(err)
	}
	if err := db.QueueOutbox("client1", "c1", "msg"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`DELETE FROM conversations WHERE id = 'c1'`); err != nil {
		t.Fatal(err)
	}

	fake := &fakeTextSender{msgID: "SRV1"}
	NewSender(db, fake, bus.New(), zap.NewNop(), 0).ProcessPending(context.Background())

	if len(fake.sent) != 0 {
		t.Error("nothing should be sent for an unknown conversation")
	}
	var status string
	if err := db.QueryRow(`SELECT status FROM outbox WHERE client_msg_id = 'client1'`).Scan(&status); err != nil {
		t.Fatal(err)
	}
	if status != "failed" {
		t.Errorf("status = %q, want failed", status)
	}
}
