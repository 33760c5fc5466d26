package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/avilar/dealersync/internal/bus"
	"github.com/avilar/dealersync/internal/status"
	"github.com/avilar/dealersync/internal/store"
	isync "github.com/avilar/dealersync/internal/sync"
)

type fakeSession struct {
	connected bool
	phone     string
	chats     []isync.Chat
	messages  map[string][]isync.NativeMessage
}

func (f *fakeSession) Connected() bool     { return f.connected }
func (f *fakeSession) PhoneNumber() string { return f.phone }

func (f *fakeSession) Chats(context.Context) ([]isync.Chat, error) {
	return f.chats, nil
}

func (f *fakeSession) Messages(_ context.Context, chatID string, limit int) ([]isync.NativeMessage, error) {
	msgs := f.messages[chatID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func testHandler(t *testing.T, session *fakeSession) (*Handler, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "crm.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	b := bus.New()
	logger := zap.NewNop()
	engine := isync.NewEngine(db, session, b, logger, isync.Options{})
	machine := status.NewMachine(b)

	qrPath := filepath.Join(t.TempDir(), "qr.png")
	return NewHandler(db, engine, machine, session, qrPath, logger), db
}

func doRequest(t *testing.T, h *Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.Routes(nil).ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h, _ := testHandler(t, &fakeSession{})
	rec := doRequest(t, h, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestSessionStatus(t *testing.T) {
	session := &fakeSession{connected: true, phone: "5511999990000"}
	h, _ := testHandler(t, session)

	rec := doRequest(t, h, http.MethodGet, "/api/session", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var got struct {
		State     string `json:"state"`
		Connected bool   `json:"connected"`
		Phone     string `json:"phone"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.State != string(status.Booting) {
		t.Errorf("expected BOOTING, got %s", got.State)
	}
	if !got.Connected || got.Phone != "5511999990000" {
		t.Errorf("unexpected session payload: %+v", got)
	}
}

func TestSessionQRNotAvailable(t *testing.T) {
	h, _ := testHandler(t, &fakeSession{})
	rec := doRequest(t, h, http.MethodGet, "/api/session/qr", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCreateAndGetConversation(t *testing.T) {
	h, _ := testHandler(t, &fakeSession{})

	rec := doRequest(t, h, http.MethodPost, "/api/conversations", createConversationRequest{
		PhoneNumber: "+55 11 99999-0000",
		VehicleID:   "veh-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var conv conversationDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if conv.PhoneNumber != "5511999990000" {
		t.Errorf("expected normalized phone, got %s", conv.PhoneNumber)
	}
	if conv.VehicleID != "veh-1" {
		t.Errorf("expected vehicle link, got %q", conv.VehicleID)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/conversations/"+conv.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestGetConversationNotFound(t *testing.T) {
	h, _ := testHandler(t, &fakeSession{})
	rec := doRequest(t, h, http.MethodGet, "/api/conversations/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "conversation_not_found" {
		t.Errorf("expected conversation_not_found, got %s", body.Error)
	}
}

func TestListConversations(t *testing.T) {
	h, _ := testHandler(t, &fakeSession{})
	for _, phone := range []string{"5511900000001", "5511900000002"} {
		rec := doRequest(t, h, http.MethodPost, "/api/conversations", createConversationRequest{PhoneNumber: phone})
		if rec.Code != http.StatusOK {
			t.Fatalf("create %s: %d", phone, rec.Code)
		}
	}

	rec := doRequest(t, h, http.MethodGet, "/api/conversations", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var convs []conversationDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &convs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(convs))
	}
}

func TestSyncConversation(t *testing.T) {
	session := &fakeSession{
		connected: true,
		chats:     []isync.Chat{{ID: "5511999990000@s.whatsapp.net", Name: "Buyer"}},
		messages: map[string][]isync.NativeMessage{
			"5511999990000@s.whatsapp.net": {
				{ID: "m1", Body: "hi", Timestamp: 100},
				{ID: "m2", Body: "still interested?", Timestamp: 200},
			},
		},
	}
	h, db := testHandler(t, session)

	rec := doRequest(t, h, http.MethodPost, "/api/conversations", createConversationRequest{PhoneNumber: "5511999990000"})
	var conv conversationDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/conversations/"+conv.ID+"/sync", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var res isync.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Saved != 2 {
		t.Errorf("expected 2 saved, got %d", res.Saved)
	}

	count, err := db.CountMessages(conv.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 persisted messages, got %d", count)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/conversations/"+conv.ID+"/messages", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var msgs []messageDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &msgs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
}

func TestSyncSessionUnavailable(t *testing.T) {
	h, _ := testHandler(t, &fakeSession{connected: false})

	rec := doRequest(t, h, http.MethodPost, "/api/conversations", createConversationRequest{PhoneNumber: "5511999990000"})
	var conv conversationDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/conversations/"+conv.ID+"/sync", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "session_unavailable" {
		t.Errorf("expected session_unavailable, got %s", body.Error)
	}
}

func TestSyncChatNotFound(t *testing.T) {
	h, _ := testHandler(t, &fakeSession{connected: true})

	rec := doRequest(t, h, http.MethodPost, "/api/conversations", createConversationRequest{PhoneNumber: "5511999990000"})
	var conv conversationDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/conversations/"+conv.ID+"/sync", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "chat_not_found" {
		t.Errorf("expected chat_not_found, got %s", body.Error)
	}
}

func TestSyncAll(t *testing.T) {
	session := &fakeSession{
		connected: true,
		chats:     []isync.Chat{{ID: "5511999990000@s.whatsapp.net"}},
		messages: map[string][]isync.NativeMessage{
			"5511999990000@s.whatsapp.net": {{ID: "m1", Body: "hi", Timestamp: 100}},
		},
	}
	h, _ := testHandler(t, session)

	rec := doRequest(t, h, http.MethodPost, "/api/conversations", createConversationRequest{PhoneNumber: "5511999990000"})
	if rec.Code != http.StatusOK {
		t.Fatalf("create: %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/sync", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var bulk isync.BulkResult
	if err := json.Unmarshal(rec.Body.Bytes(), &bulk); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if bulk.Totals.Saved != 1 {
		t.Errorf("expected 1 saved total, got %d", bulk.Totals.Saved)
	}
}

func TestSendMessageQueues(t *testing.T) {
	h, db := testHandler(t, &fakeSession{})

	rec := doRequest(t, h, http.MethodPost, "/api/conversations", createConversationRequest{PhoneNumber: "5511999990000"})
	var conv conversationDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/conversations/"+conv.ID+"/messages", sendMessageRequest{Body: "we have the car you asked about"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	pending, err := db.PendingOutbox()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending entry, got %d", len(pending))
	}
	if pending[0].ConversationID != conv.ID {
		t.Errorf("entry bound to wrong conversation: %s", pending[0].ConversationID)
	}
}

func TestSendMessageEmptyBody(t *testing.T) {
	h, _ := testHandler(t, &fakeSession{})

	rec := doRequest(t, h, http.MethodPost, "/api/conversations", createConversationRequest{PhoneNumber: "5511999990000"})
	var conv conversationDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/conversations/"+conv.ID+"/messages", sendMessageRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestExportWorkbook(t *testing.T) {
	h, _ := testHandler(t, &fakeSession{})

	rec := doRequest(t, h, http.MethodGet, "/api/export.xlsx", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("unexpected content type: %s", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected workbook bytes")
	}
}
