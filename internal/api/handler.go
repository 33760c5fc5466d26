// Package api exposes the dashboard-facing HTTP surface: conversations,
// messages, sync triggers, session status, and the Excel export.
package api

import (
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avilar/dealersync/internal/export"
	"github.com/avilar/dealersync/internal/status"
	"github.com/avilar/dealersync/internal/store"
	isync "github.com/avilar/dealersync/internal/sync"
)

// SessionInfo is what the session endpoint needs from the adapter.
type SessionInfo interface {
	Connected() bool
	PhoneNumber() string
}

// Handler carries the collaborators behind the HTTP surface.
type Handler struct {
	db      *store.DB
	engine  *isync.Engine
	machine *status.Machine
	session SessionInfo
	qrPath  string
	logger  *zap.Logger
}

// NewHandler creates the API handler.
func NewHandler(db *store.DB, engine *isync.Engine, machine *status.Machine, session SessionInfo, qrPath string, logger *zap.Logger) *Handler {
	return &Handler{
		db:      db,
		engine:  engine,
		machine: machine,
		session: session,
		qrPath:  qrPath,
		logger:  logger,
	}
}

// Routes builds the chi router for the dashboard API.
func (h *Handler) Routes(allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Get("/api/health", h.health)
	r.Get("/api/session", h.sessionStatus)
	r.Get("/api/session/qr", h.sessionQR)

	r.Route("/api/conversations", func(r chi.Router) {
		r.Get("/", h.listConversations)
		r.Post("/", h.createConversation)
		r.Get("/{id}", h.getConversation)
		r.Get("/{id}/messages", h.listMessages)
		r.Post("/{id}/messages", h.sendMessage)
		r.Post("/{id}/sync", h.syncConversation)
	})

	r.Post("/api/sync", h.syncAll)
	r.Get("/api/export.xlsx", h.exportWorkbook)

	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) sessionStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"state":     h.machine.Current(),
		"connected": h.session.Connected(),
		"phone":     h.session.PhoneNumber(),
	})
}

// sessionQR serves the pairing QR code PNG written by the daemon while
// the session is in AUTH_REQUIRED.
func (h *Handler) sessionQR(w http.ResponseWriter, r *http.Request) {
	if _, err := os.Stat(h.qrPath); err != nil {
		writeError(w, http.StatusNotFound, "qr_not_available", "no pairing in progress")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, h.qrPath)
}

type conversationDTO struct {
	ID            string `json:"id"`
	PhoneNumber   string `json:"phone_number"`
	ChatID        string `json:"chat_id"`
	VehicleID     string `json:"vehicle_id,omitempty"`
	UserID        string `json:"user_id,omitempty"`
	LastMessageAt int64  `json:"last_message_at"`
}

func toConversationDTO(c *store.Conversation) conversationDTO {
	return conversationDTO{
		ID:            c.ID,
		PhoneNumber:   c.PhoneNumber,
		ChatID:        c.ChatID,
		VehicleID:     c.VehicleID,
		UserID:        c.UserID,
		LastMessageAt: c.LastMessageAt,
	}
}

func (h *Handler) listConversations(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	convs, err := h.db.ListConversations(limit, offset)
	if err != nil {
		h.logger.Error("list conversations", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "list conversations failed")
		return
	}

	out := make([]conversationDTO, 0, len(convs))
	for i := range convs {
		out = append(out, toConversationDTO(&convs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

type createConversationRequest struct {
	PhoneNumber string `json:"phone_number"`
	VehicleID   string `json:"vehicle_id"`
	UserID      string `json:"user_id"`
}

func (h *Handler) createConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	conv, err := h.engine.Resolver().Resolve(req.PhoneNumber, req.VehicleID, req.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toConversationDTO(conv))
}

func (h *Handler) getConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.engine.Resolver().Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeSyncError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConversationDTO(conv))
}

type messageDTO struct {
	ID        int64  `json:"id"`
	MessageID string `json:"message_id"`
	Body      string `json:"body"`
	FromMe    bool   `json:"from_me"`
	Timestamp int64  `json:"timestamp"`
	UserID    string `json:"user_id,omitempty"`
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	conv, err := h.engine.Resolver().Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeSyncError(w, err)
		return
	}

	limit := queryInt(r, "limit", 50)
	before := int64(queryInt(r, "before", 0))

	msgs, err := h.db.ListMessages(conv.ID, before, limit)
	if err != nil {
		h.logger.Error("list messages", zap.Error(err), zap.String("conversation_id", conv.ID))
		writeError(w, http.StatusInternalServerError, "internal", "list messages failed")
		return
	}

	out := make([]messageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageDTO{
			ID:        m.ID,
			MessageID: m.MessageID,
			Body:      m.Body,
			FromMe:    m.FromMe,
			Timestamp: m.Timestamp,
			UserID:    m.UserID,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type sendMessageRequest struct {
	Body string `json:"body"`
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	conv, err := h.engine.Resolver().Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeSyncError(w, err)
		return
	}

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if req.Body == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "body is required")
		return
	}

	clientMsgID := uuid.NewString()
	if err := h.db.QueueOutbox(clientMsgID, conv.ID, req.Body); err != nil {
		h.logger.Error("queue outbox", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "queue message failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"client_msg_id": clientMsgID})
}

func (h *Handler) syncConversation(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.SyncConversation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeSyncError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) syncAll(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.SyncAll(r.Context())
	if err != nil {
		h.writeSyncError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) exportWorkbook(w http.ResponseWriter, _ *http.Request) {
	f, err := export.Workbook(h.db)
	if err != nil {
		h.logger.Error("build export", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "export failed")
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="conversations.xlsx"`)
	if err := f.Write(w); err != nil {
		h.logger.Error("write export", zap.Error(err))
	}
}

// writeSyncError maps the sync error taxonomy onto status codes.
func (h *Handler) writeSyncError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, isync.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, "conversation_not_found", err.Error())
	case errors.Is(err, isync.ErrChatNotFound):
		writeError(w, http.StatusNotFound, "chat_not_found", err.Error())
	case errors.Is(err, isync.ErrSessionUnavailable):
		writeError(w, http.StatusServiceUnavailable, "session_unavailable", err.Error())
	default:
		h.logger.Error("sync failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
