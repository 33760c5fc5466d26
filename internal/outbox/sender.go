// Package outbox drains staff-queued messages and sends them through
// the messaging session. The sent copy is persisted under the server
// message id, so when the same message later comes back in a sync
// batch the dedup filter drops it.
package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/avilar/dealersync/internal/bus"
	"github.com/avilar/dealersync/internal/phone"
	"github.com/avilar/dealersync/internal/store"
)

// TextSender is the capability needed from the messaging session.
type TextSender interface {
	SendText(ctx context.Context, chatID string, text string) (serverMsgID string, err error)
}

// Sender polls the outbox and delivers pending messages.
type Sender struct {
	db       *store.DB
	sender   TextSender
	bus      *bus.Bus
	logger   *zap.Logger
	interval time.Duration
	cancel   context.CancelFunc
}

// NewSender creates an outbox sender. interval <= 0 falls back to 500ms.
func NewSender(db *store.DB, sender TextSender, b *bus.Bus, logger *zap.Logger, interval time.Duration) *Sender {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Sender{
		db:       db,
		sender:   sender,
		bus:      b,
		logger:   logger,
		interval: interval,
	}
}

// Start begins polling the outbox for pending messages.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
}

// Stop stops the sender loop.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Sender) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.ProcessPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// ProcessPending drains everything currently queued. One entry failing
// does not stop the rest.
func (s *Sender) ProcessPending(ctx context.Context) {
	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for _, entry := range pending {
		s.deliver(ctx, entry)
	}
}

func (s *Sender) deliver(ctx context.Context, entry store.OutboxEntry) {
	conv, err := s.db.GetConversation(entry.ConversationID)
	if err != nil || conv == nil {
		s.logger.Error("outbox entry references unknown conversation",
			zap.String("client_msg_id", entry.ClientMsgID),
			zap.String("conversation_id", entry.ConversationID),
			zap.Error(err))
		_ = s.db.MarkOutboxFailed(entry.ClientMsgID, "conversation not found")
		return
	}

	if err := s.db.MarkOutboxSending(entry.ClientMsgID); err != nil {
		s.logger.Error("failed to mark sending", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
		return
	}

	chatID := conv.ChatID
	if chatID == "" {
		chatID = phone.ChatID(conv.PhoneNumber)
	}

	serverMsgID, err := s.sender.SendText(ctx, chatID, entry.Body)
	if err != nil {
		s.logger.Error("failed to send message",
			zap.String("client_msg_id", entry.ClientMsgID),
			zap.Error(err))
		_ = s.db.MarkOutboxFailed(entry.ClientMsgID, err.Error())
		s.bus.Publish(bus.Event{
			Kind:      bus.KindSendFailed,
			Timestamp: time.Now(),
			Payload: map[string]string{
				"client_msg_id": entry.ClientMsgID,
				"error":         err.Error(),
			},
		})
		return
	}

	if err := s.db.MarkOutboxSent(entry.ClientMsgID, serverMsgID); err != nil {
		s.logger.Error("failed to mark sent", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
	}

	// Persist under the server id: the dedup key a future sync pass will see.
	now := time.Now().UnixMilli()
	if err := s.db.InsertMessage(&store.Message{
		ConversationID: conv.ID,
		MessageID:      serverMsgID,
		Body:           entry.Body,
		FromMe:         true,
		Timestamp:      now,
	}); err != nil {
		s.logger.Error("failed to persist sent message", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
	}
	if err := s.db.TouchConversation(conv.ID, now); err != nil {
		s.logger.Error("failed to update conversation timestamp", zap.Error(err))
	}

	s.logger.Info("message sent",
		zap.String("client_msg_id", entry.ClientMsgID),
		zap.String("server_msg_id", serverMsgID))
	s.bus.Publish(bus.Event{
		Kind:      bus.KindSendAck,
		Timestamp: time.Now(),
		Payload: map[string]string{
			"client_msg_id": entry.ClientMsgID,
			"server_msg_id": serverMsgID,
		},
	})
}
