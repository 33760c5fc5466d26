package wa

import (
	"time"

	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	"github.com/avilar/dealersync/internal/bus"
	"github.com/avilar/dealersync/internal/status"
	isync "github.com/avilar/dealersync/internal/sync"
)

// EventHandler processes whatsmeow events: it feeds the session
// snapshot, drives the state machine, and publishes live messages on
// the bus. It never touches the store directly; the sync engine
// subscribes to the bus independently.
type EventHandler struct {
	adapter *Adapter
	machine *status.Machine
	logger  *zap.Logger
}

// NewEventHandler creates an event handler bound to one adapter.
func NewEventHandler(a *Adapter, machine *status.Machine, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		adapter: a,
		machine: machine,
		logger:  logger,
	}
}

// Handle is the main whatsmeow event handler function.
func (h *EventHandler) Handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		h.handleMessage(evt)
	case *events.Connected:
		h.logger.Info("WhatsApp connected")
		current := h.machine.Current()
		if current == status.AuthRequired || current == status.Reconnecting {
			_ = h.machine.Transition(status.Connecting)
		}
		_ = h.machine.Transition(status.Syncing)
	case *events.Disconnected:
		h.logger.Warn("WhatsApp disconnected")
		_ = h.machine.Transition(status.Reconnecting)
	case *events.HistorySync:
		h.handleHistorySync(evt)
	case *events.LoggedOut:
		h.logger.Warn("WhatsApp logged out", zap.String("reason", evt.Reason.String()))
		_ = h.machine.Transition(status.AuthRequired)
		h.adapter.bus.Publish(bus.Event{Kind: bus.KindLoggedOut, Timestamp: time.Now(), Payload: evt.Reason.String()})
	}
}

func (h *EventHandler) handleMessage(evt *events.Message) {
	if h.machine.Current() == status.Syncing {
		_ = h.machine.Transition(status.Ready)
	}

	chatID, msg := ParseLiveMessage(evt)
	h.adapter.snapshot.record(chatID, evt.Info.PushName, msg)

	h.adapter.bus.Publish(bus.Event{
		Kind:      bus.KindWAMessage,
		Timestamp: time.Now(),
		Payload:   &isync.Inbound{ChatID: chatID, Message: msg},
	})
}

// handleHistorySync only feeds the snapshot. History is bulk data; it
// reaches the store when a sync pass pulls it, not message-by-message
// over the bus.
func (h *EventHandler) handleHistorySync(evt *events.HistorySync) {
	data := evt.Data
	if data == nil {
		return
	}

	count := 0
	for _, conv := range data.GetConversations() {
		chatID := conv.GetID()
		name := conv.GetName()
		for _, hm := range conv.GetMessages() {
			wmsg := hm.GetMessage()
			if wmsg == nil || wmsg.GetMessage() == nil {
				continue
			}
			h.adapter.snapshot.record(chatID, name, isync.NativeMessage{
				ID:        wmsg.GetKey().GetID(),
				Body:      messageBody(wmsg.GetMessage()),
				FromMe:    wmsg.GetKey().GetFromMe(),
				Timestamp: int64(wmsg.GetMessageTimestamp()),
			})
			count++
		}
	}
	if count > 0 {
		h.logger.Info("history batch buffered", zap.Int("messages", count))
	}
}
