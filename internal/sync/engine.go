package sync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/avilar/dealersync/internal/bus"
	"github.com/avilar/dealersync/internal/phone"
	"github.com/avilar/dealersync/internal/store"
)

// Options tunes the engine. Zero values fall back to defaults.
type Options struct {
	// SingleFetchLimit caps one on-demand conversation sync.
	SingleFetchLimit int
	// BulkFetchLimit is the smaller per-conversation cap used during a
	// bulk run, bounding load on the messaging session.
	BulkFetchLimit int
	// BulkPageSize caps how many conversations one bulk run visits,
	// most recently active first.
	BulkPageSize int
	// AbortOnLookupError aborts a whole bulk run when one
	// conversation's message-id set cannot be read. Default is to skip
	// that conversation and continue.
	AbortOnLookupError bool
}

func (o Options) withDefaults() Options {
	if o.SingleFetchLimit <= 0 {
		o.SingleFetchLimit = 1000
	}
	if o.BulkFetchLimit <= 0 {
		o.BulkFetchLimit = 50
	}
	if o.BulkPageSize <= 0 {
		o.BulkPageSize = 25
	}
	return o
}

// Engine synchronizes conversation history between the messaging session
// and the store. It also ingests live messages published on the bus by
// the session adapter, so the pull path and the event path land in the
// same rows.
type Engine struct {
	db       *store.DB
	session  Session
	resolver *Resolver
	bus      *bus.Bus
	logger   *zap.Logger
	opts     Options
	cancel   context.CancelFunc
}

// NewEngine creates an engine. All collaborators are injected; the
// engine holds no ambient state beyond them.
func NewEngine(db *store.DB, session Session, b *bus.Bus, logger *zap.Logger, opts Options) *Engine {
	return &Engine{
		db:       db,
		session:  session,
		resolver: NewResolver(db),
		bus:      b,
		logger:   logger,
		opts:     opts.withDefaults(),
	}
}

// Resolver exposes the engine's conversation resolver for the API layer.
func (e *Engine) Resolver() *Resolver {
	return e.resolver
}

// SyncConversation pulls history for one conversation. Idempotent but
// not atomic: a run cut short leaves the saved prefix behind, and the
// next run picks up the rest.
func (e *Engine) SyncConversation(ctx context.Context, id string) (*Result, error) {
	conv, err := e.resolver.Get(id)
	if err != nil {
		return nil, err
	}
	if !e.session.Connected() {
		return nil, ErrSessionUnavailable
	}
	return e.syncOne(ctx, conv, e.opts.SingleFetchLimit)
}

// SyncAll pulls history for a page of tracked conversations, most
// recently active first. A failure on one conversation is recorded and
// the loop moves on; only ErrSessionUnavailable (and, when configured,
// a LookupError) aborts the run.
func (e *Engine) SyncAll(ctx context.Context) (*BulkResult, error) {
	if !e.session.Connected() {
		return nil, ErrSessionUnavailable
	}

	convs, err := e.db.ListConversations(e.opts.BulkPageSize, 0)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	bulk := &BulkResult{Errors: make(map[string]string)}
	for i := range convs {
		conv := &convs[i]
		res, err := e.syncOne(ctx, conv, e.opts.BulkFetchLimit)
		if err != nil {
			var le *LookupError
			if errors.As(err, &le) && e.opts.AbortOnLookupError {
				return nil, err
			}
			e.logger.Warn("conversation sync failed",
				zap.String("conversation_id", conv.ID),
				zap.Error(err))
			bulk.Errors[conv.ID] = err.Error()
			continue
		}
		bulk.add(res)
	}

	if err := e.db.SetSyncState("last_bulk_run", strconv.FormatInt(time.Now().UnixMilli(), 10)); err != nil {
		e.logger.Warn("failed to record bulk run checkpoint", zap.Error(err))
	}
	return bulk, nil
}

// syncOne runs the normalize → dedup → persist pipeline for one
// conversation. Message rows are written in source order; the
// conversation timestamp moves last, after every persistence attempt.
func (e *Engine) syncOne(ctx context.Context, conv *store.Conversation, fetchLimit int) (*Result, error) {
	chats, err := e.session.Chats(ctx)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	var chatID string
	for _, c := range chats {
		if phone.Matches(c.ID, conv.PhoneNumber) {
			chatID = c.ID
			break
		}
	}
	if chatID == "" {
		return nil, fmt.Errorf("conversation %s (phone %s): %w", conv.ID, conv.PhoneNumber, ErrChatNotFound)
	}

	native, err := e.session.Messages(ctx, chatID, fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	res := &Result{ConversationID: conv.ID, Examined: len(native)}
	if len(native) == 0 {
		return res, nil
	}

	candidates := make([]*store.Message, 0, len(native))
	for _, n := range native {
		m, err := Normalize(n, conv.ID)
		if err != nil {
			res.Invalid++
			e.logger.Warn("rejected malformed message",
				zap.String("conversation_id", conv.ID),
				zap.Error(err))
			continue
		}
		candidates = append(candidates, m)
	}

	existing, err := e.db.MessageIDSet(conv.ID)
	if err != nil {
		return nil, &LookupError{ConversationID: conv.ID, Err: err}
	}

	fresh, skipped := Unseen(candidates, existing)
	res.Skipped = skipped

	for _, m := range fresh {
		if err := e.db.InsertMessage(m); err != nil {
			res.Failed++
			e.logger.Error("failed to persist message",
				zap.String("conversation_id", conv.ID),
				zap.String("message_id", m.MessageID),
				zap.Error(err))
			continue
		}
		res.Saved++
	}

	// Timestamp reflects the whole fetched batch, not only what was
	// newly saved, so a fully-duplicate batch still keeps the
	// conversation's activity current.
	var maxTs int64
	for _, m := range candidates {
		if m.Timestamp > maxTs {
			maxTs = m.Timestamp
		}
	}
	if maxTs > 0 {
		if err := e.db.TouchConversation(conv.ID, maxTs); err != nil {
			e.logger.Error("failed to update conversation timestamp",
				zap.String("conversation_id", conv.ID),
				zap.Error(err))
		}
	}

	e.bus.Publish(bus.Event{
		Kind:      bus.KindSyncRun,
		Timestamp: time.Now(),
		Payload:   res,
	})

	e.logger.Info("conversation synced",
		zap.String("conversation_id", conv.ID),
		zap.Int("examined", res.Examined),
		zap.Int("saved", res.Saved),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

// Start subscribes to live messages on the bus. Live ingest shares the
// dedup key space with the pull path, so a message seen both ways is
// stored once.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("wa.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the live ingest loop.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	if evt.Kind != bus.KindWAMessage {
		return
	}
	in, ok := evt.Payload.(*Inbound)
	if !ok {
		return
	}
	if err := e.IngestLive(in); err != nil {
		e.logger.Error("failed to ingest live message",
			zap.String("chat_id", in.ChatID),
			zap.String("message_id", in.Message.ID),
			zap.Error(err))
	}
}

// IngestLive persists one live message, creating the conversation on
// first contact. Group chats are not tracked.
func (e *Engine) IngestLive(in *Inbound) error {
	if phone.IsGroup(in.ChatID) {
		return nil
	}

	conv, err := e.resolver.Resolve(in.ChatID, "", "")
	if err != nil {
		return err
	}

	m, err := Normalize(in.Message, conv.ID)
	if err != nil {
		return err
	}

	if err := e.db.InsertMessage(m); err != nil {
		return fmt.Errorf("persist message: %w", err)
	}
	if err := e.db.TouchConversation(conv.ID, m.Timestamp); err != nil {
		return fmt.Errorf("update conversation timestamp: %w", err)
	}

	e.bus.Publish(bus.Event{
		Kind:      bus.KindMessageSaved,
		Timestamp: time.Now(),
		Payload: map[string]string{
			"conversation_id": conv.ID,
			"message_id":      m.MessageID,
		},
	})
	return nil
}
