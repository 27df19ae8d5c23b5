package cache

import (
	"context"

	"github.com/mcostalima/trill/internal/bus"
	"github.com/mcostalima/trill/internal/store"
	"go.uber.org/zap"
)

// Syncer mirrors conversation and chat events into the cache database so the
// next launch can render the sidebar and recent messages before the stream
// reconnects. It subscribes to "message." and "chat." events on the bus.
type Syncer struct {
	db     *DB
	bus    *bus.Bus
	convos *store.Conversations
	chats  *store.ChatList
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewSyncer creates a new cache syncer.
func NewSyncer(db *DB, b *bus.Bus, convos *store.Conversations, chats *store.ChatList, logger *zap.Logger) *Syncer {
	return &Syncer{
		db:     db,
		bus:    b,
		convos: convos,
		chats:  chats,
		logger: logger,
	}
}

// Start subscribes to store events on the bus.
func (s *Syncer) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	msgCh, msgUnsub := s.bus.Subscribe("message.", 256)
	chatCh, chatUnsub := s.bus.Subscribe("chat.", 64)

	go func() {
		defer msgUnsub()
		defer chatUnsub()
		for {
			select {
			case evt := <-msgCh:
				s.handleMessageEvent(evt)
			case evt := <-chatCh:
				s.handleChatEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the syncer.
func (s *Syncer) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Syncer) handleMessageEvent(evt bus.Event) {
	me, ok := evt.Payload.(bus.MessageEvent)
	if !ok || me.ChatID == "" {
		return
	}
	wanted := make(map[string]bool, len(me.MsgIDs))
	for _, id := range me.MsgIDs {
		wanted[id] = true
	}
	for _, m := range s.convos.Messages(me.ChatID) {
		if !wanted[m.ID] {
			continue
		}
		if err := s.db.UpsertMessage(me.ChatID, &m); err != nil {
			s.logger.Error("failed to cache message", zap.Error(err), zap.String("msg_id", m.ID))
		}
	}
}

func (s *Syncer) handleChatEvent(evt bus.Event) {
	ce, ok := evt.Payload.(bus.ChatEvent)
	if !ok || ce.ChatID == "" {
		return
	}

	if evt.Kind == bus.KindChatDeleted {
		if err := s.db.DeleteChat(ce.ChatID); err != nil {
			s.logger.Error("failed to evict cached chat", zap.Error(err), zap.String("chat_id", ce.ChatID))
		}
		return
	}

	for _, c := range s.chats.List() {
		if c.ID != ce.ChatID {
			continue
		}
		if err := s.db.UpsertChat(&c); err != nil {
			s.logger.Error("failed to cache chat", zap.Error(err), zap.String("chat_id", c.ID))
		}
		return
	}
}
