// Package history pages older messages and chats into the in-memory stores.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/mcostalima/trill/internal/api"
	"github.com/mcostalima/trill/internal/bus"
	"github.com/mcostalima/trill/internal/store"
	"go.uber.org/zap"
)

// DraftChatID is the placeholder id of a chat that has not been created on
// the backend yet. Drafts have no history to page.
const DraftChatID = "new"

// messagesFetcher is the slice of the REST client the loader needs.
type messagesFetcher interface {
	Messages(ctx context.Context, chatID, cursor string, limit int) (*api.MessagesPage, error)
}

// Loader pages older messages into a conversation. At most one fetch per chat
// is in flight, and a finished fetch keeps the chat on cooldown briefly so a
// scroll position hovering at the top does not fire a burst of requests.
type Loader struct {
	api      messagesFetcher
	convos   *store.Conversations
	bus      *bus.Bus
	logger   *zap.Logger
	limit    int
	cooldown time.Duration

	mu       sync.Mutex
	inflight map[string]bool
}

// NewLoader creates a message history loader.
func NewLoader(client messagesFetcher, convos *store.Conversations, b *bus.Bus, logger *zap.Logger, limit int) *Loader {
	return &Loader{
		api:      client,
		convos:   convos,
		bus:      b,
		logger:   logger,
		limit:    limit,
		cooldown: time.Second,
		inflight: make(map[string]bool),
	}
}

// LoadOlder fetches the next page of older messages for a chat and prepends
// it to the conversation. It returns the number of messages prepended, so the
// caller can preserve the scroll offset. A zero count with a nil error means
// the load was skipped (draft chat, fetch already running, or history
// exhausted).
func (l *Loader) LoadOlder(ctx context.Context, chatID string) (int, error) {
	if chatID == "" || chatID == DraftChatID {
		return 0, nil
	}
	if !l.convos.HasMore(chatID) && l.convos.Len(chatID) > 0 {
		return 0, nil
	}

	l.mu.Lock()
	if l.inflight[chatID] {
		l.mu.Unlock()
		return 0, nil
	}
	l.inflight[chatID] = true
	l.mu.Unlock()

	release := func() {
		time.AfterFunc(l.cooldown, func() {
			l.mu.Lock()
			delete(l.inflight, chatID)
			l.mu.Unlock()
		})
	}

	page, err := l.api.Messages(ctx, chatID, l.convos.Cursor(chatID), l.limit)
	if err != nil {
		release()
		l.logger.Error("failed to load chat history", zap.Error(err), zap.String("chat_id", chatID))
		// Cursor and hasMore stay untouched so a later attempt retries the
		// same page.
		return 0, err
	}

	l.convos.PrependMessages(chatID, page.Messages)
	l.convos.SetCursor(chatID, page.NextCursor)
	l.convos.SetHasMore(chatID, page.NextCursor != "")
	release()

	if len(page.Messages) > 0 {
		ids := make([]string, 0, len(page.Messages))
		for _, m := range page.Messages {
			ids = append(ids, m.ID)
		}
		l.bus.Publish(bus.Event{
			Kind:      bus.KindMessagePrepended,
			Timestamp: time.Now(),
			Payload:   bus.MessageEvent{ChatID: chatID, MsgIDs: ids},
		})
	}
	return len(page.Messages), nil
}

// SetCooldown overrides the post-fetch cooldown window.
func (l *Loader) SetCooldown(d time.Duration) {
	l.cooldown = d
}
