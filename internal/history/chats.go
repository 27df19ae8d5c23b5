package history

import (
	"context"
	"time"

	"github.com/mcostalima/trill/internal/api"
	"github.com/mcostalima/trill/internal/bus"
	"github.com/mcostalima/trill/internal/store"
	"go.uber.org/zap"
)

// chatsClient is the slice of the REST client the chat loader needs.
type chatsClient interface {
	Chats(ctx context.Context, cursor string, limit int) (*api.ChatsPage, error)
	DeleteChat(ctx context.Context, chatID string) error
}

// ChatLoader pages the sidebar chat list and handles chat deletion.
type ChatLoader struct {
	api    chatsClient
	chats  *store.ChatList
	convos *store.Conversations
	bus    *bus.Bus
	logger *zap.Logger
	limit  int
}

// NewChatLoader creates a sidebar chat loader.
func NewChatLoader(client chatsClient, chats *store.ChatList, convos *store.Conversations, b *bus.Bus, logger *zap.Logger, limit int) *ChatLoader {
	return &ChatLoader{
		api:    client,
		chats:  chats,
		convos: convos,
		bus:    b,
		logger: logger,
		limit:  limit,
	}
}

// LoadOlder fetches the next page of older chats and prepends it to the
// sidebar. It returns the number of chats added; zero with a nil error means
// the load was skipped.
func (l *ChatLoader) LoadOlder(ctx context.Context) (int, error) {
	if !l.chats.BeginFetch() {
		return 0, nil
	}
	defer l.chats.EndFetch()

	page, err := l.api.Chats(ctx, l.chats.Cursor(), l.limit)
	if err != nil {
		l.logger.Error("failed to load chat list", zap.Error(err))
		return 0, err
	}

	l.chats.Prepend(page.Chats)
	l.chats.SetCursor(page.NextCursor)
	l.chats.SetHasMore(page.NextCursor != "")

	for _, c := range page.Chats {
		l.bus.Publish(bus.Event{
			Kind:      bus.KindChatUpdated,
			Timestamp: time.Now(),
			Payload:   bus.ChatEvent{ChatID: c.ID},
		})
	}
	return len(page.Chats), nil
}

// Delete removes a chat on the backend and, on success, drops it locally.
func (l *ChatLoader) Delete(ctx context.Context, chatID string) error {
	if err := l.api.DeleteChat(ctx, chatID); err != nil {
		l.logger.Error("failed to delete chat", zap.Error(err), zap.String("chat_id", chatID))
		return err
	}

	l.chats.Remove(chatID)
	l.convos.Drop(chatID)
	l.bus.Publish(bus.Event{
		Kind:      bus.KindChatDeleted,
		Timestamp: time.Now(),
		Payload:   bus.ChatEvent{ChatID: chatID},
	})
	return nil
}
