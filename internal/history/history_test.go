package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mcostalima/trill/internal/api"
	"github.com/mcostalima/trill/internal/bus"
	"github.com/mcostalima/trill/internal/store"
	"github.com/mcostalima/trill/internal/wire"
	"go.uber.org/zap"
)

type fakeMessages struct {
	mu      sync.Mutex
	calls   int
	cursors []string
	page    *api.MessagesPage
	err     error
	block   chan struct{}
}

func (f *fakeMessages) Messages(ctx context.Context, chatID, cursor string, limit int) (*api.MessagesPage, error) {
	f.mu.Lock()
	f.calls++
	f.cursors = append(f.cursors, cursor)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.page, nil
}

func (f *fakeMessages) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newLoader(f *fakeMessages, convos *store.Conversations) *Loader {
	l := NewLoader(f, convos, bus.New(), zap.NewNop(), 20)
	l.SetCooldown(10 * time.Millisecond)
	return l
}

func TestLoadOlderPrependsAndAdvancesCursor(t *testing.T) {
	f := &fakeMessages{page: &api.MessagesPage{
		Messages: []store.Message{
			{ID: "old-1", Content: wire.TextContent("a"), Timestamp: 1},
			{ID: "old-2", Content: wire.TextContent("b"), Timestamp: 2},
		},
		NextCursor: "tok-2",
	}}
	convos := store.NewConversations()
	convos.AppendMessages("c1", []store.Message{{ID: "recent", Timestamp: 10}})
	l := newLoader(f, convos)

	n, err := l.LoadOlder(context.Background(), "c1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("prepended count = %d, want 2", n)
	}
	if convos.Cursor("c1") != "tok-2" {
		t.Errorf("cursor = %q, want tok-2", convos.Cursor("c1"))
	}
	if !convos.HasMore("c1") {
		t.Error("hasMore should stay true while a cursor remains")
	}
	msgs := convos.Messages("c1")
	if msgs[0].ID != "old-1" || msgs[len(msgs)-1].ID != "recent" {
		t.Errorf("unexpected order: %+v", msgs)
	}
}

func TestLoadOlderEmptyCursorExhaustsHistory(t *testing.T) {
	f := &fakeMessages{page: &api.MessagesPage{
		Messages:   []store.Message{{ID: "first", Timestamp: 1}},
		NextCursor: "",
	}}
	convos := store.NewConversations()
	l := newLoader(f, convos)

	if _, err := l.LoadOlder(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}
	if convos.HasMore("c1") {
		t.Error("empty next_cursor must clear hasMore")
	}

	// Once exhausted, further loads are skipped entirely.
	time.Sleep(30 * time.Millisecond)
	n, err := l.LoadOlder(context.Background(), "c1")
	if err != nil || n != 0 {
		t.Errorf("expected skip, got n=%d err=%v", n, err)
	}
	if f.callCount() != 1 {
		t.Errorf("fetch count = %d, want 1", f.callCount())
	}
}

func TestLoadOlderSkipsDraftChats(t *testing.T) {
	f := &fakeMessages{}
	l := newLoader(f, store.NewConversations())

	for _, id := range []string{"", DraftChatID} {
		if n, err := l.LoadOlder(context.Background(), id); n != 0 || err != nil {
			t.Errorf("chat %q: expected skip, got n=%d err=%v", id, n, err)
		}
	}
	if f.callCount() != 0 {
		t.Errorf("draft chats must not hit the API, got %d calls", f.callCount())
	}
}

func TestLoadOlderSingleFlight(t *testing.T) {
	block := make(chan struct{})
	f := &fakeMessages{
		page:  &api.MessagesPage{NextCursor: "tok"},
		block: block,
	}
	l := newLoader(f, store.NewConversations())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = l.LoadOlder(context.Background(), "c1")
	}()

	// Wait until the first fetch is parked inside the fake.
	for f.callCount() == 0 {
		time.Sleep(time.Millisecond)
	}

	// A second load while one is in flight must be a no-op.
	if n, err := l.LoadOlder(context.Background(), "c1"); n != 0 || err != nil {
		t.Errorf("expected skip during in-flight fetch, got n=%d err=%v", n, err)
	}
	if f.callCount() != 1 {
		t.Fatalf("fetch count = %d, want 1", f.callCount())
	}

	close(block)
	<-done

	// The cooldown keeps the chat blocked briefly after the fetch resolves.
	if n, _ := l.LoadOlder(context.Background(), "c1"); n != 0 {
		t.Error("expected skip during cooldown")
	}

	time.Sleep(50 * time.Millisecond)
	if _, err := l.LoadOlder(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}
	if f.callCount() != 2 {
		t.Errorf("fetch count after cooldown = %d, want 2", f.callCount())
	}
}

func TestLoadOlderErrorKeepsPaginationState(t *testing.T) {
	f := &fakeMessages{err: errors.New("backend down")}
	convos := store.NewConversations()
	convos.SetCursor("c1", "tok-1")
	l := newLoader(f, convos)

	if _, err := l.LoadOlder(context.Background(), "c1"); err == nil {
		t.Fatal("expected error")
	}
	if convos.Cursor("c1") != "tok-1" {
		t.Error("cursor must survive a failed fetch")
	}
	if !convos.HasMore("c1") {
		t.Error("hasMore must survive a failed fetch")
	}

	// After the cooldown the same page is retried with the same cursor.
	time.Sleep(30 * time.Millisecond)
	f.err = nil
	f.page = &api.MessagesPage{NextCursor: ""}
	if _, err := l.LoadOlder(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}
	if f.cursors[1] != "tok-1" {
		t.Errorf("retry cursor = %q, want tok-1", f.cursors[1])
	}
}

type fakeChats struct {
	page    *api.ChatsPage
	err     error
	deleted []string
}

func (f *fakeChats) Chats(ctx context.Context, cursor string, limit int) (*api.ChatsPage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.page, nil
}

func (f *fakeChats) DeleteChat(ctx context.Context, chatID string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, chatID)
	return nil
}

func TestChatLoaderPrependsOlderChats(t *testing.T) {
	f := &fakeChats{page: &api.ChatsPage{
		Chats:      []store.Chat{{ID: "old", Title: "Old chat", Timestamp: 1}},
		NextCursor: "",
	}}
	chats := store.NewChatList()
	chats.Add(store.Chat{ID: "new", Timestamp: 5})
	l := NewChatLoader(f, chats, store.NewConversations(), bus.New(), zap.NewNop(), 30)

	n, err := l.LoadOlder(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("added count = %d, want 1", n)
	}
	got := chats.List()
	if got[0].ID != "old" || got[1].ID != "new" {
		t.Errorf("unexpected order: %+v", got)
	}
	if chats.HasMore() {
		t.Error("empty next_cursor must clear hasMore")
	}

	// Exhausted pagination skips further loads.
	if n, _ := l.LoadOlder(context.Background()); n != 0 {
		t.Error("expected skip once exhausted")
	}
}

func TestChatLoaderDeleteDropsLocalState(t *testing.T) {
	f := &fakeChats{}
	chats := store.NewChatList()
	chats.Add(store.Chat{ID: "c1"})
	convos := store.NewConversations()
	convos.AppendMessages("c1", []store.Message{{ID: "m1"}})

	b := bus.New()
	ch, unsub := b.Subscribe("chat.", 8)
	defer unsub()

	l := NewChatLoader(f, chats, convos, b, zap.NewNop(), 30)
	if err := l.Delete(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}

	if len(chats.List()) != 0 {
		t.Error("chat should be removed from the sidebar")
	}
	if convos.Len("c1") != 0 {
		t.Error("conversation should be dropped")
	}
	select {
	case evt := <-ch:
		if evt.Kind != bus.KindChatDeleted {
			t.Errorf("kind = %q", evt.Kind)
		}
	default:
		t.Error("expected chat.deleted event")
	}
}

func TestChatLoaderDeleteErrorKeepsChat(t *testing.T) {
	f := &fakeChats{err: errors.New("backend down")}
	chats := store.NewChatList()
	chats.Add(store.Chat{ID: "c1"})
	l := NewChatLoader(f, chats, store.NewConversations(), bus.New(), zap.NewNop(), 30)

	if err := l.Delete(context.Background(), "c1"); err == nil {
		t.Fatal("expected error")
	}
	if len(chats.List()) != 1 {
		t.Error("failed delete must keep the chat locally")
	}
}
