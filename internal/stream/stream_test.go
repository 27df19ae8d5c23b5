package stream

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mcostalima/trill/internal/bus"
	"github.com/mcostalima/trill/internal/status"
	"github.com/mcostalima/trill/internal/store"
	"github.com/mcostalima/trill/internal/wire"
	"go.uber.org/zap"
)

type fakeConn struct {
	frames chan []byte

	mu     sync.Mutex
	writes []wire.Command
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 32)}
}

func (f *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case data, ok := <-f.frames:
		if !ok {
			return nil, errors.New("connection closed")
		}
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeConn) Write(ctx context.Context, data []byte) error {
	var cmd wire.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("write on closed connection")
	}
	f.writes = append(f.writes, cmd)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.frames)
	}
	return nil
}

func (f *fakeConn) deliver(t *testing.T, evt wire.Event) {
	t.Helper()
	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatal(err)
	}
	f.frames <- data
}

func (f *fakeConn) sentTypes() []wire.CommandType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]wire.CommandType, 0, len(f.writes))
	for _, c := range f.writes {
		out = append(out, c.Type)
	}
	return out
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	fails int
	dials int
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.fails > 0 {
		d.fails--
		return nil, errors.New("dial refused")
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

type harness struct {
	ctrl   *Controller
	dialer *fakeDialer
	convos *store.Conversations
	chats  *store.ChatList
	mach   *status.Machine
	bus    *bus.Bus

	mu     sync.Mutex
	delays []time.Duration
}

func newHarness() *harness {
	h := &harness{
		dialer: &fakeDialer{},
		convos: store.NewConversations(),
		chats:  store.NewChatList(),
		bus:    bus.New(),
	}
	h.mach = status.NewMachine(h.bus)
	h.ctrl = NewController(h.dialer, "ws://test/stream", h.convos, h.chats, h.mach, h.bus, zap.NewNop())
	// Run reconnects synchronously and record the requested delays.
	h.ctrl.SetSchedule(func(d time.Duration, fn func()) {
		h.mu.Lock()
		h.delays = append(h.delays, d)
		giveUp := len(h.delays) > 10
		h.mu.Unlock()
		if !giveUp {
			fn()
		}
	})
	h.ctrl.SetPingInterval(time.Hour)
	return h
}

func (h *harness) recordedDelays() []time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]time.Duration(nil), h.delays...)
}

// waitFor polls until cond is true or the deadline passes.
func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func TestBackoffDelays(t *testing.T) {
	b := Backoff{Base: time.Second, Cap: 30 * time.Second}
	want := []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second, 30 * time.Second,
	}
	for i, w := range want {
		if got := b.Delay(i); got != w {
			t.Errorf("Delay(%d) = %v, want %v", i, got, w)
		}
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	h := newHarness()
	h.ctrl.Connect(context.Background())
	h.ctrl.Connect(context.Background())
	defer h.ctrl.Close()

	if h.dialer.dials != 1 {
		t.Errorf("dials = %d, want 1", h.dialer.dials)
	}
	if h.mach.Current() != status.Open {
		t.Errorf("state = %s, want OPEN", h.mach.Current())
	}
}

func TestConnectSendsResumeForActiveChat(t *testing.T) {
	h := newHarness()
	h.convos.SetConversationID("c1")
	h.ctrl.Connect(context.Background())
	defer h.ctrl.Close()

	conn := h.dialer.last()
	waitFor(t, "resume command", func() bool {
		for _, c := range conn.sentTypes() {
			if c == wire.CmdResume {
				return true
			}
		}
		return false
	})
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.writes[0].ChatID != "c1" {
		t.Errorf("resume chat_id = %q, want c1", conn.writes[0].ChatID)
	}
}

func TestReconnectBackoffGrowsAndResetsOnOpen(t *testing.T) {
	h := newHarness()
	h.dialer.fails = 3
	h.ctrl.Connect(context.Background())
	defer h.ctrl.Close()

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	got := h.recordedDelays()
	if len(got) != len(want) {
		t.Fatalf("delays = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delay %d = %v, want %v", i, got[i], want[i])
		}
	}
	if h.mach.Current() != status.Open {
		t.Fatalf("state = %s, want OPEN after retries", h.mach.Current())
	}

	// A drop after a successful open restarts the ladder at the base delay.
	h.dialer.last().Close()
	waitFor(t, "reconnect after drop", func() bool {
		return len(h.recordedDelays()) == 4 && h.mach.Current() == status.Open
	})
	if got := h.recordedDelays()[3]; got != time.Second {
		t.Errorf("post-open delay = %v, want 1s (attempt counter reset)", got)
	}
}

func TestCreateChatRegistersAndNavigates(t *testing.T) {
	h := newHarness()
	var (
		navMu     sync.Mutex
		navigated string
	)
	h.ctrl.SetNavigate(func(chatID string) {
		navMu.Lock()
		navigated = chatID
		navMu.Unlock()
	})
	h.convos.SetConversationID("new")
	h.ctrl.Connect(context.Background())
	defer h.ctrl.Close()

	if !h.ctrl.SendMessage("Hello", nil) {
		t.Fatal("send should succeed while open")
	}
	conn := h.dialer.last()
	conn.mu.Lock()
	sent := conn.writes[len(conn.writes)-1]
	conn.mu.Unlock()
	if sent.ChatID != "" {
		t.Errorf("draft message must omit chat_id, got %q", sent.ChatID)
	}

	conn.deliver(t, wire.Event{
		Type:      wire.EventCreateChat,
		ID:        "c9",
		Content:   wire.TextContent("Hello"),
		Timestamp: 100,
	})

	waitFor(t, "sidebar entry", func() bool { return len(h.chats.List()) == 1 })
	chat := h.chats.List()[0]
	if chat.ID != "c9" || chat.URL != "/chat/c9" || chat.Title != "Hello" {
		t.Errorf("unexpected chat: %+v", chat)
	}
	navMu.Lock()
	if navigated != "c9" {
		t.Errorf("navigate target = %q, want c9", navigated)
	}
	navMu.Unlock()
	if h.convos.ConversationID() != "c9" {
		t.Errorf("active chat = %q, want c9", h.convos.ConversationID())
	}
	if h.convos.HasMore("c9") {
		t.Error("fresh chat must start with pagination exhausted")
	}
	if h.convos.Cursor("c9") != "" {
		t.Error("fresh chat must start with an empty cursor")
	}
}

func TestCreateChatIdentityInChatIDField(t *testing.T) {
	h := newHarness()
	var (
		navMu     sync.Mutex
		navigated string
	)
	h.ctrl.SetNavigate(func(chatID string) {
		navMu.Lock()
		navigated = chatID
		navMu.Unlock()
	})
	h.convos.SetConversationID("new")
	h.ctrl.Connect(context.Background())
	defer h.ctrl.Close()

	// The backend carries the new chat's identity in chat_id, not id.
	h.dialer.last().deliver(t, wire.Event{
		Type:      wire.EventCreateChat,
		ChatID:    "c9",
		Content:   wire.TextContent("Hello"),
		Timestamp: 100,
	})

	waitFor(t, "sidebar entry", func() bool { return len(h.chats.List()) == 1 })
	chat := h.chats.List()[0]
	if chat.ID != "c9" || chat.URL != "/chat/c9" {
		t.Errorf("unexpected chat: %+v", chat)
	}
	navMu.Lock()
	if navigated != "c9" {
		t.Errorf("navigate target = %q, want c9", navigated)
	}
	navMu.Unlock()
	if h.convos.ConversationID() != "c9" {
		t.Errorf("active chat = %q, want c9", h.convos.ConversationID())
	}
}

func TestMessagingDeltaSequence(t *testing.T) {
	h := newHarness()
	h.convos.SetConversationID("c1")
	h.ctrl.Connect(context.Background())
	defer h.ctrl.Close()

	if !h.ctrl.SendMessage("question", nil) {
		t.Fatal("send should succeed while open")
	}
	if f := h.ctrl.Flags(); !f.Streaming || !f.Loading {
		t.Fatalf("flags after send = %+v", f)
	}

	conn := h.dialer.last()
	conn.deliver(t, wire.Event{Type: wire.EventStartMessaging, ID: "m1", Role: wire.RoleAssistant, ChatID: "c1", Timestamp: 1})
	conn.deliver(t, wire.Event{Type: wire.EventMessaging, ID: "m1", ChatID: "c1", Content: wire.TextContent("Hi"), Timestamp: 2})
	conn.deliver(t, wire.Event{Type: wire.EventMessaging, ID: "m1", ChatID: "c1", Content: wire.TextContent("Hi there"), Timestamp: 3})
	conn.deliver(t, wire.Event{Type: wire.EventEndMessaging, ID: "m1", ChatID: "c1", Timestamp: 3, Content: wire.TextContent("Hi there")})
	conn.deliver(t, wire.Event{Type: wire.EventComplete})

	waitFor(t, "streaming flag cleared", func() bool {
		f := h.ctrl.Flags()
		return !f.Streaming && !f.Loading
	})

	msgs := h.convos.Messages("c1")
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one message, got %d", len(msgs))
	}
	m := msgs[0]
	if m.ID != "m1" || m.Content.Text != "Hi there" || m.IsProcessing {
		t.Errorf("unexpected final message: %+v", m)
	}
}

func TestTrailingEventsAfterStopAreApplied(t *testing.T) {
	h := newHarness()
	h.convos.SetConversationID("c1")
	h.ctrl.Connect(context.Background())
	defer h.ctrl.Close()

	h.ctrl.SendMessage("question", nil)
	conn := h.dialer.last()
	conn.deliver(t, wire.Event{Type: wire.EventStartMessaging, ID: "m1", Role: wire.RoleAssistant, ChatID: "c1", Timestamp: 1})
	waitFor(t, "message appended", func() bool { return h.convos.Len("c1") == 1 })

	h.ctrl.StopStreaming()
	if f := h.ctrl.Flags(); f.Streaming || f.Loading {
		t.Fatalf("stop must clear flags immediately, got %+v", f)
	}

	// The server may still flush buffered output after the stop.
	conn.deliver(t, wire.Event{Type: wire.EventMessaging, ID: "m1", ChatID: "c1", Content: wire.TextContent("partial answer"), Timestamp: 2})
	conn.deliver(t, wire.Event{Type: wire.EventEndMessaging, ID: "m1", ChatID: "c1", Timestamp: 2, Content: wire.TextContent("partial answer")})
	conn.deliver(t, wire.Event{Type: wire.EventComplete})

	waitFor(t, "trailing content applied", func() bool {
		msgs := h.convos.Messages("c1")
		return len(msgs) == 1 && msgs[0].Content.Text == "partial answer" && !msgs[0].IsProcessing
	})
	if f := h.ctrl.Flags(); f.Streaming {
		t.Errorf("flags after trailing complete = %+v", f)
	}
}

func TestSendMessageDroppedWhileDisconnected(t *testing.T) {
	h := newHarness()
	if h.ctrl.SendMessage("hello", nil) {
		t.Error("send before connect must be dropped")
	}
	if f := h.ctrl.Flags(); f.Streaming || f.Loading {
		t.Errorf("dropped send must not flip flags, got %+v", f)
	}
}

func TestConfirmationFlow(t *testing.T) {
	h := newHarness()
	h.convos.SetConversationID("c1")
	h.ctrl.Connect(context.Background())
	defer h.ctrl.Close()

	conn := h.dialer.last()
	conn.deliver(t, wire.Event{
		Type:   wire.EventConfirmation,
		ID:     "m5",
		Role:   wire.RoleConfirmation,
		ChatID: "c1",
		Content: wire.Content{Confirmation: &wire.Confirmation{
			Name: "confirm-email-send",
			Args: wire.MailArgs{To: wire.StringList{"a@b.c"}, Subject: "s", Body: "b"},
		}},
		Timestamp: 5,
	})

	waitFor(t, "awaiting confirmation", func() bool {
		f := h.ctrl.Flags()
		return f.AwaitingConfirmation && !f.Streaming
	})

	if !h.ctrl.SendConfirmation("m5", wire.Decision{Approve: wire.ApproveAccept}) {
		t.Fatal("confirmation reply should go out while open")
	}
	conn.mu.Lock()
	reply := conn.writes[len(conn.writes)-1]
	conn.mu.Unlock()
	if reply.MsgID != "m5" || reply.ChatID != "c1" {
		t.Errorf("reply envelope = %+v", reply)
	}
	if f := h.ctrl.Flags(); f.AwaitingConfirmation {
		t.Error("sending a decision must clear the awaiting flag")
	}

	approved := true
	conn.deliver(t, wire.Event{
		Type:   wire.EventEndConfirmation,
		ID:     "m5",
		ChatID: "c1",
		Content: wire.Content{Confirmation: &wire.Confirmation{
			Name:    "confirm-email-send",
			Args:    wire.MailArgs{To: wire.StringList{"a@b.c"}, Subject: "s", Body: "b"},
			Approve: &approved,
		}},
		Timestamp: 6,
	})
	waitFor(t, "confirmation patched", func() bool {
		msgs := h.convos.Messages("c1")
		return len(msgs) == 1 && msgs[0].Content.Confirmation != nil &&
			msgs[0].Content.Confirmation.Approve != nil
	})
}

func TestSendConfirmationRequiresChat(t *testing.T) {
	h := newHarness()
	h.ctrl.Connect(context.Background())
	defer h.ctrl.Close()

	if h.ctrl.SendConfirmation("m1", wire.Decision{Approve: wire.ApproveDeny}) {
		t.Error("confirmation without a selected chat must be dropped")
	}
}

func TestPingKeepalive(t *testing.T) {
	h := newHarness()
	h.ctrl.SetPingInterval(5 * time.Millisecond)
	h.ctrl.Connect(context.Background())
	defer h.ctrl.Close()

	conn := h.dialer.last()
	waitFor(t, "ping command", func() bool {
		for _, c := range conn.sentTypes() {
			if c == wire.CmdPing {
				return true
			}
		}
		return false
	})

	// Pong is accepted silently.
	conn.deliver(t, wire.Event{Type: wire.EventPong})
	time.Sleep(10 * time.Millisecond)
	if h.mach.Current() != status.Open {
		t.Errorf("state after pong = %s, want OPEN", h.mach.Current())
	}
}

func TestTitleEventsPatchSidebar(t *testing.T) {
	h := newHarness()
	h.chats.Add(store.Chat{ID: "c1", Title: "New chat", Timestamp: 1})
	h.convos.SetConversationID("c1")
	h.ctrl.Connect(context.Background())
	defer h.ctrl.Close()

	conn := h.dialer.last()
	conn.deliver(t, wire.Event{Type: wire.EventCheckingTitle, ID: "c1"})
	waitFor(t, "title processing", func() bool { return h.chats.List()[0].IsProcessing })

	conn.deliver(t, wire.Event{Type: wire.EventGeneratedTitle, ID: "c1", Content: wire.TextContent("Trip planning"), Timestamp: 9})
	waitFor(t, "title patched", func() bool {
		c := h.chats.List()[0]
		return c.Title == "Trip planning" && !c.IsProcessing && c.Timestamp == 9
	})
}

func TestTitleEventsAddressChatByChatID(t *testing.T) {
	h := newHarness()
	h.chats.Add(store.Chat{ID: "c1", Title: "New chat", Timestamp: 1})
	h.convos.SetConversationID("c1")
	h.ctrl.Connect(context.Background())
	defer h.ctrl.Close()

	conn := h.dialer.last()
	conn.deliver(t, wire.Event{Type: wire.EventCheckingTitle, ChatID: "c1"})
	waitFor(t, "title processing", func() bool { return h.chats.List()[0].IsProcessing })

	conn.deliver(t, wire.Event{Type: wire.EventGeneratedTitle, ChatID: "c1", Content: wire.TextContent("Trip planning"), Timestamp: 9})
	waitFor(t, "title patched", func() bool {
		c := h.chats.List()[0]
		return c.Title == "Trip planning" && !c.IsProcessing
	})

	conn.deliver(t, wire.Event{Type: wire.EventUpdateChat, ChatID: "c1", Timestamp: 12})
	waitFor(t, "timestamp bumped", func() bool { return h.chats.List()[0].Timestamp == 12 })
}

func TestEndMessagingContent(t *testing.T) {
	h := newHarness()
	h.convos.SetConversationID("c1")
	h.ctrl.Connect(context.Background())
	defer h.ctrl.Close()

	conn := h.dialer.last()
	conn.deliver(t, wire.Event{Type: wire.EventStartMessaging, ID: "m1", Role: wire.RoleAssistant, ChatID: "c1", Timestamp: 1})
	conn.deliver(t, wire.Event{Type: wire.EventMessaging, ID: "m1", ChatID: "c1", Content: wire.TextContent("partial"), Timestamp: 2})

	// A bare end frame must not clobber the accumulated text.
	conn.deliver(t, wire.Event{Type: wire.EventEndMessaging, ID: "m1", ChatID: "c1", Timestamp: 3})
	waitFor(t, "processing cleared", func() bool {
		msgs := h.convos.Messages("c1")
		return len(msgs) == 1 && !msgs[0].IsProcessing && msgs[0].Content.Text == "partial"
	})

	// When the end frame does carry text, that is the final answer.
	conn.deliver(t, wire.Event{Type: wire.EventStartMessaging, ID: "m2", Role: wire.RoleAssistant, ChatID: "c1", Timestamp: 4})
	conn.deliver(t, wire.Event{Type: wire.EventEndMessaging, ID: "m2", ChatID: "c1", Content: wire.TextContent("full answer"), Timestamp: 5})
	waitFor(t, "final text applied", func() bool {
		msgs := h.convos.Messages("c1")
		return len(msgs) == 2 && msgs[1].Content.Text == "full answer" && !msgs[1].IsProcessing
	})
}

func TestErrorEventAppendsAndClearsFlags(t *testing.T) {
	h := newHarness()
	h.convos.SetConversationID("c1")
	h.ctrl.Connect(context.Background())
	defer h.ctrl.Close()

	h.ctrl.SendMessage("question", nil)
	conn := h.dialer.last()
	conn.deliver(t, wire.Event{Type: wire.EventError, ID: "e1", Role: wire.RoleError, ChatID: "c1", Content: wire.TextContent("backend exploded"), Timestamp: 4})

	waitFor(t, "error applied", func() bool {
		f := h.ctrl.Flags()
		return !f.Streaming && !f.Loading && h.convos.Len("c1") == 1
	})
	if m := h.convos.Messages("c1")[0]; m.Role != wire.RoleError {
		t.Errorf("role = %q, want error", m.Role)
	}
}

func TestCloseIsTerminal(t *testing.T) {
	h := newHarness()
	h.ctrl.Connect(context.Background())
	h.ctrl.Close()

	if h.mach.Current() != status.Closed {
		t.Fatalf("state = %s, want CLOSED", h.mach.Current())
	}
	h.ctrl.Connect(context.Background())
	if h.dialer.dials != 1 {
		t.Errorf("dials after close = %d, want 1", h.dialer.dials)
	}
}
