// Package stream owns the WebSocket session with the backend: connect,
// reconnect with backoff, keepalive, and the dispatch of inbound events into
// the in-memory stores.
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/mcostalima/trill/internal/bus"
	"github.com/mcostalima/trill/internal/history"
	"github.com/mcostalima/trill/internal/status"
	"github.com/mcostalima/trill/internal/store"
	"github.com/mcostalima/trill/internal/wire"
	"go.uber.org/zap"
)

// Controller owns exactly one stream connection. All sends are at-most-once:
// a send while the connection is down is dropped, never queued.
type Controller struct {
	dialer  Dialer
	url     string
	convos  *store.Conversations
	chats   *store.ChatList
	machine *status.Machine
	bus     *bus.Bus
	logger  *zap.Logger

	backoff   Backoff
	pingEvery time.Duration
	// schedule defers a func; tests swap it for a synchronous variant.
	schedule func(time.Duration, func())
	// navigate is called when the server creates a chat for a draft message.
	navigate func(chatID string)

	mu       sync.Mutex
	conn     Conn
	dialing  bool
	closed   bool
	attempts int
	flags    bus.Flags
	stopRead context.CancelFunc
}

// NewController creates a stream controller. navigate may be nil.
func NewController(dialer Dialer, url string, convos *store.Conversations, chats *store.ChatList, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *Controller {
	return &Controller{
		dialer:    dialer,
		url:       url,
		convos:    convos,
		chats:     chats,
		machine:   machine,
		bus:       b,
		logger:    logger,
		backoff:   DefaultBackoff,
		pingEvery: 30 * time.Second,
		schedule: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}
}

// SetNavigate installs the callback invoked when the server assigns a chat id
// to a draft conversation.
func (c *Controller) SetNavigate(fn func(chatID string)) {
	c.navigate = fn
}

// SetBackoff overrides the reconnect policy.
func (c *Controller) SetBackoff(b Backoff) {
	c.backoff = b
}

// SetSchedule overrides the deferred-call hook.
func (c *Controller) SetSchedule(fn func(time.Duration, func())) {
	c.schedule = fn
}

// SetPingInterval overrides the keepalive interval.
func (c *Controller) SetPingInterval(d time.Duration) {
	c.pingEvery = d
}

// Connect dials the stream. Idempotent: a call while a connection is open or
// a dial is in progress is a no-op.
func (c *Controller) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.closed || c.conn != nil || c.dialing {
		c.mu.Unlock()
		return
	}
	c.dialing = true
	c.mu.Unlock()

	if err := c.machine.Transition(status.Connecting); err != nil {
		c.logger.Warn("connect skipped", zap.Error(err))
		c.mu.Lock()
		c.dialing = false
		c.mu.Unlock()
		return
	}

	conn, err := c.dialer.Dial(ctx, c.url)
	if err != nil {
		c.logger.Warn("stream dial failed", zap.Error(err))
		c.mu.Lock()
		c.dialing = false
		c.mu.Unlock()
		_ = c.machine.Transition(status.Reconnecting)
		c.scheduleReconnect()
		return
	}

	readCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.conn = conn
	c.dialing = false
	c.attempts = 0
	c.stopRead = cancel
	c.mu.Unlock()

	if err := c.machine.Transition(status.Open); err != nil {
		c.logger.Warn("stream opened in unexpected state", zap.Error(err))
	}
	c.logger.Info("stream connected", zap.String("url", c.url))

	// Replay any in-flight server state for the chat we were looking at.
	if active := c.convos.ConversationID(); active != "" && active != history.DraftChatID {
		c.send(wire.Resume(active))
	}

	go c.readLoop(readCtx, conn)
	go c.pingLoop(readCtx)
}

func (c *Controller) readLoop(ctx context.Context, conn Conn) {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			c.handleDisconnect(conn, err)
			return
		}
		evt, err := wire.DecodeEvent(data)
		if err != nil {
			c.logger.Warn("dropping malformed event", zap.Error(err))
			continue
		}
		c.handleEvent(evt)
	}
}

func (c *Controller) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.pingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.send(wire.Ping())
		case <-ctx.Done():
			return
		}
	}
}

func (c *Controller) handleDisconnect(conn Conn, err error) {
	c.mu.Lock()
	if c.closed || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	if c.stopRead != nil {
		c.stopRead()
		c.stopRead = nil
	}
	c.mu.Unlock()
	_ = conn.Close()

	c.logger.Warn("stream disconnected", zap.Error(err))
	_ = c.machine.Transition(status.Reconnecting)
	c.scheduleReconnect()
}

func (c *Controller) scheduleReconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	delay := c.backoff.Delay(c.attempts)
	c.attempts++
	c.mu.Unlock()

	c.logger.Info("scheduling reconnect", zap.Duration("delay", delay))
	c.schedule(delay, func() {
		c.Connect(context.Background())
	})
}

// send writes a command if the connection is up. Returns false when the
// command was dropped.
func (c *Controller) send(cmd wire.Command) bool {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return false
	}
	data, err := cmd.Encode()
	if err != nil {
		c.logger.Error("failed to encode command", zap.Error(err))
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.Write(ctx, data); err != nil {
		c.logger.Warn("failed to send command", zap.Error(err), zap.String("type", string(cmd.Type)))
		return false
	}
	return true
}

// SendMessage sends a user message over the stream. No-op when the
// connection is down: messages are never queued. chatID is omitted for draft
// chats so the server creates one. Returns whether the message went out.
func (c *Controller) SendMessage(text string, files []wire.FileRef) bool {
	chatID := c.convos.ConversationID()
	if chatID == history.DraftChatID {
		chatID = ""
	}
	if !c.send(wire.UserMessage(text, chatID, files)) {
		return false
	}
	c.setFlags(func(f *bus.Flags) {
		f.Streaming = true
		f.Loading = true
	})
	return true
}

// SendConfirmation sends a decision for a pending confirmation message.
// Requires an open connection and a selected chat.
func (c *Controller) SendConfirmation(msgID string, d wire.Decision) bool {
	chatID := c.convos.ConversationID()
	if chatID == "" || chatID == history.DraftChatID {
		return false
	}
	if !c.send(wire.ConfirmationReply(chatID, msgID, d)) {
		return false
	}
	c.setFlags(func(f *bus.Flags) {
		f.Streaming = true
		f.Loading = true
		f.AwaitingConfirmation = false
	})
	return true
}

// StopStreaming asks the server to halt generation and clears the local
// streaming state immediately, without waiting for acknowledgement. Trailing
// events that still arrive are applied normally.
func (c *Controller) StopStreaming() {
	c.send(wire.Stop())
	c.setFlags(func(f *bus.Flags) {
		f.Streaming = false
		f.Loading = false
	})
}

// Flags returns the current session flags.
func (c *Controller) Flags() bus.Flags {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flags
}

// Close shuts the stream down permanently.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	if c.stopRead != nil {
		c.stopRead()
		c.stopRead = nil
	}
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	_ = c.machine.Transition(status.Closed)
}

func (c *Controller) setFlags(mutate func(*bus.Flags)) {
	c.mu.Lock()
	before := c.flags
	mutate(&c.flags)
	after := c.flags
	c.mu.Unlock()
	if before == after {
		return
	}
	c.bus.Publish(bus.Event{
		Kind:      bus.KindSessionFlags,
		Timestamp: time.Now(),
		Payload:   after,
	})
}

// eventChatID resolves which conversation a message-bearing event belongs
// to. Events without an explicit chat id target the active conversation.
func (c *Controller) eventChatID(evt *wire.Event) string {
	if evt.ChatID != "" {
		return evt.ChatID
	}
	return c.convos.ConversationID()
}

// sidebarChatID resolves the chat identity on chat-level events. The backend
// sends it in chat_id; older frames carried it in id, so that stays as a
// fallback.
func sidebarChatID(evt *wire.Event) string {
	if evt.ChatID != "" {
		return evt.ChatID
	}
	return evt.ID
}

func (c *Controller) handleEvent(evt *wire.Event) {
	switch evt.Type {
	case wire.EventCreateChat:
		c.handleCreateChat(evt)

	case wire.EventUpdateChat:
		chatID := sidebarChatID(evt)
		c.chats.Update(store.ChatPatch{ID: chatID, Timestamp: &evt.Timestamp})
		c.publishChat(bus.KindChatUpdated, chatID)

	case wire.EventInit:
		c.appendMessage(evt, false)
		c.setFlags(func(f *bus.Flags) { f.Loading = true })

	case wire.EventStartThinking, wire.EventStartMessaging:
		c.appendMessage(evt, true)
		c.setFlags(func(f *bus.Flags) { f.Loading = false })

	case wire.EventThinking, wire.EventMessaging:
		c.patchMessage(evt, boolPtr(true), true)
		c.setFlags(func(f *bus.Flags) { f.Loading = false })

	case wire.EventEndThinking, wire.EventEndMessaging:
		// End frames usually carry no content; when one does, it is the
		// final text and replaces the accumulated deltas.
		hasContent := evt.Content.Text != "" || evt.Content.Confirmation != nil
		c.patchMessage(evt, boolPtr(false), hasContent)
		// Loading comes back on while the server decides its next phase.
		c.setFlags(func(f *bus.Flags) { f.Loading = true })

	case wire.EventCheckingTitle:
		chatID := sidebarChatID(evt)
		c.chats.Update(store.ChatPatch{ID: chatID, IsProcessing: boolPtr(true)})
		c.publishChat(bus.KindChatUpdated, chatID)

	case wire.EventGeneratedTitle:
		chatID := sidebarChatID(evt)
		title := evt.Content.Text
		c.chats.Update(store.ChatPatch{
			ID:           chatID,
			Title:        &title,
			Timestamp:    &evt.Timestamp,
			IsProcessing: boolPtr(false),
		})
		c.publishChat(bus.KindChatUpdated, chatID)

	case wire.EventConfirmation:
		c.appendMessage(evt, false)
		c.setFlags(func(f *bus.Flags) {
			f.Streaming = false
			f.AwaitingConfirmation = true
		})

	case wire.EventEndConfirmation:
		c.patchMessage(evt, nil, true)
		c.setFlags(func(f *bus.Flags) { f.AwaitingConfirmation = false })

	case wire.EventComplete:
		c.setFlags(func(f *bus.Flags) {
			f.Streaming = false
			f.Loading = false
		})

	case wire.EventError:
		c.appendMessage(evt, false)
		c.setFlags(func(f *bus.Flags) {
			f.Streaming = false
			f.Loading = false
			f.AwaitingConfirmation = false
		})

	case wire.EventPong:
		// Keepalive answer, nothing to do.
	}
}

// handleCreateChat registers the server-assigned chat for a draft
// conversation: the fresh chat has no older history, so pagination starts
// exhausted.
func (c *Controller) handleCreateChat(evt *wire.Event) {
	chatID := sidebarChatID(evt)
	c.convos.SetHasMore(chatID, false)
	c.convos.SetCursor(chatID, "")
	c.chats.Add(store.Chat{
		ID:        chatID,
		Title:     evt.Content.Text,
		URL:       "/chat/" + chatID,
		Timestamp: evt.Timestamp,
	})
	c.convos.SetConversationID(chatID)
	c.publishChat(bus.KindChatCreated, chatID)
	if c.navigate != nil {
		c.navigate(chatID)
	}
}

func (c *Controller) appendMessage(evt *wire.Event, processing bool) {
	chatID := c.eventChatID(evt)
	if chatID == "" {
		return
	}
	c.convos.AppendMessages(chatID, []store.Message{{
		ID:           evt.ID,
		Role:         evt.Role,
		Content:      evt.Content,
		Timestamp:    evt.Timestamp,
		UploadFiles:  evt.UploadFiles,
		IsProcessing: processing || evt.IsProcessing,
	}})
	c.bus.Publish(bus.Event{
		Kind:      bus.KindMessageAppended,
		Timestamp: time.Now(),
		Payload:   bus.MessageEvent{ChatID: chatID, MsgIDs: []string{evt.ID}},
	})
}

func (c *Controller) patchMessage(evt *wire.Event, processing *bool, includeContent bool) {
	chatID := c.eventChatID(evt)
	if chatID == "" {
		return
	}
	patch := store.MessagePatch{
		ID:           evt.ID,
		IsProcessing: processing,
	}
	if includeContent {
		patch.Content = &evt.Content
	}
	if evt.Timestamp != 0 {
		patch.Timestamp = &evt.Timestamp
	}
	if !c.convos.UpdateMessage(chatID, patch) {
		return
	}
	c.bus.Publish(bus.Event{
		Kind:      bus.KindMessageUpdated,
		Timestamp: time.Now(),
		Payload:   bus.MessageEvent{ChatID: chatID, MsgIDs: []string{evt.ID}},
	})
}

func (c *Controller) publishChat(kind, chatID string) {
	c.bus.Publish(bus.Event{
		Kind:      kind,
		Timestamp: time.Now(),
		Payload:   bus.ChatEvent{ChatID: chatID},
	})
}

func boolPtr(b bool) *bool { return &b }
