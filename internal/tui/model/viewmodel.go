// Package model caches client state for the TUI and signals refreshes when
// the bus reports changes.
package model

import (
	"context"
	"sync"

	"github.com/mcostalima/trill/internal/bus"
	"github.com/mcostalima/trill/internal/cache"
	"github.com/mcostalima/trill/internal/history"
	"github.com/mcostalima/trill/internal/status"
	"github.com/mcostalima/trill/internal/store"
	"github.com/mcostalima/trill/internal/stream"
	"github.com/mcostalima/trill/internal/tui/ui"
	"github.com/mcostalima/trill/internal/upload"
	"github.com/mcostalima/trill/internal/wire"
	"go.uber.org/zap"
)

// ViewModel ties the stores, loaders and the stream controller together for
// the views. It subscribes to the bus and collapses every change into a
// single refresh signal the app drains on its draw loop.
type ViewModel struct {
	Convos   *store.Conversations
	Chats    *store.ChatList
	Loader   *history.Loader
	ChatLdr  *history.ChatLoader
	Uploads  *upload.Tracker
	Stream   *stream.Controller
	Machine  *status.Machine
	Flash    *ui.FlashModel
	logger   *zap.Logger
	cacheDB  *cache.DB
	bus      *bus.Bus
	cancel   context.CancelFunc

	mu        sync.RWMutex
	flags     bus.Flags
	refreshCh chan struct{}
}

// NewViewModel creates the view model.
func NewViewModel(convos *store.Conversations, chats *store.ChatList, loader *history.Loader, chatLdr *history.ChatLoader, uploads *upload.Tracker, ctrl *stream.Controller, machine *status.Machine, db *cache.DB, b *bus.Bus, logger *zap.Logger) *ViewModel {
	return &ViewModel{
		Convos:    convos,
		Chats:     chats,
		Loader:    loader,
		ChatLdr:   chatLdr,
		Uploads:   uploads,
		Stream:    ctrl,
		Machine:   machine,
		Flash:     ui.NewFlashModel(),
		logger:    logger,
		cacheDB:   db,
		bus:       b,
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// Start subscribes to bus events; every event collapses into a refresh
// signal. Session flag events are additionally cached for the status bar.
func (vm *ViewModel) Start(ctx context.Context) {
	ctx, vm.cancel = context.WithCancel(ctx)
	ch, unsub := vm.bus.Subscribe("", 256)
	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				if flags, ok := evt.Payload.(bus.Flags); ok {
					vm.mu.Lock()
					vm.flags = flags
					vm.mu.Unlock()
				}
				if ue, ok := evt.Payload.(bus.UploadEvent); ok && evt.Kind == bus.KindUploadFailed {
					vm.Flash.Warn("upload failed: " + ue.Filename)
				}
				vm.signalRefresh()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the bus subscription.
func (vm *ViewModel) Stop() {
	if vm.cancel != nil {
		vm.cancel()
	}
}

// Flags returns the last seen session flags.
func (vm *ViewModel) Flags() bus.Flags {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.flags
}

// WarmStart seeds the sidebar from the cache so the UI renders before the
// first network round-trip, then refreshes from the backend.
func (vm *ViewModel) WarmStart(ctx context.Context) {
	if cached, err := vm.cacheDB.ListChats(50); err == nil && len(cached) > 0 {
		// Cache lists newest first; the sidebar wants oldest first.
		for i, j := 0, len(cached)-1; i < j; i, j = i+1, j-1 {
			cached[i], cached[j] = cached[j], cached[i]
		}
		vm.Chats.Prepend(cached)
		vm.signalRefresh()
	}
	if _, err := vm.ChatLdr.LoadOlder(ctx); err != nil {
		vm.Flash.Warn("chat list refresh failed")
	}
	vm.signalRefresh()
}

// OpenChat makes a chat active: seeds messages from the cache if the
// conversation is empty, then pages the newest history from the backend.
func (vm *ViewModel) OpenChat(ctx context.Context, chatID string) {
	vm.Convos.SetConversationID(chatID)
	if vm.Convos.Len(chatID) == 0 {
		if cached, err := vm.cacheDB.ListMessages(chatID, 50); err == nil && len(cached) > 0 {
			vm.Convos.SetMessages(chatID, cached)
			vm.signalRefresh()
		}
	}
	if _, err := vm.Loader.LoadOlder(ctx, chatID); err != nil {
		vm.Flash.Warn("history load failed")
	}
	vm.signalRefresh()
}

// NewDraft switches to a draft conversation that has no backend chat yet.
func (vm *ViewModel) NewDraft() {
	vm.Convos.SetConversationID(history.DraftChatID)
	vm.signalRefresh()
}

// Send sends the composed text with any uploaded attachments. Attachments
// are cleared only when the message actually goes out.
func (vm *ViewModel) Send(text string) {
	refs := vm.Uploads.UploadedRefs()
	if !vm.Stream.SendMessage(text, refs) {
		vm.Flash.Warn("not connected, message dropped")
		return
	}
	vm.Uploads.Clear()
	vm.signalRefresh()
}

// Decide sends a confirmation decision.
func (vm *ViewModel) Decide(msgID string, d wire.Decision) bool {
	if !vm.Stream.SendConfirmation(msgID, d) {
		vm.Flash.Warn("not connected, decision dropped")
		return false
	}
	vm.signalRefresh()
	return true
}

// PendingConfirmation returns the newest undecided confirmation message in
// the active chat, or nil.
func (vm *ViewModel) PendingConfirmation() *store.Message {
	chatID := vm.Convos.ConversationID()
	msgs := vm.Convos.Messages(chatID)
	for i := len(msgs) - 1; i >= 0; i-- {
		c := msgs[i].Content.Confirmation
		if msgs[i].Role == wire.RoleConfirmation && c != nil && c.Approve == nil {
			m := msgs[i]
			return &m
		}
	}
	return nil
}

// Attach uploads a file in the background and reports via flash messages.
func (vm *ViewModel) Attach(ctx context.Context, path string) {
	go func() {
		if _, err := vm.Uploads.Attach(ctx, path); err != nil {
			return // Tracker already flashed via the bus.
		}
		vm.Flash.Info("attached " + path)
		vm.signalRefresh()
	}()
}

// DetachLast removes the most recently added attachment.
func (vm *ViewModel) DetachLast(ctx context.Context) {
	items := vm.Uploads.List()
	if len(items) == 0 {
		return
	}
	last := items[len(items)-1]
	go func() {
		if err := vm.Uploads.Remove(ctx, last.ClientID); err != nil {
			vm.Flash.Err(err)
		}
		vm.signalRefresh()
	}()
}

// DeleteChat removes a chat on the backend and locally.
func (vm *ViewModel) DeleteChat(ctx context.Context, chatID string) {
	go func() {
		if err := vm.ChatLdr.Delete(ctx, chatID); err != nil {
			vm.Flash.Err(err)
			return
		}
		vm.Flash.Info("chat deleted")
		vm.signalRefresh()
	}()
}
