package store

import "sync"

// ChatList holds the sidebar chat entries and their pagination state.
type ChatList struct {
	mu       sync.Mutex
	chats    []Chat
	cursor   string
	hasMore  bool
	fetching bool
}

// NewChatList creates an empty sidebar list.
func NewChatList() *ChatList {
	return &ChatList{hasMore: true}
}

// Add appends chats to the tail (newly created chats).
func (l *ChatList) Add(chats ...Chat) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.chats = append(l.chats, chats...)
}

// Prepend inserts older chats at the head (paged loads).
func (l *ChatList) Prepend(chats []Chat) {
	l.mu.Lock()
	defer l.mu.Unlock()
	merged := make([]Chat, 0, len(chats)+len(l.chats))
	merged = append(merged, chats...)
	merged = append(merged, l.chats...)
	l.chats = merged
}

// Update applies a partial update addressed by id; no-op on unknown ids.
func (l *ChatList) Update(patch ChatPatch) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.chats {
		if l.chats[i].ID != patch.ID {
			continue
		}
		if patch.Title != nil {
			l.chats[i].Title = *patch.Title
		}
		if patch.Timestamp != nil {
			l.chats[i].Timestamp = *patch.Timestamp
		}
		if patch.IsProcessing != nil {
			l.chats[i].IsProcessing = *patch.IsProcessing
		}
		return true
	}
	return false
}

// Remove deletes a chat by id.
func (l *ChatList) Remove(chatID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.chats[:0]
	for _, c := range l.chats {
		if c.ID != chatID {
			out = append(out, c)
		}
	}
	l.chats = out
}

// List returns a snapshot of the sidebar entries.
func (l *ChatList) List() []Chat {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Chat(nil), l.chats...)
}

// SetCursor stores the sidebar pagination token.
func (l *ChatList) SetCursor(cursor string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cursor = cursor
}

// Cursor returns the sidebar pagination token.
func (l *ChatList) Cursor() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor
}

// SetHasMore flags whether older sidebar pages remain.
func (l *ChatList) SetHasMore(hasMore bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hasMore = hasMore
}

// HasMore reports whether older sidebar pages remain.
func (l *ChatList) HasMore() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasMore
}

// BeginFetch marks a sidebar fetch as in flight. Returns false when one is
// already running or pagination is exhausted.
func (l *ChatList) BeginFetch() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fetching || !l.hasMore {
		return false
	}
	l.fetching = true
	return true
}

// EndFetch clears the in-flight flag.
func (l *ChatList) EndFetch() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fetching = false
}
