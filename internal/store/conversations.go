package store

import (
	"sort"
	"sync"
)

// conversation holds the per-chat message list and pagination state.
type conversation struct {
	messages []Message
	cursor   string
	hasMore  bool
}

// Conversations is the single source of truth for message state, keyed by
// chat id. It is a pure state container: no I/O, every operation is
// synchronous and total. Unknown chat ids are lazily initialized on first
// touch.
type Conversations struct {
	mu     sync.RWMutex
	convos map[string]*conversation
	active string
}

// NewConversations creates an empty conversation store.
func NewConversations() *Conversations {
	return &Conversations{
		convos: make(map[string]*conversation),
	}
}

func (s *Conversations) get(chatID string) *conversation {
	c, ok := s.convos[chatID]
	if !ok {
		c = &conversation{hasMore: true}
		s.convos[chatID] = c
	}
	return c
}

// SetConversationID selects the active chat. Empty means none ("new" chat).
func (s *Conversations) SetConversationID(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = chatID
}

// ConversationID returns the active chat id.
func (s *Conversations) ConversationID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// SetMessages replaces a chat's message list.
func (s *Conversations) SetMessages(chatID string, msgs []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.get(chatID)
	c.messages = append([]Message(nil), msgs...)
}

// AppendMessages pushes messages to the tail of a chat's list.
func (s *Conversations) AppendMessages(chatID string, msgs []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.get(chatID)
	c.messages = append(c.messages, msgs...)
}

// PrependMessages inserts messages at the head, used for older-page loads.
func (s *Conversations) PrependMessages(chatID string, msgs []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.get(chatID)
	merged := make([]Message, 0, len(msgs)+len(c.messages))
	merged = append(merged, msgs...)
	merged = append(merged, c.messages...)
	c.messages = merged
}

// UpdateMessage applies a partial update addressed by id. It is a no-op when
// the id is not present: updates never create rows. Returns whether a
// message was found.
func (s *Conversations) UpdateMessage(chatID string, patch MessagePatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.get(chatID)
	for i := range c.messages {
		if c.messages[i].ID != patch.ID {
			continue
		}
		if patch.Content != nil {
			c.messages[i].Content = *patch.Content
		}
		if patch.Timestamp != nil {
			c.messages[i].Timestamp = *patch.Timestamp
		}
		if patch.IsProcessing != nil {
			c.messages[i].IsProcessing = *patch.IsProcessing
		}
		return true
	}
	return false
}

// Messages returns a chat's messages ordered by timestamp ascending.
// Zero timestamps sort last; ties keep their insertion order.
func (s *Conversations) Messages(chatID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convos[chatID]
	if !ok {
		return nil
	}
	out := append([]Message(nil), c.messages...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp == 0 {
			return false
		}
		if out[j].Timestamp == 0 {
			return true
		}
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}

// Len returns the number of messages held for a chat.
func (s *Conversations) Len(chatID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convos[chatID]
	if !ok {
		return 0
	}
	return len(c.messages)
}

// SetCursor stores the pagination token for a chat. Empty means exhausted
// or not yet fetched.
func (s *Conversations) SetCursor(chatID, cursor string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(chatID).cursor = cursor
}

// Cursor returns the pagination token for a chat.
func (s *Conversations) Cursor(chatID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convos[chatID]
	if !ok {
		return ""
	}
	return c.cursor
}

// SetHasMore flags whether older pages remain for a chat.
func (s *Conversations) SetHasMore(chatID string, hasMore bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(chatID).hasMore = hasMore
}

// HasMore reports whether older pages remain. Untouched chats default to
// true so the first fetch is always attempted.
func (s *Conversations) HasMore(chatID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convos[chatID]
	if !ok {
		return true
	}
	return c.hasMore
}

// Drop discards all state held for a chat.
func (s *Conversations) Drop(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convos, chatID)
	if s.active == chatID {
		s.active = ""
	}
}
