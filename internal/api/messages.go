package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mcostalima/trill/internal/store"
	"github.com/mcostalima/trill/internal/wire"
)

// historyMessage is the REST shape of a stored message.
type historyMessage struct {
	ID           string         `json:"id"`
	Role         wire.Role      `json:"role"`
	Content      wire.Content   `json:"content"`
	Timestamp    float64        `json:"timestamp"`
	UploadFiles  []wire.FileRef `json:"upload_files,omitempty"`
	IsProcessing bool           `json:"isProcessing,omitempty"`
}

func (m historyMessage) toStore() store.Message {
	return store.Message{
		ID:           m.ID,
		Role:         m.Role,
		Content:      m.Content,
		Timestamp:    m.Timestamp,
		UploadFiles:  m.UploadFiles,
		IsProcessing: m.IsProcessing,
	}
}

// MessagesPage is one page of chat history. An empty NextCursor means the
// oldest page has been reached.
type MessagesPage struct {
	Messages   []store.Message
	NextCursor string
}

// Messages fetches a page of history for a chat, oldest pages reachable by
// following NextCursor.
func (c *Client) Messages(ctx context.Context, chatID, cursor string, limit int) (*MessagesPage, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	path := "/chats/" + url.PathEscape(chatID) + "/messages"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var raw struct {
		Messages   []historyMessage `json:"messages"`
		NextCursor string           `json:"next_cursor"`
	}
	if err := c.getJSON(ctx, path, &raw); err != nil {
		return nil, err
	}

	page := &MessagesPage{NextCursor: raw.NextCursor}
	for _, m := range raw.Messages {
		page.Messages = append(page.Messages, m.toStore())
	}
	return page, nil
}
