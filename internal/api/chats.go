package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mcostalima/trill/internal/store"
)

// ChatsPage is one page of the chat sidebar listing.
type ChatsPage struct {
	Chats      []store.Chat
	NextCursor string
}

// Chats fetches a page of the chat list, newest first.
func (c *Client) Chats(ctx context.Context, cursor string, limit int) (*ChatsPage, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	path := "/chats"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var raw struct {
		Chats []struct {
			ID        string  `json:"id"`
			Title     string  `json:"title"`
			Timestamp float64 `json:"timestamp"`
		} `json:"chats"`
		NextCursor string `json:"next_cursor"`
	}
	if err := c.getJSON(ctx, path, &raw); err != nil {
		return nil, err
	}

	page := &ChatsPage{NextCursor: raw.NextCursor}
	for _, ch := range raw.Chats {
		page.Chats = append(page.Chats, store.Chat{
			ID:        ch.ID,
			Title:     ch.Title,
			Timestamp: ch.Timestamp,
			URL:       "/chat/" + ch.ID,
		})
	}
	return page, nil
}

// DeleteChat removes a chat on the backend.
func (c *Client) DeleteChat(ctx context.Context, chatID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/chats/"+url.PathEscape(chatID), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}
