package store

import "github.com/mcostalima/trill/internal/wire"

// Message is a conversation-scoped message. The id may be client-generated
// until the server acknowledges it with its own.
type Message struct {
	ID           string
	Role         wire.Role
	Content      wire.Content
	Timestamp    float64
	IsProcessing bool
	UploadFiles  []wire.FileRef
}

// Chat is a sidebar list entry. IsProcessing is true while the backend is
// (re)generating its title.
type Chat struct {
	ID           string
	Title        string
	URL          string
	Timestamp    float64
	IsProcessing bool
}

// MessagePatch is a partial message update addressed by id.
// Nil fields are left untouched.
type MessagePatch struct {
	ID           string
	Content      *wire.Content
	Timestamp    *float64
	IsProcessing *bool
}

// ChatPatch is a partial sidebar chat update addressed by id.
type ChatPatch struct {
	ID           string
	Title        *string
	Timestamp    *float64
	IsProcessing *bool
}
