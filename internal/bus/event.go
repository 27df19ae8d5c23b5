package bus

import "time"

// Event kinds published across trill. Subscribers filter by namespace
// prefix: "stream." for connection lifecycle, "message." for conversation
// store changes, "chat." for sidebar list changes, "upload." for file
// transfer progress, "session." for streaming/loading flag flips.
const (
	KindStreamStateChanged = "stream.state_changed"

	KindMessageAppended  = "message.appended"
	KindMessagePrepended = "message.prepended"
	KindMessageUpdated   = "message.updated"

	KindChatCreated = "chat.created"
	KindChatUpdated = "chat.updated"
	KindChatDeleted = "chat.deleted"

	KindUploadProgress = "upload.progress"
	KindUploadFailed   = "upload.failed"

	KindSessionFlags = "session.flags"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// MessageEvent is the payload for message.* events.
type MessageEvent struct {
	ChatID string
	MsgIDs []string
}

// ChatEvent is the payload for chat.* events.
type ChatEvent struct {
	ChatID string
}

// UploadEvent is the payload for upload.* events.
type UploadEvent struct {
	FileID   string
	Filename string
	Progress float64
	Err      string
}

// Flags is the payload for session.flags events.
type Flags struct {
	Streaming            bool
	Loading              bool
	AwaitingConfirmation bool
}
