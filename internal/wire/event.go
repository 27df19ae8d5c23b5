package wire

import (
	"encoding/json"
	"fmt"
)

// EventType enumerates every inbound stream event the server can emit.
type EventType string

const (
	EventCreateChat      EventType = "create_chat"
	EventUpdateChat      EventType = "update_chat"
	EventInit            EventType = "init"
	EventStartThinking   EventType = "start_thinking"
	EventThinking        EventType = "thinking"
	EventEndThinking     EventType = "end_thinking"
	EventStartMessaging  EventType = "start_messaging"
	EventMessaging       EventType = "messaging"
	EventEndMessaging    EventType = "end_messaging"
	EventCheckingTitle   EventType = "checking_title"
	EventGeneratedTitle  EventType = "generated_title"
	EventConfirmation    EventType = "confirmation"
	EventEndConfirmation EventType = "end_confirmation"
	EventError           EventType = "error"
	EventComplete        EventType = "complete"
	EventPong            EventType = "pong"
)

var eventTypes = map[EventType]struct{}{
	EventCreateChat: {}, EventUpdateChat: {}, EventInit: {},
	EventStartThinking: {}, EventThinking: {}, EventEndThinking: {},
	EventStartMessaging: {}, EventMessaging: {}, EventEndMessaging: {},
	EventCheckingTitle: {}, EventGeneratedTitle: {},
	EventConfirmation: {}, EventEndConfirmation: {},
	EventError: {}, EventComplete: {}, EventPong: {},
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	_, ok := eventTypes[t]
	return ok
}

// Role enumerates message roles.
type Role string

const (
	RoleUser         Role = "user"
	RoleSystem       Role = "system"
	RoleAssistant    Role = "assistant"
	RoleConfirmation Role = "confirmation"
	RoleError        Role = "error"
)

// FileRef references an uploaded file attached to a message. The raw bytes
// never travel with the message, only the server-assigned id and name.
type FileRef struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
}

// Event is the inbound stream event envelope. Timestamps are epoch seconds
// as emitted by the backend; zero means unset.
type Event struct {
	Type         EventType `json:"type"`
	ID           string    `json:"id,omitempty"`
	Role         Role      `json:"role,omitempty"`
	Content      Content   `json:"content,omitempty"`
	Timestamp    float64   `json:"timestamp,omitempty"`
	ChatID       string    `json:"chat_id,omitempty"`
	UploadFiles  []FileRef `json:"upload_files,omitempty"`
	IsProcessing bool      `json:"isProcessing,omitempty"`
}

// DecodeEvent parses a raw frame into an Event. Unknown event types are
// rejected so a protocol drift shows up as an error, not silent misbehavior.
func DecodeEvent(data []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if !evt.Type.Valid() {
		return nil, fmt.Errorf("decode event: unknown type %q", evt.Type)
	}
	return &evt, nil
}
