package types

import (
	"encoding/json"
	"fmt"
)

// Event is the envelope carried over the realtime transport in both
// directions. Data holds the kind-specific payload.
type Event struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

func NewEvent(kind string, payload any) (Event, error) {
	if payload == nil {
		return Event{Kind: kind}, nil
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("json marshal %s payload: %w", kind, err)
	}

	return Event{Kind: kind, Data: b}, nil
}

func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("json unmarshal %s payload: %w", e.Kind, err)
	}
	return nil
}

// Event kinds emitted by clients over the realtime transport.
const (
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventSendMessage = "send-message"
	EventTyping      = "typing"
	EventMarkRead    = "mark-read"
)

// Event kinds broadcast by the server.
const (
	EventReceiveMessage = "receive-message"
	EventNewMessage     = "new-message"
	EventUserTyping     = "user-typing"
	EventMessagesRead   = "messages-read"
	EventUserOnline     = "user-online"
	EventUserOffline    = "user-offline"
	EventOnlineUsers    = "online-users"
	EventError          = "error"
)

type RoomEvent struct {
	ConversationID string `json:"conversationId"`
}

type SendMessageEvent struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}

type MessageEvent struct {
	Message Message `json:"message"`
}

type TypingEvent struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	Name           string `json:"name"`
	Typing         bool   `json:"typing"`
}

// ReadEvent announces that a user has read a conversation. ParticipantIDs
// lets other clients decide whether the receipt concerns them without an
// extra lookup.
type ReadEvent struct {
	ConversationID string   `json:"conversationId"`
	UserID         string   `json:"userId"`
	ParticipantIDs []string `json:"participantIds"`
}

type PresenceEvent struct {
	UserID string `json:"userId"`
}

type OnlineUsersEvent struct {
	UserIDs []string `json:"userIds"`
}
