package types

import (
	"time"
	"unicode/utf8"

	"github.com/parleyhq/parley/id"
	"github.com/parleyhq/parley/validator"
)

type Message struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"conversationId" db:"conversation_id"`
	SenderID       string    `json:"senderId" db:"sender_id"`
	Content        string    `json:"content" db:"content"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	Read           bool      `json:"read" db:"read"`
}

// Before reports whether m sorts before other in the display order,
// ascending by (CreatedAt, ID).
func (m Message) Before(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}

type CreateMessage struct {
	ConversationID string
	Content        string

	loggedInUserID string
}

func (in *CreateMessage) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in CreateMessage) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *CreateMessage) Validate() error {
	v := validator.New()

	if in.ConversationID == "" {
		v.AddError("ConversationID", "Conversation ID is required")
	}
	if !id.Valid(in.ConversationID) {
		v.AddError("ConversationID", "Conversation ID is invalid")
	}
	if in.Content == "" {
		v.AddError("Content", "Content is required")
	}
	if utf8.RuneCountInString(in.Content) > 1000 {
		v.AddError("Content", "Content must be at most 1000 characters")
	}

	return v.AsError()
}

const (
	DefaultMessagePageSize = 20
	maxMessagePageSize     = 100
)

// ListMessages pages through a conversation's log newest-first.
// Page starts at 1. A result shorter than Limit means the history
// is exhausted.
type ListMessages struct {
	ConversationID string
	Page           int
	Limit          int

	loggedInUserID string
}

func (in *ListMessages) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in ListMessages) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *ListMessages) Validate() error {
	v := validator.New()

	if in.Page == 0 {
		in.Page = 1
	}
	if in.Limit == 0 {
		in.Limit = DefaultMessagePageSize
	}

	if in.ConversationID == "" {
		v.AddError("ConversationID", "Conversation ID is required")
	}
	if !id.Valid(in.ConversationID) {
		v.AddError("ConversationID", "Conversation ID is invalid")
	}
	if in.Page < 1 {
		v.AddError("Page", "Page must be greater than 0")
	}
	if in.Limit < 1 || in.Limit > maxMessagePageSize {
		v.AddError("Limit", "Limit must be between 1 and 100")
	}

	return v.AsError()
}
