package types

import (
	"time"

	"github.com/parleyhq/parley/id"
	"github.com/parleyhq/parley/validator"
)

type Conversation struct {
	ID        string    `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	Participants []Participant `json:"participants" db:"participants"`
	LastMessage  *LastMessage  `json:"lastMessage,omitempty" db:"last_message"`
}

// LastMessage is the denormalized summary shown in conversation lists.
// It may be stale relative to the full message log.
type LastMessage struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Read      bool      `json:"read"`
}

// Others returns the participants excluding the given user.
func (c Conversation) Others(selfID string) []Participant {
	out := make([]Participant, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p.ID != selfID {
			out = append(out, p)
		}
	}
	return out
}

// LastActivityAt is the timestamp conversations are ordered by:
// the last message if there is one, creation time otherwise.
func (c Conversation) LastActivityAt() time.Time {
	if c.LastMessage != nil {
		return c.LastMessage.CreatedAt
	}
	return c.CreatedAt
}

// CreateConversation opens a conversation on first contact. Other carries a
// display snapshot of the other participant; the logged-in side is snapshotted
// from the identity collaborator.
type CreateConversation struct {
	Other   Participant
	Content string

	loggedInUser Identity
}

func (in *CreateConversation) SetLoggedInUser(user Identity) {
	in.loggedInUser = user
}

func (in CreateConversation) LoggedInUser() Identity {
	return in.loggedInUser
}

func (in *CreateConversation) Validate() error {
	v := validator.New()

	if in.Other.ID == "" {
		v.AddError("Other", "Other user ID is required")
	}
	if in.Content == "" {
		v.AddError("Content", "Content is required")
	}

	return v.AsError()
}

type RetrieveConversationFromParticipants struct {
	OtherUserID string

	loggedInUserID string
}

func (in *RetrieveConversationFromParticipants) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in RetrieveConversationFromParticipants) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *RetrieveConversationFromParticipants) Validate() error {
	v := validator.New()

	if in.OtherUserID == "" {
		v.AddError("OtherUserID", "Other user ID is required")
	}

	return v.AsError()
}

type ListConversations struct {
	loggedInUserID string
}

func (in *ListConversations) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in ListConversations) LoggedInUserID() string {
	return in.loggedInUserID
}

type MarkConversationRead struct {
	ConversationID string

	loggedInUserID string
}

func (in *MarkConversationRead) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in MarkConversationRead) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *MarkConversationRead) Validate() error {
	v := validator.New()

	if in.ConversationID == "" {
		v.AddError("ConversationID", "Conversation ID is required")
	}
	if !id.Valid(in.ConversationID) {
		v.AddError("ConversationID", "Conversation ID is invalid")
	}

	return v.AsError()
}
