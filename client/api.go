package client

import (
	"context"

	"github.com/parleyhq/parley/types"
)

// API is the REST collaborator. The core only relies on ordered-by-recency
// conversation lists, page/limit message pagination that returns fewer
// than limit on exhaustion, and idempotent mark-read.
type API interface {
	Conversations(ctx context.Context) ([]types.Conversation, error)
	// Messages returns one page, newest first.
	Messages(ctx context.Context, conversationID string, page, limit int) ([]types.Message, error)
	CreateConversation(ctx context.Context, in types.CreateConversation) (types.Conversation, error)
	CreateMessage(ctx context.Context, conversationID, content string) (types.Message, error)
	MarkConversationRead(ctx context.Context, conversationID string) error
	UnreadCount(ctx context.Context) (int, error)
}
