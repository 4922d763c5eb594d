package client

import (
	"context"
	"slices"

	"github.com/parleyhq/parley/types"
)

// MarkConversationRead applies the local read floor, persists it and
// broadcasts the receipt. The optimistic state is never rolled back: if
// the REST call fails the broadcast is still attempted and the local
// view stays read. Idempotent.
func (c *Client) MarkConversationRead(ctx context.Context, conversationID string) {
	c.mu.Lock()
	var participantIDs []string
	for i := range c.conversations {
		if c.conversations[i].ID != conversationID {
			continue
		}
		if c.conversations[i].LastMessage != nil {
			lm := *c.conversations[i].LastMessage
			lm.Read = true
			c.conversations[i].LastMessage = &lm
		}
		for _, p := range c.conversations[i].Participants {
			participantIDs = append(participantIDs, p.ID)
		}
		break
	}

	if c.msgsConv == conversationID {
		for i := range c.msgs {
			if c.msgs[i].SenderID != c.identity.ID {
				c.msgs[i].Read = true
			}
		}
	}
	c.mu.Unlock()

	c.subs.publish(ConversationsChanged)
	c.subs.publish(MessagesChanged)

	if err := c.withRetry(ctx, func() error {
		return c.api.MarkConversationRead(ctx, conversationID)
	}); err != nil {
		c.logger.Info("client mark read persist gave up", "conversation_id", conversationID, "err", err)
	}

	if err := c.transport.Emit(types.EventMarkRead, types.ReadEvent{
		ConversationID: conversationID,
		UserID:         c.identity.ID,
		ParticipantIDs: participantIDs,
	}); err != nil {
		c.logger.Info("client mark read emit skipped", "conversation_id", conversationID, "err", err)
	}

	go c.RefreshUnread(ctx)
}

// applyRemoteRead handles someone else's receipt. Only messages the
// current user sent flip to read; the last message summary follows the
// same rule. A receipt for a conversation we are not part of is ignored.
func (c *Client) applyRemoteRead(in types.ReadEvent) {
	if in.UserID == c.identity.ID {
		// Our own receipt echoed back; already applied optimistically.
		return
	}

	if len(in.ParticipantIDs) > 0 && !slices.Contains(in.ParticipantIDs, c.identity.ID) {
		return
	}

	c.mu.Lock()
	changedConversations := false
	for i := range c.conversations {
		if c.conversations[i].ID != in.ConversationID {
			continue
		}
		lm := c.conversations[i].LastMessage
		if lm != nil && lm.SenderID == c.identity.ID && !lm.Read {
			updated := *lm
			updated.Read = true
			c.conversations[i].LastMessage = &updated
			changedConversations = true
		}
		break
	}

	changedMessages := false
	if c.msgsConv == in.ConversationID {
		for i := range c.msgs {
			if c.msgs[i].SenderID == c.identity.ID && !c.msgs[i].Read {
				c.msgs[i].Read = true
				changedMessages = true
			}
		}
	}
	c.mu.Unlock()

	if changedConversations {
		c.subs.publish(ConversationsChanged)
	}
	if changedMessages {
		c.subs.publish(MessagesChanged)
	}
}
