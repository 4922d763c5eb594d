package client

import (
	"context"
	"slices"

	"github.com/parleyhq/parley/types"
)

// Conversations returns the list ordered by most recent activity.
func (c *Client) Conversations() []types.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.conversations)
}

func (c *Client) Unread() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}

// Refresh replaces the conversation list from the REST collaborator.
// Responses are sequence stamped so an in-flight refresh superseded by a
// later one cannot resurrect stale data, no matter the completion order.
// Fetch failures are retried three times and then dropped silently; the
// last known state is kept.
func (c *Client) Refresh(ctx context.Context) {
	c.mu.Lock()
	c.refreshSeq++
	seq := c.refreshSeq
	c.refreshing = true
	c.mu.Unlock()

	var conversations []types.Conversation
	err := c.withRetry(ctx, func() error {
		var err error
		conversations, err = c.api.Conversations(ctx)
		return err
	})

	c.mu.Lock()
	if seq >= c.refreshSeq {
		c.refreshing = false
	}
	if err != nil || seq <= c.refreshApplied {
		c.mu.Unlock()
		if err != nil {
			c.logger.Info("client refresh gave up", "err", err)
		}
		return
	}
	c.refreshApplied = seq
	c.conversations = conversations
	c.mu.Unlock()

	c.subs.publish(ConversationsChanged)
}

// RefreshUnread re-fetches the total unread count, same failure policy
// as Refresh.
func (c *Client) RefreshUnread(ctx context.Context) {
	var unread int
	err := c.withRetry(ctx, func() error {
		var err error
		unread, err = c.api.UnreadCount(ctx)
		return err
	})
	if err != nil {
		c.logger.Info("client unread refresh gave up", "err", err)
		return
	}

	c.mu.Lock()
	changed := c.unread != unread
	c.unread = unread
	c.mu.Unlock()

	if changed {
		c.subs.publish(ConversationsChanged)
	}
}

// CreateConversation opens a conversation with another user. Write
// failures are loud; the caller gets the error.
func (c *Client) CreateConversation(ctx context.Context, other types.Participant, content string) (types.Conversation, error) {
	out, err := c.api.CreateConversation(ctx, types.CreateConversation{
		Other:   other,
		Content: content,
	})
	if err != nil {
		return out, err
	}

	c.mu.Lock()
	c.upsertConversationLocked(out)
	c.mu.Unlock()

	c.subs.publish(ConversationsChanged)
	return out, nil
}

// markLocalRead optimistically flips the last message summary to read.
// The next Refresh reconciles truth if the server never confirms.
func (c *Client) markLocalRead(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.conversations {
		if c.conversations[i].ID != conversationID {
			continue
		}
		if c.conversations[i].LastMessage != nil {
			lm := *c.conversations[i].LastMessage
			lm.Read = true
			c.conversations[i].LastMessage = &lm
		}
		return
	}
}

// applyIncoming routes a broadcast message. For the active conversation
// the message log is updated; for any other, only the last message
// summary changes and the conversation bubbles up the list.
func (c *Client) applyIncoming(msg types.Message) {
	c.mu.Lock()
	active := c.activeConv

	if msg.ConversationID == active {
		changed := c.appendLocked(msg)
		c.mu.Unlock()
		if changed {
			c.subs.publish(MessagesChanged)
		}
		return
	}

	known := false
	for i := range c.conversations {
		if c.conversations[i].ID != msg.ConversationID {
			continue
		}
		known = true
		if lm := c.conversations[i].LastMessage; lm != nil && lm.ID == msg.ID {
			// Same message arrived over both the room and the direct
			// channel; count it once.
			c.mu.Unlock()
			return
		}
		c.conversations[i].LastMessage = &types.LastMessage{
			ID:        msg.ID,
			SenderID:  msg.SenderID,
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
			Read:      false,
		}
		break
	}
	if known {
		c.sortConversationsLocked()
	}
	if msg.SenderID != c.identity.ID {
		c.unread++
	}
	c.mu.Unlock()

	if !known {
		// First message of a conversation we have never seen.
		go c.Refresh(context.Background())
	}

	c.subs.publish(ConversationsChanged)
}

func (c *Client) upsertConversationLocked(conversation types.Conversation) {
	for i := range c.conversations {
		if c.conversations[i].ID == conversation.ID {
			c.conversations[i] = conversation
			c.sortConversationsLocked()
			return
		}
	}
	c.conversations = append(c.conversations, conversation)
	c.sortConversationsLocked()
}

// Local ordering between refreshes; Refresh stays authoritative.
func (c *Client) sortConversationsLocked() {
	slices.SortStableFunc(c.conversations, func(a, b types.Conversation) int {
		at, bt := a.LastActivityAt(), b.LastActivityAt()
		switch {
		case at.After(bt):
			return -1
		case bt.After(at):
			return 1
		default:
			return 0
		}
	})
}
