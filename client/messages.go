package client

import (
	"context"
	"slices"

	"github.com/parleyhq/parley/types"
)

// Messages returns the loaded log of the active conversation, ascending
// by (CreatedAt, ID).
func (c *Client) Messages() []types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.msgs)
}

// HasMore reports whether older pages may exist for the loaded
// conversation. Once false it stays false until the next Load.
func (c *Client) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMore
}

// Load fetches page one and fully replaces the log, resetting
// pagination. Peers' messages are optimistically marked read; the
// matching receipt is emitted by MarkConversationRead on selection. A
// response arriving after the user moved to another conversation is
// discarded.
func (c *Client) Load(ctx context.Context, conversationID string) error {
	c.mu.Lock()
	c.loadSeq++
	seq := c.loadSeq
	c.mu.Unlock()

	page, err := c.api.Messages(ctx, conversationID, 1, c.pageSize)
	if err != nil {
		c.logger.Info("client load messages failed", "conversation_id", conversationID, "err", err)
		return err
	}

	c.mu.Lock()
	if seq != c.loadSeq || conversationID != c.activeConv {
		c.mu.Unlock()
		return nil
	}

	msgs := make([]types.Message, 0, len(page))
	for _, msg := range page {
		if msg.SenderID != c.identity.ID {
			msg.Read = true
		}
		msgs = append(msgs, msg)
	}
	sortMessages(msgs)

	c.msgs = msgs
	c.msgsConv = conversationID
	c.page = 1
	c.hasMore = len(page) == c.pageSize
	c.mu.Unlock()

	c.subs.publish(MessagesChanged)
	return nil
}

// LoadOlder prepends the next page. Overlapping calls for the same
// conversation do not issue a duplicate request; the second caller waits
// for the first to finish. Short or empty pages end pagination until the
// next Load.
func (c *Client) LoadOlder(ctx context.Context, conversationID string) error {
	c.mu.Lock()
	if c.msgsConv != conversationID || c.activeConv != conversationID || !c.hasMore {
		c.mu.Unlock()
		return nil
	}

	if c.olderBusy {
		done := c.olderDone
		c.mu.Unlock()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.olderBusy = true
	done := make(chan struct{})
	c.olderDone = done
	nextPage := c.page + 1
	c.mu.Unlock()

	page, err := c.api.Messages(ctx, conversationID, nextPage, c.pageSize)

	c.mu.Lock()
	// A conversation switch may have reset the guard already; only
	// release it if this flight still owns it.
	if c.olderDone == done {
		c.olderBusy = false
		c.olderDone = nil
	}
	close(done)

	if err != nil {
		c.mu.Unlock()
		c.logger.Info("client load older failed", "conversation_id", conversationID, "err", err)
		return err
	}

	if c.msgsConv != conversationID || c.activeConv != conversationID {
		// The user switched conversations while this was in flight.
		c.mu.Unlock()
		return nil
	}

	c.page = nextPage
	if len(page) < c.pageSize {
		c.hasMore = false
	}

	seen := make(map[string]struct{}, len(c.msgs))
	for _, msg := range c.msgs {
		seen[msg.ID] = struct{}{}
	}
	for _, msg := range page {
		if _, ok := seen[msg.ID]; ok {
			continue
		}
		c.msgs = append(c.msgs, msg)
	}
	sortMessages(c.msgs)
	c.mu.Unlock()

	c.subs.publish(MessagesChanged)
	return nil
}

// ProbeOlder checks whether messages older than the loaded pages exist,
// without touching the visible list. Used to decide if a "load more"
// affordance should show at all.
func (c *Client) ProbeOlder(ctx context.Context, conversationID string) (bool, error) {
	c.mu.Lock()
	if c.msgsConv != conversationID || !c.hasMore {
		c.mu.Unlock()
		return false, nil
	}
	// With limit 1, page N starts at offset N-1; loaded pages cover the
	// first page*pageSize messages.
	probePage := c.page*c.pageSize + 1
	c.mu.Unlock()

	page, err := c.api.Messages(ctx, conversationID, probePage, 1)
	if err != nil {
		return false, err
	}

	if len(page) == 0 {
		c.mu.Lock()
		if c.msgsConv == conversationID {
			c.hasMore = false
		}
		c.mu.Unlock()
		return false, nil
	}

	return true, nil
}

// SendMessage is loud: the error goes back to the caller so the UI can
// show the failure. On success the message lands in the local log right
// away; other participants get it via the server broadcast.
func (c *Client) SendMessage(ctx context.Context, conversationID, content string) (types.Message, error) {
	c.SetTyping(conversationID, false)

	out, err := c.api.CreateMessage(ctx, conversationID, content)
	if err != nil {
		return out, err
	}

	c.mu.Lock()
	appended := c.appendLocked(out)
	for i := range c.conversations {
		if c.conversations[i].ID != conversationID {
			continue
		}
		c.conversations[i].LastMessage = &types.LastMessage{
			ID:        out.ID,
			SenderID:  out.SenderID,
			Content:   out.Content,
			CreatedAt: out.CreatedAt,
			Read:      false,
		}
		break
	}
	c.sortConversationsLocked()
	c.mu.Unlock()

	if appended {
		c.subs.publish(MessagesChanged)
	}
	c.subs.publish(ConversationsChanged)
	return out, nil
}

// appendLocked inserts in display order, deduplicating by id. It is a
// no-op when the message's conversation is not the loaded one.
func (c *Client) appendLocked(msg types.Message) bool {
	if c.msgsConv != msg.ConversationID {
		return false
	}

	for _, existing := range c.msgs {
		if existing.ID == msg.ID {
			return false
		}
	}

	c.msgs = append(c.msgs, msg)
	sortMessages(c.msgs)
	return true
}

func sortMessages(msgs []types.Message) {
	slices.SortStableFunc(msgs, func(a, b types.Message) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		default:
			return 0
		}
	})
}
