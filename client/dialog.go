package client

import "context"

// ViewState is the dialog position: closed, conversation list, or a
// single conversation.
type ViewState int

const (
	ViewClosed ViewState = iota
	ViewList
	ViewDetail
)

func (s ViewState) String() string {
	switch s {
	case ViewList:
		return "list"
	case ViewDetail:
		return "detail"
	default:
		return "closed"
	}
}

// View returns the current state and, in detail view, the active
// conversation id.
func (c *Client) View() (ViewState, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view, c.activeConv
}

// Open shows the dialog, restoring the conversation that was active
// before the last Close. An empty conversation store triggers a
// background refresh.
func (c *Client) Open(ctx context.Context) {
	c.mu.Lock()
	if c.view != ViewClosed {
		c.mu.Unlock()
		return
	}

	last := c.lastConv
	if last != "" {
		c.view = ViewDetail
		c.activeConv = last
		if c.msgsConv != last {
			c.resetLogLocked(last)
		}
	} else {
		c.view = ViewList
	}

	needRefresh := len(c.conversations) == 0 && !c.refreshing
	room := c.roomConv
	c.mu.Unlock()

	c.subs.publish(ViewChanged)

	if needRefresh {
		go c.Refresh(ctx)
	}

	if last != "" {
		if room != last {
			if room != "" {
				c.transport.LeaveRoom(room)
			}
			c.transport.JoinRoom(last)
			c.mu.Lock()
			c.roomConv = last
			c.mu.Unlock()
		}
		go func() {
			_ = c.Load(ctx, last)
		}()
	}
}

// Select moves to the detail view for a conversation. In order: the
// local read floor is applied, the receipt is persisted and broadcast,
// the transport room is joined, and only then the log loads in the
// background so the view renders immediately.
func (c *Client) Select(ctx context.Context, conversationID string) {
	c.mu.Lock()
	if c.view == ViewClosed {
		c.mu.Unlock()
		return
	}

	c.view = ViewDetail
	c.activeConv = conversationID
	c.lastConv = conversationID
	if c.msgsConv != conversationID {
		c.resetLogLocked(conversationID)
	}
	room := c.roomConv
	c.roomConv = conversationID
	c.mu.Unlock()

	c.subs.publish(ViewChanged)

	c.markLocalRead(conversationID)
	c.subs.publish(ConversationsChanged)

	go c.MarkConversationRead(ctx, conversationID)

	// Leave before join, so room-scoped events are not delivered twice
	// during the switch.
	if room != "" && room != conversationID {
		c.transport.LeaveRoom(room)
	}
	if room != conversationID {
		c.transport.JoinRoom(conversationID)
	}

	go func() {
		_ = c.Load(ctx, conversationID)
	}()
}

// Back returns to the list. The room stays joined so incoming messages
// keep updating the conversation's last message summary.
func (c *Client) Back() {
	c.mu.Lock()
	if c.view != ViewDetail {
		c.mu.Unlock()
		return
	}
	c.view = ViewList
	c.activeConv = ""
	c.mu.Unlock()

	c.subs.publish(ViewChanged)
}

// Close hides the dialog, remembering the active conversation for the
// next Open.
func (c *Client) Close() {
	c.mu.Lock()
	if c.view == ViewClosed {
		c.mu.Unlock()
		return
	}
	c.view = ViewClosed
	c.activeConv = ""
	c.mu.Unlock()

	c.subs.publish(ViewChanged)
}

// resetLogLocked clears the message log and pagination for a new
// conversation, before its first page arrives.
func (c *Client) resetLogLocked(conversationID string) {
	c.msgs = nil
	c.msgsConv = conversationID
	c.page = 0
	c.hasMore = true
	c.olderBusy = false
	c.olderDone = nil
}
