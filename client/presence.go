package client

// IsOnline reports push-delivered presence. Never inferred locally; the
// map empties whenever the transport disconnects.
func (c *Client) IsOnline(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online[userID]
}

func (c *Client) OnlineUsers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.online))
	for userID, online := range c.online {
		if online {
			out = append(out, userID)
		}
	}
	return out
}

func (c *Client) applyPresence(userID string, online bool) {
	c.mu.Lock()
	if online {
		c.online[userID] = true
	} else {
		delete(c.online, userID)
	}
	c.mu.Unlock()

	c.subs.publish(PresenceChanged)
}

func (c *Client) applyPresenceSnapshot(userIDs []string) {
	next := make(map[string]bool, len(userIDs))
	for _, userID := range userIDs {
		next[userID] = true
	}

	c.mu.Lock()
	c.online = next
	c.mu.Unlock()

	c.subs.publish(PresenceChanged)
}
