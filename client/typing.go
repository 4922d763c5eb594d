package client

import (
	"slices"
	"strings"
	"time"

	"github.com/parleyhq/parley/types"
)

const (
	typingDebounce = 2 * time.Second

	// Received entries expire on their own: a peer that disconnects
	// uncleanly must not appear to type forever.
	typingTTL = 10 * time.Second
)

type typingEntry struct {
	Name           string
	ConversationID string

	// gen ties the TTL timer to the entry it was armed for. An expiry
	// that lost the race against an upsert finds a newer gen and backs
	// off instead of dropping a live typist.
	gen   uint64
	timer *time.Timer
}

// TypingUser is a peer currently typing in the active conversation.
type TypingUser struct {
	UserID string
	Name   string
}

// SetTyping reports local keystrokes. The first call emits typing=true;
// further calls within the window only reset the timer, and two seconds
// of silence emit a single typing=false. SetTyping(id, false) stops
// immediately.
func (c *Client) SetTyping(conversationID string, typing bool) {
	c.mu.Lock()
	flag, ok := c.typingFlags[conversationID]
	if !ok {
		flag = newDebouncedFlag(typingDebounce, func(active bool) {
			err := c.transport.Emit(types.EventTyping, types.TypingEvent{
				ConversationID: conversationID,
				UserID:         c.identity.ID,
				Name:           c.identity.Name,
				Typing:         active,
			})
			if err != nil {
				c.logger.Info("client typing emit skipped", "conversation_id", conversationID, "err", err)
			}
		})
		c.typingFlags[conversationID] = flag
	}
	c.mu.Unlock()

	if typing {
		flag.Set()
	} else {
		flag.Clear()
	}
}

// ActiveTypists returns peers typing in the active conversation, stable
// order, excluding the current user.
func (c *Client) ActiveTypists() []TypingUser {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []TypingUser
	for userID, entry := range c.typists {
		if entry.ConversationID != c.activeConv || userID == c.identity.ID {
			continue
		}
		out = append(out, TypingUser{UserID: userID, Name: entry.Name})
	}

	slices.SortFunc(out, func(a, b TypingUser) int {
		return strings.Compare(a.UserID, b.UserID)
	})
	return out
}

func (c *Client) applyRemoteTyping(in types.TypingEvent) {
	if in.UserID == c.identity.ID {
		return
	}

	c.mu.Lock()
	if old, ok := c.typists[in.UserID]; ok && old.timer != nil {
		old.timer.Stop()
	}

	if in.Typing {
		userID := in.UserID
		c.typingGen++
		gen := c.typingGen
		c.typists[in.UserID] = typingEntry{
			Name:           in.Name,
			ConversationID: in.ConversationID,
			gen:            gen,
			timer:          time.AfterFunc(typingTTL, func() { c.expireTypist(userID, gen) }),
		}
	} else {
		delete(c.typists, in.UserID)
	}
	c.mu.Unlock()

	c.subs.publish(TypingChanged)
}

func (c *Client) expireTypist(userID string, gen uint64) {
	c.mu.Lock()
	entry, ok := c.typists[userID]
	if !ok || entry.gen != gen {
		// The entry was refreshed after this timer fired.
		c.mu.Unlock()
		return
	}
	delete(c.typists, userID)
	c.mu.Unlock()

	c.subs.publish(TypingChanged)
}
