// Package client is the conversation synchronization core consumed by UI
// layers. It keeps an in-memory view of the user's conversations,
// messages, typing and presence state, reconciling optimistic local
// updates with REST responses and realtime broadcasts.
package client

import "sync"

// StateEvent tells subscribers which slice of state changed. Subscribers
// re-read the state they care about through the public accessors.
type StateEvent string

const (
	ConversationsChanged StateEvent = "conversations-changed"
	MessagesChanged      StateEvent = "messages-changed"
	TypingChanged        StateEvent = "typing-changed"
	PresenceChanged      StateEvent = "presence-changed"
	ConnectionChanged    StateEvent = "connection-changed"
	ViewChanged          StateEvent = "view-changed"
)

const subscriberBuffer = 16

type subscribers struct {
	mu   sync.Mutex
	subs map[chan StateEvent]struct{}
}

func (s *subscribers) subscribe() (<-chan StateEvent, func()) {
	ch := make(chan StateEvent, subscriberBuffer)

	s.mu.Lock()
	if s.subs == nil {
		s.subs = make(map[chan StateEvent]struct{})
	}
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
	}
}

// publish never blocks. A subscriber that stopped draining its channel
// misses events instead of stalling the core.
func (s *subscribers) publish(ev StateEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
