package client

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/parleyhq/parley/types"
)

func TestDebouncedFlag(t *testing.T) {
	var mu sync.Mutex
	var edges []bool
	flag := newDebouncedFlag(100*time.Millisecond, func(active bool) {
		mu.Lock()
		edges = append(edges, active)
		mu.Unlock()
	})

	// Three sets within the window make one rising edge.
	flag.Set()
	flag.Set()
	flag.Set()

	mu.Lock()
	if want := []bool{true}; !reflect.DeepEqual(edges, want) {
		mu.Unlock()
		t.Fatalf("want edges %v, got %v", want, edges)
	}
	mu.Unlock()

	// Silence produces exactly one falling edge.
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(edges) == 2
	})

	time.Sleep(150 * time.Millisecond)
	mu.Lock()
	if want := []bool{true, false}; !reflect.DeepEqual(edges, want) {
		mu.Unlock()
		t.Fatalf("want edges %v, got %v", want, edges)
	}
	mu.Unlock()
}

func TestDebouncedFlag_Clear(t *testing.T) {
	var mu sync.Mutex
	var edges []bool
	flag := newDebouncedFlag(time.Hour, func(active bool) {
		mu.Lock()
		edges = append(edges, active)
		mu.Unlock()
	})

	flag.Clear() // inactive, nothing to emit
	flag.Set()
	flag.Clear()
	flag.Clear()

	mu.Lock()
	defer mu.Unlock()
	if want := []bool{true, false}; !reflect.DeepEqual(edges, want) {
		t.Fatalf("want edges %v, got %v", want, edges)
	}
}

func TestSetTyping_EmitsOnEdges(t *testing.T) {
	transport := newFakeTransport()
	c := newTestClient(t, &fakeAPI{}, transport)

	c.SetTyping("A", true)
	c.SetTyping("A", true)
	c.SetTyping("A", true)

	emitted := transport.emittedByKind(types.EventTyping)
	if len(emitted) != 1 {
		t.Fatalf("want one typing emission for repeated keystrokes, got %d", len(emitted))
	}
	payload := emitted[0].Payload.(types.TypingEvent)
	if !payload.Typing || payload.ConversationID != "A" || payload.UserID != "me" {
		t.Fatalf("want typing=true for A by me, got %+v", payload)
	}

	c.SetTyping("A", false)

	emitted = transport.emittedByKind(types.EventTyping)
	if len(emitted) != 2 {
		t.Fatalf("want explicit stop emission, got %d events", len(emitted))
	}
	if stop := emitted[1].Payload.(types.TypingEvent); stop.Typing {
		t.Fatalf("want typing=false, got %+v", stop)
	}
}

func TestRemoteTyping(t *testing.T) {
	c := newTestClient(t, &fakeAPI{}, newFakeTransport())
	enterDetail(c, "A")

	c.applyRemoteTyping(types.TypingEvent{ConversationID: "A", UserID: "peer", Name: "Peer", Typing: true})
	c.applyRemoteTyping(types.TypingEvent{ConversationID: "B", UserID: "friend", Name: "Friend", Typing: true})
	// Self echoes are ignored.
	c.applyRemoteTyping(types.TypingEvent{ConversationID: "A", UserID: "me", Name: "Me", Typing: true})

	got := c.ActiveTypists()
	want := []TypingUser{{UserID: "peer", Name: "Peer"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("want typists %v, got %v", want, got)
	}

	c.applyRemoteTyping(types.TypingEvent{ConversationID: "A", UserID: "peer", Typing: false})
	if got := c.ActiveTypists(); len(got) != 0 {
		t.Fatalf("want no typists after stop, got %v", got)
	}
}

func TestRemoteTyping_Expiry(t *testing.T) {
	c := newTestClient(t, &fakeAPI{}, newFakeTransport())
	enterDetail(c, "A")

	c.applyRemoteTyping(types.TypingEvent{ConversationID: "A", UserID: "peer", Name: "Peer", Typing: true})

	// Stand-in for the TTL firing after an unclean disconnect.
	c.expireTypist("peer", typistGen(c, "peer"))

	if got := c.ActiveTypists(); len(got) != 0 {
		t.Fatalf("want expired typist gone, got %v", got)
	}
}

func TestRemoteTyping_StaleExpiryIgnored(t *testing.T) {
	c := newTestClient(t, &fakeAPI{}, newFakeTransport())
	enterDetail(c, "A")

	c.applyRemoteTyping(types.TypingEvent{ConversationID: "A", UserID: "peer", Name: "Peer", Typing: true})
	stale := typistGen(c, "peer")

	// The peer keeps typing; the entry is refreshed while the old TTL
	// timer may already be in flight.
	c.applyRemoteTyping(types.TypingEvent{ConversationID: "A", UserID: "peer", Name: "Peer", Typing: true})

	c.expireTypist("peer", stale)

	got := c.ActiveTypists()
	want := []TypingUser{{UserID: "peer", Name: "Peer"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("stale expiry must not drop a refreshed typist; want %v, got %v", want, got)
	}

	c.expireTypist("peer", typistGen(c, "peer"))
	if got := c.ActiveTypists(); len(got) != 0 {
		t.Fatalf("want typist gone after current expiry, got %v", got)
	}
}

func typistGen(c *Client, userID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typists[userID].gen
}
