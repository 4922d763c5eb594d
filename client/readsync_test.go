package client

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/parleyhq/parley/types"
)

func TestMarkConversationRead_Idempotent(t *testing.T) {
	base := time.Unix(1000, 0)
	api := &fakeAPI{
		messagesFn: func(_ context.Context, conversationID string, page, limit int) ([]types.Message, error) {
			return []types.Message{
				msg("m2", "A", "peer", base.Add(2*time.Second)),
				msg("m1", "A", "me", base.Add(1*time.Second)),
			}, nil
		},
	}
	transport := newFakeTransport()
	c := newTestClient(t, api, transport)
	c.mu.Lock()
	c.conversations = []types.Conversation{
		conv("A", &types.LastMessage{ID: "m2", SenderID: "peer", Content: "msg m2", CreatedAt: base}, "me", "peer"),
	}
	c.mu.Unlock()
	enterDetail(c, "A")

	if err := c.Load(context.Background(), "A"); err != nil {
		t.Fatalf("load: %v", err)
	}

	c.MarkConversationRead(context.Background(), "A")
	first := struct {
		Conversations []types.Conversation
		Messages      []types.Message
	}{c.Conversations(), c.Messages()}

	c.MarkConversationRead(context.Background(), "A")
	second := struct {
		Conversations []types.Conversation
		Messages      []types.Message
	}{c.Conversations(), c.Messages()}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("marking read twice must equal marking once\nfirst: %+v\nsecond: %+v", first, second)
	}

	if !first.Conversations[0].LastMessage.Read {
		t.Fatal("want last message read")
	}
}

func TestMarkConversationRead_BestEffort(t *testing.T) {
	api := &fakeAPI{
		markReadFn: func(context.Context, string) error {
			return errors.New("server down")
		},
	}
	transport := newFakeTransport()
	c := newTestClient(t, api, transport)
	c.mu.Lock()
	c.conversations = []types.Conversation{
		conv("A", &types.LastMessage{ID: "m1", SenderID: "peer", Content: "hi", CreatedAt: time.Unix(1000, 0)}, "me", "peer"),
	}
	c.mu.Unlock()

	c.MarkConversationRead(context.Background(), "A")

	// Optimistic state is the floor: the failed persist rolls nothing
	// back and the broadcast still goes out.
	if !c.Conversations()[0].LastMessage.Read {
		t.Fatal("optimistic read must survive a failed persist")
	}
	if got := transport.emittedByKind(types.EventMarkRead); len(got) != 1 {
		t.Fatalf("want 1 mark-read emission, got %d", len(got))
	}
}

func TestMarkConversationRead_EmitsParticipants(t *testing.T) {
	transport := newFakeTransport()
	c := newTestClient(t, &fakeAPI{}, transport)
	c.mu.Lock()
	c.conversations = []types.Conversation{
		conv("A", &types.LastMessage{ID: "m1", SenderID: "peer", Content: "hi", CreatedAt: time.Unix(1000, 0)}, "me", "peer"),
	}
	c.mu.Unlock()

	c.MarkConversationRead(context.Background(), "A")

	emitted := transport.emittedByKind(types.EventMarkRead)
	if len(emitted) != 1 {
		t.Fatalf("want 1 mark-read emission, got %d", len(emitted))
	}

	payload, ok := emitted[0].Payload.(types.ReadEvent)
	if !ok {
		t.Fatalf("want ReadEvent payload, got %T", emitted[0].Payload)
	}
	if payload.ConversationID != "A" || payload.UserID != "me" {
		t.Fatalf("want receipt for A by me, got %+v", payload)
	}
	if want := []string{"me", "peer"}; !reflect.DeepEqual(payload.ParticipantIDs, want) {
		t.Fatalf("want participants %v, got %v", want, payload.ParticipantIDs)
	}
}

func TestApplyRemoteRead(t *testing.T) {
	base := time.Unix(1000, 0)
	api := &fakeAPI{
		messagesFn: func(_ context.Context, conversationID string, page, limit int) ([]types.Message, error) {
			return []types.Message{
				msg("m2", "A", "peer", base.Add(2*time.Second)),
				msg("m1", "A", "me", base.Add(1*time.Second)),
			}, nil
		},
	}
	c := newTestClient(t, api, newFakeTransport())
	c.mu.Lock()
	c.conversations = []types.Conversation{
		conv("A", &types.LastMessage{ID: "m1", SenderID: "me", Content: "hi", CreatedAt: base}, "me", "peer"),
		conv("B", &types.LastMessage{ID: "b1", SenderID: "peer", Content: "yo", CreatedAt: base}, "me", "peer"),
	}
	c.mu.Unlock()
	enterDetail(c, "A")

	if err := c.Load(context.Background(), "A"); err != nil {
		t.Fatalf("load: %v", err)
	}

	c.applyRemoteRead(types.ReadEvent{
		ConversationID: "A",
		UserID:         "peer",
		ParticipantIDs: []string{"me", "peer"},
	})

	conversations := c.Conversations()
	if !conversations[0].LastMessage.Read {
		t.Fatal("my last message must flip read on the peer's receipt")
	}

	for _, m := range c.Messages() {
		if m.SenderID == "me" && !m.Read {
			t.Fatalf("my message %s must flip read", m.ID)
		}
	}

	// A peer's receipt never flips a summary the peer sent.
	c.applyRemoteRead(types.ReadEvent{
		ConversationID: "B",
		UserID:         "peer",
		ParticipantIDs: []string{"me", "peer"},
	})
	if c.Conversations()[1].LastMessage.Read {
		t.Fatal("peer-sent last message must not flip on peer's own receipt")
	}

	// Receipts for conversations we are not part of are ignored.
	before := c.Conversations()
	c.applyRemoteRead(types.ReadEvent{
		ConversationID: "A",
		UserID:         "peer",
		ParticipantIDs: []string{"peer", "someone-else"},
	})
	if !reflect.DeepEqual(before, c.Conversations()) {
		t.Fatal("unrelated receipt must not change state")
	}
}
