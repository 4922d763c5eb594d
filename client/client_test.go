package client

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/parleyhq/parley/types"
)

type fakeAPI struct {
	conversationsFn      func(ctx context.Context) ([]types.Conversation, error)
	messagesFn           func(ctx context.Context, conversationID string, page, limit int) ([]types.Message, error)
	createConversationFn func(ctx context.Context, in types.CreateConversation) (types.Conversation, error)
	createMessageFn      func(ctx context.Context, conversationID, content string) (types.Message, error)
	markReadFn           func(ctx context.Context, conversationID string) error
	unreadFn             func(ctx context.Context) (int, error)

	mu                 sync.Mutex
	messagesCalls      int
	conversationsCalls int
	markReadCalls      []string
}

func (a *fakeAPI) Conversations(ctx context.Context) ([]types.Conversation, error) {
	a.mu.Lock()
	a.conversationsCalls++
	a.mu.Unlock()

	if a.conversationsFn != nil {
		return a.conversationsFn(ctx)
	}
	return nil, nil
}

func (a *fakeAPI) Messages(ctx context.Context, conversationID string, page, limit int) ([]types.Message, error) {
	a.mu.Lock()
	a.messagesCalls++
	a.mu.Unlock()

	if a.messagesFn != nil {
		return a.messagesFn(ctx, conversationID, page, limit)
	}
	return nil, nil
}

func (a *fakeAPI) CreateConversation(ctx context.Context, in types.CreateConversation) (types.Conversation, error) {
	if a.createConversationFn != nil {
		return a.createConversationFn(ctx, in)
	}
	return types.Conversation{}, nil
}

func (a *fakeAPI) CreateMessage(ctx context.Context, conversationID, content string) (types.Message, error) {
	if a.createMessageFn != nil {
		return a.createMessageFn(ctx, conversationID, content)
	}
	return types.Message{}, nil
}

func (a *fakeAPI) MarkConversationRead(ctx context.Context, conversationID string) error {
	a.mu.Lock()
	a.markReadCalls = append(a.markReadCalls, conversationID)
	a.mu.Unlock()

	if a.markReadFn != nil {
		return a.markReadFn(ctx, conversationID)
	}
	return nil
}

func (a *fakeAPI) UnreadCount(ctx context.Context) (int, error) {
	if a.unreadFn != nil {
		return a.unreadFn(ctx)
	}
	return 0, nil
}

func (a *fakeAPI) countMessagesCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.messagesCalls
}

func (a *fakeAPI) countConversationsCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conversationsCalls
}

type emittedEvent struct {
	Kind    string
	Payload any
}

type fakeTransport struct {
	mu      sync.Mutex
	emitted []emittedEvent
	joined  []string
	left    []string
	roomOps []string
	emitErr error

	events chan types.Event
	states chan ConnState
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		events: make(chan types.Event, 16),
		states: make(chan ConnState, 16),
	}
}

func (t *fakeTransport) Connect(context.Context) {}
func (t *fakeTransport) Close() error            { return nil }

func (t *fakeTransport) JoinRoom(conversationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.joined = append(t.joined, conversationID)
	t.roomOps = append(t.roomOps, "join "+conversationID)
}

func (t *fakeTransport) LeaveRoom(conversationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.left = append(t.left, conversationID)
	t.roomOps = append(t.roomOps, "leave "+conversationID)
}

func (t *fakeTransport) roomLog() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.roomOps...)
}

func (t *fakeTransport) Emit(kind string, payload any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.emitErr != nil {
		return t.emitErr
	}
	t.emitted = append(t.emitted, emittedEvent{Kind: kind, Payload: payload})
	return nil
}

func (t *fakeTransport) Events() <-chan types.Event { return t.events }
func (t *fakeTransport) States() <-chan ConnState   { return t.states }

func (t *fakeTransport) emittedByKind(kind string) []emittedEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []emittedEvent
	for _, ev := range t.emitted {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

const testPageSize = 3

func newTestClient(t *testing.T, api *fakeAPI, transport *fakeTransport) *Client {
	t.Helper()

	return New(Config{
		API:       api,
		Transport: transport,
		Identity:  types.Identity{ID: "me", Name: "Me"},
		Logger:    slog.New(slog.DiscardHandler),
		PageSize:  testPageSize,
	})
}

// enterDetail puts the client straight into detail view without the
// network side effects of Select.
func enterDetail(c *Client, conversationID string) {
	c.mu.Lock()
	c.view = ViewDetail
	c.activeConv = conversationID
	c.lastConv = conversationID
	c.roomConv = conversationID
	if c.msgsConv != conversationID {
		c.resetLogLocked(conversationID)
	}
	c.mu.Unlock()
}

func msg(id, conversationID, senderID string, at time.Time) types.Message {
	return types.Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        "msg " + id,
		CreatedAt:      at,
	}
}

func conv(id string, lastMessage *types.LastMessage, participants ...string) types.Conversation {
	out := types.Conversation{ID: id, CreatedAt: time.Unix(0, 0), LastMessage: lastMessage}
	for _, p := range participants {
		out.Participants = append(out.Participants, types.Participant{ID: p, Name: p})
	}
	return out
}

func messageIDs(msgs []types.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

// waitFor polls cond until true or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}
