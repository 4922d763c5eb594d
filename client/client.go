package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/parleyhq/parley/types"
)

type Config struct {
	API       API
	Transport Transport
	Identity  types.Identity
	Logger    *slog.Logger

	// PageSize defaults to types.DefaultMessagePageSize.
	PageSize int
}

// Client owns all chat state for one authenticated session. Mutations
// come in through the public operations and through transport broadcasts
// consumed by Run; every change is announced over Subscribe.
type Client struct {
	api       API
	transport Transport
	identity  types.Identity
	logger    *slog.Logger
	pageSize  int

	subs subscribers

	mu sync.Mutex

	connState ConnState

	// conversation store
	conversations  []types.Conversation
	refreshSeq     uint64
	refreshApplied uint64
	refreshing     bool
	unread         int

	// view state
	view       ViewState
	activeConv string
	lastConv   string
	roomConv   string

	// message store for the active conversation
	msgs      []types.Message
	msgsConv  string
	loadSeq   uint64
	page      int
	hasMore   bool
	olderBusy bool
	olderDone chan struct{}

	// typing
	typists     map[string]typingEntry
	typingGen   uint64
	typingFlags map[string]*debouncedFlag

	// presence
	online map[string]bool
}

func New(cfg Config) *Client {
	pageSize := cfg.PageSize
	if pageSize == 0 {
		pageSize = types.DefaultMessagePageSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		api:         cfg.API,
		transport:   cfg.Transport,
		identity:    cfg.Identity,
		logger:      logger,
		pageSize:    pageSize,
		typists:     make(map[string]typingEntry),
		typingFlags: make(map[string]*debouncedFlag),
		online:      make(map[string]bool),
	}
}

// Subscribe returns a state-change stream and a cancel func. The channel
// is buffered; slow consumers miss events rather than block the core.
func (c *Client) Subscribe() (<-chan StateEvent, func()) {
	return c.subs.subscribe()
}

func (c *Client) ConnState() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connState
}

// Run connects the transport and consumes its events until ctx is done.
func (c *Client) Run(ctx context.Context) {
	c.transport.Connect(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-c.transport.Events():
			if !ok {
				return
			}
			c.handleTransportEvent(ev)

		case st := <-c.transport.States():
			c.handleConnState(ctx, st)
		}
	}
}

func (c *Client) handleConnState(ctx context.Context, st ConnState) {
	c.mu.Lock()
	prev := c.connState
	c.connState = st

	if st == ConnDisconnected {
		// Stale presence is worse than no presence.
		c.online = make(map[string]bool)
	}

	active := c.activeConv
	c.mu.Unlock()

	if st != prev {
		c.subs.publish(ConnectionChanged)
		if st == ConnDisconnected {
			c.subs.publish(PresenceChanged)
		}
	}

	// Events may have been missed while disconnected. Rejoining the room
	// is handled by the transport itself; state is re-fetched here.
	if st == ConnConnected && prev != ConnConnected {
		if active != "" {
			c.transport.JoinRoom(active)
		}
		go c.Refresh(ctx)
		go c.RefreshUnread(ctx)
	}
}

func (c *Client) handleTransportEvent(ev types.Event) {
	switch ev.Kind {
	case types.EventReceiveMessage, types.EventNewMessage:
		var in types.MessageEvent
		if err := ev.Decode(&in); err != nil {
			c.logger.Info("client bad message event", "err", err)
			return
		}
		c.applyIncoming(in.Message)

	case types.EventUserTyping:
		var in types.TypingEvent
		if err := ev.Decode(&in); err != nil {
			c.logger.Info("client bad typing event", "err", err)
			return
		}
		c.applyRemoteTyping(in)

	case types.EventMessagesRead:
		var in types.ReadEvent
		if err := ev.Decode(&in); err != nil {
			c.logger.Info("client bad read event", "err", err)
			return
		}
		c.applyRemoteRead(in)

	case types.EventUserOnline:
		var in types.PresenceEvent
		if err := ev.Decode(&in); err != nil {
			return
		}
		c.applyPresence(in.UserID, true)

	case types.EventUserOffline:
		var in types.PresenceEvent
		if err := ev.Decode(&in); err != nil {
			return
		}
		c.applyPresence(in.UserID, false)

	case types.EventOnlineUsers:
		var in types.OnlineUsersEvent
		if err := ev.Decode(&in); err != nil {
			return
		}
		c.applyPresenceSnapshot(in.UserIDs)

	case types.EventError:
		var in types.ErrorEvent
		if err := ev.Decode(&in); err != nil {
			return
		}
		c.logger.Info("client server error event", "message", in.Message)

	default:
		c.logger.Info("client unknown event kind", "kind", ev.Kind)
	}
}

// withRetry runs fn up to three times with a fixed one second delay.
// Background read paths use it and give up silently after that.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	const attempts = 3

	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}

		if i == attempts {
			break
		}

		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return err
}
