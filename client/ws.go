package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hako/durafmt"

	"github.com/parleyhq/parley/types"
)

const (
	maxConnectAttempts = 5
	minReconnectDelay  = time.Second
	maxReconnectDelay  = 5 * time.Second
	connectBudget      = 20 * time.Second

	transportEventBuffer = 64
	transportStateBuffer = 8
)

// WSTransport maintains one websocket connection to the hub, reconnecting
// on failure. Connection problems are logged and reported as state
// transitions; they never reach UI paths as errors.
type WSTransport struct {
	URL      string
	Identity types.Identity
	Logger   *slog.Logger

	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer

	events chan types.Event
	states chan ConnState

	mu      sync.Mutex
	conn    *websocket.Conn
	rooms   map[string]struct{}
	closed  bool
	running bool
}

func NewWSTransport(rawURL string, identity types.Identity, logger *slog.Logger) *WSTransport {
	return &WSTransport{
		URL:      rawURL,
		Identity: identity,
		Logger:   logger,
		events:   make(chan types.Event, transportEventBuffer),
		states:   make(chan ConnState, transportStateBuffer),
		rooms:    make(map[string]struct{}),
	}
}

func (t *WSTransport) Events() <-chan types.Event { return t.events }
func (t *WSTransport) States() <-chan ConnState   { return t.states }

func (t *WSTransport) Connect(ctx context.Context) {
	t.mu.Lock()
	if t.running || t.closed {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.mu.Unlock()

	go t.run(ctx)
}

func (t *WSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}

func (t *WSTransport) JoinRoom(conversationID string) {
	t.mu.Lock()
	t.rooms[conversationID] = struct{}{}
	t.mu.Unlock()

	if err := t.Emit(types.EventJoinRoom, types.RoomEvent{ConversationID: conversationID}); err != nil {
		t.Logger.Info("transport join room deferred", "conversation_id", conversationID, "err", err)
	}
}

func (t *WSTransport) LeaveRoom(conversationID string) {
	t.mu.Lock()
	delete(t.rooms, conversationID)
	t.mu.Unlock()

	if err := t.Emit(types.EventLeaveRoom, types.RoomEvent{ConversationID: conversationID}); err != nil {
		t.Logger.Info("transport leave room skipped", "conversation_id", conversationID, "err", err)
	}
}

func (t *WSTransport) Emit(kind string, payload any) error {
	ev, err := types.NewEvent(kind, payload)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return errors.New("transport not connected")
	}

	if err := t.conn.WriteJSON(ev); err != nil {
		return fmt.Errorf("write %s event: %w", kind, err)
	}
	return nil
}

func (t *WSTransport) run(ctx context.Context) {
	immediate := false

	for {
		if t.isClosed() || ctx.Err() != nil {
			t.setState(ConnDisconnected)
			return
		}

		t.setState(ConnConnecting)

		conn, err := t.dial(ctx, immediate)
		if err != nil {
			// Terminal until Connect is called again.
			t.Logger.Info("transport gave up connecting", "err", err)
			t.setState(ConnDisconnected)
			t.mu.Lock()
			t.running = false
			t.mu.Unlock()
			return
		}

		t.mu.Lock()
		t.conn = conn
		rooms := make([]string, 0, len(t.rooms))
		for room := range t.rooms {
			rooms = append(rooms, room)
		}
		t.mu.Unlock()

		t.setState(ConnConnected)

		for _, room := range rooms {
			if err := t.Emit(types.EventJoinRoom, types.RoomEvent{ConversationID: room}); err != nil {
				t.Logger.Info("transport rejoin room failed", "conversation_id", room, "err", err)
			}
		}

		serverClosed := t.readLoop(conn)

		t.mu.Lock()
		t.conn = nil
		t.mu.Unlock()

		// A close frame from the server means it wants us gone now, not
		// that the network is flaky. Retry right away; a dropped
		// connection waits out the minimum delay first.
		if pause := redialPause(serverClosed); pause > 0 {
			select {
			case <-time.After(pause):
			case <-ctx.Done():
			}
		}
		immediate = serverClosed
	}
}

func (t *WSTransport) dial(ctx context.Context, immediate bool) (*websocket.Conn, error) {
	dialer := t.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	header := http.Header{}
	header.Set("X-User-Id", t.Identity.ID)
	header.Set("X-User-Name", t.Identity.Name)
	header.Set("X-User-Avatar", t.Identity.Avatar)

	ctx, cancel := context.WithTimeout(ctx, connectBudget)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		conn, _, err := dialer.DialContext(ctx, t.URL, header)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		if attempt == maxConnectAttempts {
			break
		}

		delay := minReconnectDelay << (attempt - 1)
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
		if immediate && attempt == 1 {
			delay = 0
		}

		t.Logger.Info("transport connect failed",
			"attempt", attempt,
			"retry_in", durafmt.Parse(delay).String(),
			"err", err,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("connect budget exhausted: %w", lastErr)
		}
	}

	return nil, fmt.Errorf("connect attempts exhausted: %w", lastErr)
}

// readLoop reports whether the connection ended with a close frame from
// the server.
func (t *WSTransport) readLoop(conn *websocket.Conn) bool {
	for {
		var ev types.Event
		if err := conn.ReadJSON(&ev); err != nil {
			conn.Close()

			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				t.Logger.Info("transport closed by server", "code", closeErr.Code)
				return true
			}

			if !t.isClosed() {
				t.Logger.Info("transport read failed", "err", err)
			}
			return false
		}

		t.events <- ev
	}
}

// redialPause is how long to wait before dialing again after a
// connection ended. Only a server-initiated close earns an immediate
// redial.
func redialPause(serverClosed bool) time.Duration {
	if serverClosed {
		return 0
	}
	return minReconnectDelay
}

func (t *WSTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *WSTransport) setState(s ConnState) {
	select {
	case t.states <- s:
	default:
		t.Logger.Info("transport state dropped", "state", s.String())
	}
}
