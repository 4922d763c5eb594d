package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parleyhq/parley/auth"
	"github.com/parleyhq/parley/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 12
	sendBufferSize = 64
)

type client struct {
	hub      *Hub
	conn     *websocket.Conn
	identity types.Identity
	send     chan []byte

	// closed is guarded by hub.mu.
	closed bool
}

// HandleConn owns conn until the connection dies. Call it from the
// websocket HTTP handler after the upgrade; it blocks reading.
func (h *Hub) HandleConn(ctx context.Context, conn *websocket.Conn, identity types.Identity) {
	c := &client{
		hub:      h,
		conn:     conn,
		identity: identity,
		send:     make(chan []byte, sendBufferSize),
	}

	h.addClient(c)

	go c.writePump()
	c.readPump(ctx)
}

func (c *client) readPump(ctx context.Context) {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx = auth.ContextWithIdentity(ctx, c.identity)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.Logger.Info("realtime unexpected close", "user_id", c.identity.ID, "err", err)
			}
			return
		}

		var ev types.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.hub.Logger.Info("realtime bad event", "user_id", c.identity.ID, "err", err)
			continue
		}

		c.handleEvent(ctx, ev)
	}
}

func (c *client) handleEvent(ctx context.Context, ev types.Event) {
	switch ev.Kind {
	case types.EventJoinRoom:
		var in types.RoomEvent
		if err := ev.Decode(&in); err != nil || in.ConversationID == "" {
			return
		}
		c.hub.joinRoom(c, in.ConversationID)

	case types.EventLeaveRoom:
		var in types.RoomEvent
		if err := ev.Decode(&in); err != nil || in.ConversationID == "" {
			return
		}
		c.hub.leaveRoom(c, in.ConversationID)

	case types.EventTyping:
		var in types.TypingEvent
		if err := ev.Decode(&in); err != nil || in.ConversationID == "" {
			return
		}
		out, err := types.NewEvent(types.EventUserTyping, types.TypingEvent{
			ConversationID: in.ConversationID,
			UserID:         c.identity.ID,
			Name:           c.identity.Name,
			Typing:         in.Typing,
		})
		if err != nil {
			return
		}
		c.hub.toRoomExcept(in.ConversationID, c.identity.ID, out)

	case types.EventSendMessage:
		var in types.SendMessageEvent
		if err := ev.Decode(&in); err != nil {
			return
		}
		createMessage := types.CreateMessage{
			ConversationID: in.ConversationID,
			Content:        in.Content,
		}
		if _, err := c.hub.Commands.CreateMessage(ctx, createMessage); err != nil {
			c.sendError(err)
		}

	case types.EventMarkRead:
		var in types.RoomEvent
		if err := ev.Decode(&in); err != nil {
			return
		}
		markRead := types.MarkConversationRead{ConversationID: in.ConversationID}
		if err := c.hub.Commands.MarkConversationRead(ctx, markRead); err != nil {
			c.sendError(err)
		}

	default:
		c.hub.Logger.Info("realtime unknown event kind", "user_id", c.identity.ID, "kind", ev.Kind)
	}
}

func (c *client) sendError(err error) {
	ev, merr := types.NewEvent(types.EventError, types.ErrorEvent{Message: err.Error()})
	if merr != nil {
		return
	}
	c.hub.sendEvent(c, ev)
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case b, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
