package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/parleyhq/parley/types"
)

const (
	scopeRoom = "room"
	scopeUser = "user"
	scopeAll  = "all"
)

// Commands are the write operations the hub delegates to when clients
// push them over the socket instead of REST.
type Commands interface {
	CreateMessage(ctx context.Context, in types.CreateMessage) (types.Message, error)
	MarkConversationRead(ctx context.Context, in types.MarkConversationRead) error
}

// Hub tracks every websocket connection on this instance, grouped by user
// and by conversation room. With a fanout attached, events also reach
// clients connected to other instances.
type Hub struct {
	Logger   *slog.Logger
	Commands Commands

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
	rooms   map[string]map[*client]struct{}

	fanout *Fanout
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		Logger:  logger,
		clients: make(map[string]map[*client]struct{}),
		rooms:   make(map[string]map[*client]struct{}),
	}
}

// SetFanout wires cross-instance delivery. Call it before any client
// connects.
func (h *Hub) SetFanout(f *Fanout) {
	h.fanout = f
	f.deliver = h.deliverLocal
}

func (h *Hub) ToRoom(room string, ev types.Event) {
	h.deliverLocal(scopeRoom, room, "", ev)
	h.publish(scopeRoom, room, "", ev)
}

func (h *Hub) ToUser(userID string, ev types.Event) {
	h.deliverLocal(scopeUser, userID, "", ev)
	h.publish(scopeUser, userID, "", ev)
}

func (h *Hub) toRoomExcept(room, exceptUserID string, ev types.Event) {
	h.deliverLocal(scopeRoom, room, exceptUserID, ev)
	h.publish(scopeRoom, room, exceptUserID, ev)
}

func (h *Hub) toAllExcept(exceptUserID string, ev types.Event) {
	h.deliverLocal(scopeAll, "", exceptUserID, ev)
	h.publish(scopeAll, "", exceptUserID, ev)
}

func (h *Hub) publish(scope, target, except string, ev types.Event) {
	if h.fanout == nil {
		return
	}

	if err := h.fanout.Publish(scope, target, except, ev); err != nil {
		h.Logger.Error("realtime fanout publish", "err", err)
	}
}

func (h *Hub) deliverLocal(scope, target, except string, ev types.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		h.Logger.Error("realtime marshal event", "kind", ev.Kind, "err", err)
		return
	}

	eventsTotal.WithLabelValues(ev.Kind).Inc()

	h.mu.RLock()
	defer h.mu.RUnlock()

	switch scope {
	case scopeRoom:
		for c := range h.rooms[target] {
			if c.identity.ID == except {
				continue
			}
			h.trySend(c, b)
		}
	case scopeUser:
		for c := range h.clients[target] {
			h.trySend(c, b)
		}
	case scopeAll:
		for userID, conns := range h.clients {
			if userID == except {
				continue
			}
			for c := range conns {
				h.trySend(c, b)
			}
		}
	}
}

// trySend never blocks. A full buffer means the client stopped reading,
// so the connection is dropped instead of stalling the whole broadcast.
func (h *Hub) trySend(c *client, b []byte) {
	select {
	case c.send <- b:
	default:
		go h.removeClient(c)
	}
}

func (h *Hub) sendEvent(c *client, ev types.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		h.Logger.Error("realtime marshal event", "kind", ev.Kind, "err", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if c.closed {
		return
	}
	h.trySend(c, b)
}

func (h *Hub) addClient(c *client) {
	h.mu.Lock()
	conns, ok := h.clients[c.identity.ID]
	if !ok {
		conns = make(map[*client]struct{})
		h.clients[c.identity.ID] = conns
	}
	conns[c] = struct{}{}
	connCount := len(conns)
	first := connCount == 1

	online := make([]string, 0, len(h.clients))
	for userID := range h.clients {
		online = append(online, userID)
	}
	h.mu.Unlock()

	clientsGauge.Inc()
	h.Logger.Info("realtime client connected", "user_id", c.identity.ID, "conns", connCount)

	if snapshot, err := types.NewEvent(types.EventOnlineUsers, types.OnlineUsersEvent{UserIDs: online}); err == nil {
		h.sendEvent(c, snapshot)
	}

	if first {
		if ev, err := types.NewEvent(types.EventUserOnline, types.PresenceEvent{UserID: c.identity.ID}); err == nil {
			h.toAllExcept(c.identity.ID, ev)
		}
	}
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	if c.closed {
		h.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)

	for _, members := range h.rooms {
		delete(members, c)
	}
	for room, members := range h.rooms {
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}

	last := false
	if conns, ok := h.clients[c.identity.ID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.clients, c.identity.ID)
			last = true
		}
	}
	h.mu.Unlock()

	clientsGauge.Dec()
	h.Logger.Info("realtime client disconnected", "user_id", c.identity.ID)

	if last {
		if ev, err := types.NewEvent(types.EventUserOffline, types.PresenceEvent{UserID: c.identity.ID}); err == nil {
			h.toAllExcept(c.identity.ID, ev)
		}
	}
}

func (h *Hub) joinRoom(c *client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.closed {
		return
	}

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
}

func (h *Hub) leaveRoom(c *client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		return
	}

	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// OnlineUserIDs reports users with at least one connection on this
// instance.
func (h *Hub) OnlineUserIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(h.clients))
	for userID := range h.clients {
		out = append(out, userID)
	}
	return out
}

// Shutdown drops every connection. New registrations after a shutdown
// are not prevented; stop accepting upgrades first.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, conns := range h.clients {
		for c := range conns {
			if !c.closed {
				c.closed = true
				close(c.send)
			}
		}
	}
	h.clients = make(map[string]map[*client]struct{})
	h.rooms = make(map[string]map[*client]struct{})
	clientsGauge.Set(0)
}
