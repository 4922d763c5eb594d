package client

import (
	"context"

	"github.com/parleyhq/parley/types"
)

// ConnState is the transport lifecycle as the rest of the core sees it.
type ConnState int

const (
	ConnDisconnected ConnState = iota
	ConnConnecting
	ConnConnected
)

func (s ConnState) String() string {
	switch s {
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Transport is the bidirectional event channel to the realtime hub. The
// core treats it purely as an event bus; WSTransport is the production
// implementation.
type Transport interface {
	// Connect starts the connection lifecycle and returns immediately.
	// Progress is reported over States.
	Connect(ctx context.Context)
	Close() error

	// JoinRoom and LeaveRoom are remembered across reconnects.
	JoinRoom(conversationID string)
	LeaveRoom(conversationID string)

	// Emit is best effort. Callers on background paths log and move on.
	Emit(kind string, payload any) error

	Events() <-chan types.Event
	States() <-chan ConnState
}
