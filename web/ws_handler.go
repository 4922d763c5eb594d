package web

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/nicolasparada/go-errs"

	"github.com/parleyhq/parley/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1 << 10,
	WriteBufferSize: 1 << 10,
	// Origin checks belong to the gateway in front of this service.
	CheckOrigin: func(*http.Request) bool { return true },
}

func (h *handler) ws(w http.ResponseWriter, r *http.Request) {
	identity, loggedIn := auth.IdentityFromContext(r.Context())
	if !loggedIn {
		h.respondErr(w, errs.Unauthenticated)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		_ = h.logger.Log("err", fmt.Errorf("could not upgrade websocket: %w", err))
		return
	}

	h.hub.HandleConn(r.Context(), conn, identity)
}
