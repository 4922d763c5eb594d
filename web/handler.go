package web

import (
	"net/http"

	"github.com/go-kit/log"
	"github.com/matryer/way"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/parleyhq/parley/auth"
	"github.com/parleyhq/parley/realtime"
	"github.com/parleyhq/parley/service"
	"github.com/parleyhq/parley/types"
)

type handler struct {
	svc    *service.Service
	hub    *realtime.Hub
	logger log.Logger
}

// New mounts the JSON API under /api, the websocket endpoint at /api/ws
// and prometheus metrics at /metrics.
func New(svc *service.Service, hub *realtime.Hub, logger log.Logger) http.Handler {
	h := &handler{
		svc:    svc,
		hub:    hub,
		logger: logger,
	}

	api := way.NewRouter()
	api.HandleFunc("GET", "/conversations", h.conversations)
	api.HandleFunc("POST", "/conversations", h.createConversation)
	api.HandleFunc("GET", "/conversations/other/:other_user_id", h.conversationFromParticipants)
	api.HandleFunc("GET", "/conversations/:conversation_id/messages", h.messages)
	api.HandleFunc("POST", "/conversations/:conversation_id/messages", h.createMessage)
	api.HandleFunc("POST", "/conversations/:conversation_id/read", h.markConversationRead)
	api.HandleFunc("GET", "/unread-count", h.unreadCount)
	api.HandleFunc("GET", "/ws", h.ws)

	r := way.NewRouter()
	r.Handle("*", "/api...", http.StripPrefix("/api", h.withIdentity(api)))
	r.Handle("GET", "/metrics", promhttp.Handler())

	return r
}

// withIdentity picks the caller's identity off headers set by the
// authenticating gateway. Endpoints decide themselves whether an
// anonymous call is acceptable.
func (h *handler) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-Id")
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := auth.ContextWithIdentity(r.Context(), types.Identity{
			ID:     userID,
			Name:   r.Header.Get("X-User-Name"),
			Avatar: r.Header.Get("X-User-Avatar"),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
