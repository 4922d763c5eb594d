package web

import (
	"net/http"

	"github.com/matryer/way"

	"github.com/parleyhq/parley/types"
)

func (h *handler) conversations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out, err := h.svc.Conversations(ctx, types.ListConversations{})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	if out == nil {
		out = []types.Conversation{} // non null array
	}

	h.respond(w, out, http.StatusOK)
}

func (h *handler) createConversation(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var in types.CreateConversation
	if err := decodeJSON(r, &in); err != nil {
		h.respondErr(w, errBadRequest)
		return
	}

	ctx := r.Context()
	out, err := h.svc.CreateConversation(ctx, in)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusCreated)
}

func (h *handler) conversationFromParticipants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out, err := h.svc.ConversationFromParticipants(ctx, types.RetrieveConversationFromParticipants{
		OtherUserID: way.Param(ctx, "other_user_id"),
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}

func (h *handler) markConversationRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := h.svc.MarkConversationRead(ctx, types.MarkConversationRead{
		ConversationID: way.Param(ctx, "conversation_id"),
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out, err := h.svc.UnreadCount(ctx)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}
