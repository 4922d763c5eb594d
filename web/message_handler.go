package web

import (
	"net/http"

	"github.com/matryer/way"

	"github.com/parleyhq/parley/types"
)

func (h *handler) messages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	in, err := parseListMessages(r.URL.Query())
	if err != nil {
		h.respondErr(w, err)
		return
	}

	in.ConversationID = way.Param(ctx, "conversation_id")
	out, err := h.svc.Messages(ctx, in)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	if out == nil {
		out = []types.Message{} // non null array
	}

	h.respond(w, out, http.StatusOK)
}

func (h *handler) createMessage(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var in types.CreateMessage
	if err := decodeJSON(r, &in); err != nil {
		h.respondErr(w, errBadRequest)
		return
	}

	ctx := r.Context()
	in.ConversationID = way.Param(ctx, "conversation_id")
	out, err := h.svc.CreateMessage(ctx, in)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusCreated)
}
