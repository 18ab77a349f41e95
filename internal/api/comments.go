package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) listComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.svc.ListComments(r.Context(), chi.URLParam(r, "id"), queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, comments, http.StatusOK)
}

func (h *Handler) createComment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Body     string  `json:"body"`
		ReviewID *string `json:"review_id"`
	}
	if !h.decodeJSON(w, r, &body) {
		return
	}

	c, err := h.svc.CreateComment(r.Context(), chi.URLParam(r, "id"), callerID(r), body.Body, body.ReviewID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, c, http.StatusCreated)
}

func (h *Handler) updateComment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Body string `json:"body"`
	}
	if !h.decodeJSON(w, r, &body) {
		return
	}

	c, err := h.svc.UpdateComment(r.Context(), chi.URLParam(r, "id"), callerID(r), body.Body)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, c, http.StatusOK)
}

func (h *Handler) deleteComment(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteComment(r.Context(), chi.URLParam(r, "id"), callerID(r)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
