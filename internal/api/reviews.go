package api

import (
	"encoding/json"
	"net/http"

	"prgate/internal/models"
	"prgate/internal/service"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) listReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.svc.ListReviews(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, reviews, http.StatusOK)
}

func (h *Handler) createReview(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Decision models.ReviewDecision `json:"decision"`
		Body     *string               `json:"body"`
	}
	if !h.decodeJSON(w, r, &body) {
		return
	}

	rv, err := h.svc.CreateReview(r.Context(), chi.URLParam(r, "id"), callerID(r), body.Decision, body.Body)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, rv, http.StatusCreated)
}

func (h *Handler) updateReview(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Decision *models.ReviewDecision `json:"decision"`
		Body     *string                `json:"body"`
	}
	if !h.decodeJSON(w, r, &body) {
		return
	}

	rv, err := h.svc.UpdateReview(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "reviewId"), callerID(r), body.Decision, body.Body)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, rv, http.StatusOK)
}

func (h *Handler) readiness(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.Readiness(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, rep, http.StatusOK)
}

func (h *Handler) updateDeployment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CIPassed json.RawMessage `json:"ci_passed"`
		Blockers *[]string       `json:"blockers"`
		Warnings *[]string       `json:"warnings"`
	}
	if !h.decodeJSON(w, r, &body) {
		return
	}

	upd := service.DeploymentUpdate{Blockers: body.Blockers, Warnings: body.Warnings}
	if body.CIPassed != nil {
		// An explicit null resets CI to unknown.
		if err := json.Unmarshal(body.CIPassed, &upd.CIPassed); err != nil {
			h.writeError(w, "BAD_REQUEST", "ci_passed must be a boolean or null", http.StatusBadRequest)
			return
		}
		upd.SetCIPassed = true
	}

	rep, err := h.svc.UpdateDeploymentStatus(r.Context(), chi.URLParam(r, "id"), callerID(r), upd)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, rep, http.StatusOK)
}

func (h *Handler) markReady(w http.ResponseWriter, r *http.Request) {
	prID := chi.URLParam(r, "id")
	h.logger.Info("markReady request", "pr_id", prID)

	rep, err := h.svc.MarkReady(r.Context(), prID, callerID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, rep, http.StatusOK)
}

func (h *Handler) markDeployed(w http.ResponseWriter, r *http.Request) {
	prID := chi.URLParam(r, "id")
	h.logger.Info("markDeployed request", "pr_id", prID)

	rep, err := h.svc.MarkDeployed(r.Context(), prID, callerID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, rep, http.StatusOK)
}
