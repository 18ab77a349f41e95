package api

import (
	"net/http"
	"time"

	"prgate/internal/models"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.svc.Roles(), http.StatusOK)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Authenticate(r.Context(), callerID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, u, http.StatusOK)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("createUser request")

	var body struct {
		Email string      `json:"email"`
		Name  string      `json:"name"`
		Role  models.Role `json:"role"`
	}
	if !h.decodeJSON(w, r, &body) {
		return
	}

	u, err := h.svc.CreateUser(r.Context(), callerID(r), body.Email, body.Name, body.Role)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("user created successfully", "user_id", u.ID, "role", u.Role)
	h.writeJSON(w, u, http.StatusCreated)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	role := models.Role(r.URL.Query().Get("role"))
	page, err := h.svc.ListUsers(r.Context(), callerID(r), role, queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, page, http.StatusOK)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.GetUser(r.Context(), callerID(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, u, http.StatusOK)
}

func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name *string `json:"name"`
	}
	if !h.decodeJSON(w, r, &body) {
		return
	}

	u, err := h.svc.UpdateMe(r.Context(), callerID(r), body.Name)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, u, http.StatusOK)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email *string      `json:"email"`
		Name  *string      `json:"name"`
		Role  *models.Role `json:"role"`
	}
	if !h.decodeJSON(w, r, &body) {
		return
	}

	u, err := h.svc.UpdateUser(r.Context(), callerID(r), chi.URLParam(r, "id"), models.UserFields{
		Email: body.Email,
		Name:  body.Name,
		Role:  body.Role,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, u, http.StatusOK)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.logger.Info("deleteUser request", "target_user_id", id)

	if err := h.svc.DeleteUser(r.Context(), callerID(r), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseTime(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (h *Handler) listAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from, err := parseTime(q.Get("dateFrom"))
	if err != nil {
		h.writeError(w, "BAD_REQUEST", "dateFrom must be RFC3339", http.StatusBadRequest)
		return
	}
	to, err := parseTime(q.Get("dateTo"))
	if err != nil {
		h.writeError(w, "BAD_REQUEST", "dateTo must be RFC3339", http.StatusBadRequest)
		return
	}

	page, err := h.svc.ListAuditLogs(r.Context(), callerID(r), models.AuditFilter{
		EntityType:    q.Get("entityType"),
		EntityID:      q.Get("entityId"),
		UserID:        q.Get("userId"),
		Action:        q.Get("action"),
		PullRequestID: q.Get("pullRequestId"),
		DateFrom:      from,
		DateTo:        to,
		Page:          queryInt(r, "page"),
		Limit:         queryInt(r, "limit"),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, page, http.StatusOK)
}
