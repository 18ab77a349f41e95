package api

import (
	"net/http"

	"prgate/internal/models"
	"prgate/internal/service"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) createPR(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("createPR request")

	var body struct {
		Title          string                 `json:"title"`
		Description    string                 `json:"description"`
		RepositoryLink string                 `json:"repository_link"`
		SourceBranch   string                 `json:"source_branch"`
		TargetBranch   string                 `json:"target_branch"`
		Checklist      []models.ChecklistItem `json:"checklist"`
	}
	if !h.decodeJSON(w, r, &body) {
		return
	}

	pr, err := h.svc.CreatePR(r.Context(), callerID(r), service.CreatePRInput{
		Title:          body.Title,
		Description:    body.Description,
		RepositoryLink: body.RepositoryLink,
		SourceBranch:   body.SourceBranch,
		TargetBranch:   body.TargetBranch,
		Checklist:      body.Checklist,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, pr, http.StatusCreated)
}

func (h *Handler) listPRs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.svc.ListPRs(r.Context(), models.PRFilter{
		Status:     models.PRStatus(q.Get("status")),
		AuthorID:   q.Get("authorId"),
		ReviewerID: q.Get("reviewerId"),
		Page:       queryInt(r, "page"),
		Limit:      queryInt(r, "limit"),
		SortBy:     q.Get("sort"),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.Debug("listed PRs", "total", page.Total)
	h.writeJSON(w, page, http.StatusOK)
}

func (h *Handler) getPR(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.GetPR(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, d, http.StatusOK)
}

func (h *Handler) updatePR(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title          *string                 `json:"title"`
		Description    *string                 `json:"description"`
		RepositoryLink *string                 `json:"repository_link"`
		SourceBranch   *string                 `json:"source_branch"`
		TargetBranch   *string                 `json:"target_branch"`
		Checklist      *[]models.ChecklistItem `json:"checklist"`
		Version        *int                    `json:"version"`
	}
	if !h.decodeJSON(w, r, &body) {
		return
	}
	if body.Version == nil {
		h.writeError(w, "BAD_REQUEST", "version is required", http.StatusBadRequest)
		return
	}

	fields := models.PRFields{
		Title:          body.Title,
		Description:    body.Description,
		RepositoryLink: body.RepositoryLink,
		SourceBranch:   body.SourceBranch,
		TargetBranch:   body.TargetBranch,
	}
	if body.Checklist != nil {
		fields.Checklist = *body.Checklist
		fields.SetChecklist = true
	}

	pr, err := h.svc.UpdatePR(r.Context(), chi.URLParam(r, "id"), callerID(r), fields, *body.Version)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, pr, http.StatusOK)
}

func (h *Handler) deletePR(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeletePR(r.Context(), chi.URLParam(r, "id"), callerID(r)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status models.PRStatus `json:"status"`
	}
	if !h.decodeJSON(w, r, &body) {
		return
	}

	pr, err := h.svc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), callerID(r), body.Status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, pr, http.StatusOK)
}

func (h *Handler) assignReviewers(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserIDs []string `json:"user_ids"`
	}
	if !h.decodeJSON(w, r, &body) {
		return
	}

	reviewers, err := h.svc.AssignReviewers(r.Context(), chi.URLParam(r, "id"), callerID(r), body.UserIDs)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, reviewers, http.StatusOK)
}

func (h *Handler) removeReviewer(w http.ResponseWriter, r *http.Request) {
	err := h.svc.RemoveReviewer(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "userId"), callerID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
