package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"prgate/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Options configures the parts of the HTTP surface that do not come from
// the service.
type Options struct {
	GitHubWebhookSecret string
	GitLabWebhookSecret string
	SSEKeepAlive        time.Duration
}

type Handler struct {
	svc    ServiceInterface
	r      *chi.Mux
	opts   Options
	logger *slog.Logger
}

func NewHandler(s ServiceInterface, opts Options, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SSEKeepAlive <= 0 {
		opts.SSEKeepAlive = 30 * time.Second
	}
	h := &Handler{svc: s, r: chi.NewRouter(), opts: opts, logger: logger}
	h.routes()
	return h
}

func (h *Handler) Router() http.Handler { return h.r }

func (h *Handler) routes() {
	h.r.Use(middleware.RequestID)
	h.r.Use(middleware.Recoverer)
	h.r.Use(h.logRequests)

	h.r.Get("/health", h.health)
	h.r.Post("/webhooks/github", h.githubWebhook)
	h.r.Post("/webhooks/gitlab", h.gitlabWebhook)

	h.r.Group(func(r chi.Router) {
		r.Use(h.identify)

		r.Get("/roles", h.listRoles)
		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.listUsers)
			r.Post("/", h.createUser)
			r.Get("/me", h.me)
			r.Patch("/me", h.updateMe)
			r.Get("/{id}", h.getUser)
			r.Patch("/{id}", h.updateUser)
			r.Delete("/{id}", h.deleteUser)
		})

		r.Route("/pull-requests", func(r chi.Router) {
			r.Post("/", h.createPR)
			r.Get("/", h.listPRs)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getPR)
				r.Patch("/", h.updatePR)
				r.Delete("/", h.deletePR)
				r.Patch("/status", h.updateStatus)

				r.Post("/reviewers", h.assignReviewers)
				r.Delete("/reviewers/{userId}", h.removeReviewer)

				r.Get("/reviews", h.listReviews)
				r.Post("/reviews", h.createReview)
				r.Patch("/reviews/{reviewId}", h.updateReview)

				r.Get("/deployment", h.readiness)
				r.Patch("/deployment", h.updateDeployment)
				r.Post("/deployment/ready", h.markReady)
				r.Post("/deployment/deploy", h.markDeployed)

				r.Get("/comments", h.listComments)
				r.Post("/comments", h.createComment)
			})
		})

		r.Patch("/comments/{id}", h.updateComment)
		r.Delete("/comments/{id}", h.deleteComment)

		r.Get("/audit-logs", h.listAuditLogs)

		r.Get("/notifications", h.listNotifications)
		r.Patch("/notifications/read-all", h.markAllNotificationsRead)
		r.Patch("/notifications/{id}/read", h.markNotificationRead)
		r.Get("/sse/notifications", h.streamNotifications)
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, code, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	errorResp := ErrorResponse{}
	errorResp.Error.Code = code
	errorResp.Error.Message = message
	if err := json.NewEncoder(w).Encode(errorResp); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}

var errorKinds = []struct {
	err    error
	code   string
	status int
}{
	{service.ErrNotFound, "NOT_FOUND", http.StatusNotFound},
	{service.ErrForbidden, "FORBIDDEN", http.StatusForbidden},
	{service.ErrConflict, "CONFLICT", http.StatusConflict},
	{service.ErrBadRequest, "BAD_REQUEST", http.StatusBadRequest},
}

// writeServiceError maps a service error onto the HTTP error envelope.
// Unclassified errors are logged and reported without detail.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			msg := strings.TrimPrefix(err.Error(), k.err.Error()+": ")
			h.writeError(w, k.code, msg, k.status)
			return
		}
	}
	h.logger.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()))
	h.writeError(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.logger.Warn("invalid JSON in request", "error", err, "path", r.URL.Path)
		h.writeError(w, "BAD_REQUEST", "invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

func queryInt(r *http.Request, key string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return v
}
