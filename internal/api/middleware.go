package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"prgate/internal/service"

	"github.com/go-chi/chi/v5/middleware"
)

const userIDHeader = "X-User-ID"

type callerKey struct{}

func callerID(r *http.Request) string {
	id, _ := r.Context().Value(callerKey{}).(string)
	return id
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// identify resolves X-User-ID into a known user and stores its id on the
// request context.
func (h *Handler) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(userIDHeader)
		if id == "" {
			h.writeError(w, "UNAUTHORIZED", "missing "+userIDHeader+" header", http.StatusUnauthorized)
			return
		}
		u, err := h.svc.Authenticate(r.Context(), id)
		if errors.Is(err, service.ErrNotFound) {
			h.logger.Warn("authentication failed", "user_id", id)
			h.writeError(w, "UNAUTHORIZED", "unknown user", http.StatusUnauthorized)
			return
		}
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), callerKey{}, u.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
