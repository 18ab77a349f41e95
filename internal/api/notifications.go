package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	unread := r.URL.Query().Get("unreadOnly") == "true"
	page, err := h.svc.ListNotifications(r.Context(), callerID(r), unread, queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, page, http.StatusOK)
}

func (h *Handler) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.MarkNotificationRead(r.Context(), callerID(r), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, map[string]bool{"success": true}, http.StatusOK)
}

func (h *Handler) markAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.MarkAllNotificationsRead(r.Context(), callerID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, map[string]int{"updated": n}, http.StatusOK)
}

// writeEvent emits one server-sent event and flushes it.
func (h *Handler) writeEvent(w http.ResponseWriter, f http.Flusher, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	f.Flush()
	return nil
}

// streamNotifications keeps an SSE connection open and forwards every
// notification published for the caller until the client goes away.
func (h *Handler) streamNotifications(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, "INTERNAL_ERROR", "streaming unsupported", http.StatusInternalServerError)
		return
	}

	userID := callerID(r)
	ch, cancel := h.svc.Subscribe(userID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := h.writeEvent(w, flusher, "connected", map[string]string{"type": "connected", "user_id": userID}); err != nil {
		return
	}
	h.logger.Info("notification stream opened", "user_id", userID)

	ticker := time.NewTicker(h.opts.SSEKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("notification stream closed", "user_id", userID)
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			if err := h.writeEvent(w, flusher, "notification", n); err != nil {
				h.logger.Warn("failed to write notification event", "error", err, "user_id", userID)
				return
			}
		case <-ticker.C:
			if err := h.writeEvent(w, flusher, "keep-alive", map[string]string{"type": "keep-alive"}); err != nil {
				return
			}
		}
	}
}
