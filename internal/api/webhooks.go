package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"net/http"
)

const maxWebhookBody = 1 << 20

func (h *Handler) readWebhook(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.writeError(w, "BAD_REQUEST", "unreadable payload", http.StatusBadRequest)
		return nil, false
	}
	return payload, true
}

// validGitHubSignature checks X-Hub-Signature-256 against the shared secret.
func validGitHubSignature(secret string, payload []byte, header string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(header))
}

func (h *Handler) githubWebhook(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.readWebhook(w, r)
	if !ok {
		return
	}
	if s := h.opts.GitHubWebhookSecret; s != "" && !validGitHubSignature(s, payload, r.Header.Get("X-Hub-Signature-256")) {
		h.logger.Warn("github webhook signature mismatch", "event", r.Header.Get("X-GitHub-Event"))
		h.writeError(w, "UNAUTHORIZED", "invalid signature", http.StatusUnauthorized)
		return
	}

	res, err := h.svc.HandleGitHubWebhook(r.Context(), payload)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, res, http.StatusOK)
}

func (h *Handler) gitlabWebhook(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.readWebhook(w, r)
	if !ok {
		return
	}
	if s := h.opts.GitLabWebhookSecret; s != "" &&
		subtle.ConstantTimeCompare([]byte(s), []byte(r.Header.Get("X-Gitlab-Token"))) != 1 {
		h.logger.Warn("gitlab webhook token mismatch")
		h.writeError(w, "UNAUTHORIZED", "invalid token", http.StatusUnauthorized)
		return
	}

	res, err := h.svc.HandleGitLabWebhook(r.Context(), payload)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, res, http.StatusOK)
}
