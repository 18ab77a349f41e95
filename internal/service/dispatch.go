package service

import (
	"context"
	"encoding/json"

	"prgate/internal/models"

	"github.com/sethvargo/go-retry"
)

const (
	NotifyReviewerAssigned = "reviewer_assigned"
	NotifyReviewSubmitted  = "review_submitted"
	NotifyDeploymentReady  = "deployment_ready"
	NotifyDeployed         = "deployed"
	NotifyCommentAdded     = "comment_added"
)

const (
	entityPullRequest = "pull_request"
	entityReview      = "review"
	entityComment     = "comment"
	entityUser        = "user"
)

type auditEvent struct {
	entityType string
	entityID   string
	action     string
	userID     string
	prID       string
	metadata   any
}

// recordAudit appends an audit row. Failures are logged and swallowed so
// they never undo the mutation that triggered them.
func (s *Service) recordAudit(ctx context.Context, ev auditEvent) {
	ctx = context.WithoutCancel(ctx)

	entry := models.AuditEntry{
		ID:         s.newID(),
		EntityType: ev.entityType,
		EntityID:   ev.entityID,
		Action:     ev.action,
		UserID:     ev.userID,
	}
	if ev.prID != "" {
		prID := ev.prID
		entry.PullRequestID = &prID
	}
	if ev.metadata != nil {
		raw, err := json.Marshal(ev.metadata)
		if err != nil {
			s.logger.Error("failed to encode audit metadata", "error", err, "action", ev.action)
		} else {
			entry.Metadata = raw
		}
	}

	if err := s.repo.RecordAudit(ctx, entry); err != nil {
		s.logger.Error("failed to record audit entry",
			"error", err,
			"action", ev.action,
			"entity_type", ev.entityType,
			"entity_id", ev.entityID)
	}
}

// notify persists a notification for userID about prID and publishes it to
// live subscribers. Persisting is retried with exponential backoff; a final
// failure is logged and swallowed.
func (s *Service) notify(ctx context.Context, userID, kind, title string, body *string, prID string) {
	ctx = context.WithoutCancel(ctx)

	link := "/pull-requests/" + prID
	meta, _ := json.Marshal(map[string]string{"pull_request_id": prID})
	draft := models.Notification{
		ID:       s.newID(),
		UserID:   userID,
		Type:     kind,
		Title:    title,
		Body:     body,
		Link:     &link,
		Metadata: meta,
	}

	var (
		n       models.Notification
		attempt int
	)
	b := retry.WithMaxRetries(notifyAttempts-1, retry.NewExponential(s.notifyBackoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		var err error
		if n, err = s.repo.CreateNotification(ctx, draft); err != nil {
			s.logger.Warn("notification attempt failed", "error", err, "user_id", userID, "type", kind, "attempt", attempt)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to create notification", "error", err, "user_id", userID, "type", kind, "attempts", attempt)
		return
	}

	if s.hub != nil {
		delivered := s.hub.Publish(n)
		s.logger.Debug("notification published", "user_id", userID, "type", kind, "delivered", delivered)
	}
}

func strPtr(s string) *string { return &s }

// excerpt trims s to at most n runes.
func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
