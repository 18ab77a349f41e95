package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"prgate/internal/models"
	"prgate/internal/repository"
)

const commentExcerptLen = 100

func (s *Service) loadComment(ctx context.Context, id string) (models.Comment, error) {
	c, err := s.repo.GetComment(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.Comment{}, fmt.Errorf("%w: comment not found", ErrNotFound)
		}
		s.logger.Error("failed to load comment", "error", err, "comment_id", id)
		return models.Comment{}, err
	}
	return c, nil
}

// CreateComment adds a comment and notifies the author and reviewers,
// except the commenter.
func (s *Service) CreateComment(ctx context.Context, prID, callerID, body string, reviewID *string) (models.Comment, error) {
	s.logger.Info("creating comment", "pr_id", prID, "user_id", callerID)

	if strings.TrimSpace(body) == "" {
		return models.Comment{}, fmt.Errorf("%w: body is required", ErrBadRequest)
	}

	pr, err := s.loadPR(ctx, prID)
	if err != nil {
		return models.Comment{}, err
	}
	if _, err := s.subject(ctx, callerID); err != nil {
		return models.Comment{}, err
	}
	if reviewID != nil {
		rv, err := s.repo.GetReview(ctx, *reviewID)
		if err != nil || rv.PullRequestID != prID {
			if err == nil || errors.Is(err, repository.ErrNotFound) {
				return models.Comment{}, fmt.Errorf("%w: review not found on this PR", ErrNotFound)
			}
			return models.Comment{}, err
		}
	}

	c, err := s.repo.CreateComment(ctx, models.Comment{
		ID:            s.newID(),
		PullRequestID: prID,
		ReviewID:      reviewID,
		UserID:        callerID,
		Body:          body,
	})
	if err != nil {
		s.logger.Error("failed to create comment", "error", err, "pr_id", prID)
		return models.Comment{}, err
	}

	s.recordAudit(ctx, auditEvent{
		entityType: entityComment, entityID: c.ID, action: "created", userID: callerID, prID: prID,
	})

	reviewers, err := s.repo.ListReviewers(ctx, prID)
	if err != nil {
		s.logger.Error("failed to load reviewers for comment notification", "error", err, "pr_id", prID)
	}
	recipients := make([]string, 0, len(reviewers)+1)
	recipients = append(recipients, pr.AuthorID)
	for _, r := range reviewers {
		recipients = append(recipients, r.UserID)
	}
	text := excerpt(body, commentExcerptLen)
	for _, uid := range dedupe(recipients) {
		if uid == callerID {
			continue
		}
		s.notify(ctx, uid, NotifyCommentAdded, "New comment on PR: "+pr.Title, strPtr(text), prID)
	}

	return c, nil
}

// ListComments pages a PR's comments oldest first, 50 per page by default.
func (s *Service) ListComments(ctx context.Context, prID string, page, limit int) (models.Page[models.Comment], error) {
	if _, err := s.loadPR(ctx, prID); err != nil {
		return models.Page[models.Comment]{}, err
	}
	if limit < 1 {
		limit = commentPageLimit
	}
	page, limit = normalizePage(page, limit)

	comments, total, err := s.repo.ListComments(ctx, prID, page, limit)
	if err != nil {
		s.logger.Error("failed to list comments", "error", err, "pr_id", prID)
		return models.Page[models.Comment]{}, err
	}
	return models.Page[models.Comment]{Data: comments, Total: total, Page: page, Limit: limit}, nil
}

// UpdateComment is allowed for the comment's author only.
func (s *Service) UpdateComment(ctx context.Context, commentID, callerID, body string) (models.Comment, error) {
	if strings.TrimSpace(body) == "" {
		return models.Comment{}, fmt.Errorf("%w: body is required", ErrBadRequest)
	}

	c, err := s.loadComment(ctx, commentID)
	if err != nil {
		return models.Comment{}, err
	}
	if c.UserID != callerID {
		return models.Comment{}, fmt.Errorf("%w: only the comment author can edit it", ErrForbidden)
	}

	updated, err := s.repo.UpdateComment(ctx, commentID, body)
	if err != nil {
		s.logger.Error("failed to update comment", "error", err, "comment_id", commentID)
		return models.Comment{}, err
	}

	s.recordAudit(ctx, auditEvent{
		entityType: entityComment, entityID: commentID, action: "updated", userID: callerID, prID: c.PullRequestID,
	})
	return updated, nil
}

// DeleteComment is allowed for the comment's author or an admin.
func (s *Service) DeleteComment(ctx context.Context, commentID, callerID string) error {
	c, err := s.loadComment(ctx, commentID)
	if err != nil {
		return err
	}
	sub, err := s.subject(ctx, callerID)
	if err != nil {
		return err
	}
	if c.UserID != callerID && !sub.IsAdmin() {
		return fmt.Errorf("%w: only the comment author or an admin can delete it", ErrForbidden)
	}

	if err := s.repo.DeleteComment(ctx, commentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: comment not found", ErrNotFound)
		}
		s.logger.Error("failed to delete comment", "error", err, "comment_id", commentID)
		return err
	}

	s.recordAudit(ctx, auditEvent{
		entityType: entityComment, entityID: commentID, action: "deleted", userID: callerID, prID: c.PullRequestID,
	})
	return nil
}
