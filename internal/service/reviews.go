package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"prgate/internal/authz"
	"prgate/internal/models"
	"prgate/internal/repository"
)

const msgAuthorApproval = "PR author cannot approve their own PR"

// CreateReview records the caller's decision. The author-approval ban is
// checked before anything else and regardless of role.
func (s *Service) CreateReview(ctx context.Context, prID, callerID string, decision models.ReviewDecision, body *string) (models.Review, error) {
	s.logger.Info("submitting review", "pr_id", prID, "user_id", callerID, "decision", decision)

	if !decision.Valid() {
		return models.Review{}, fmt.Errorf("%w: unknown decision %q", ErrBadRequest, decision)
	}

	pr, err := s.loadPR(ctx, prID)
	if err != nil {
		return models.Review{}, err
	}
	if !authz.CanApprove(pr.AuthorID, callerID, decision) {
		s.logger.Warn("author attempted self-approval", "pr_id", prID, "user_id", callerID)
		return models.Review{}, fmt.Errorf("%w: %s", ErrForbidden, msgAuthorApproval)
	}
	if _, err := s.authorize(ctx, callerID, pr, authz.SubmitReview, "Only assigned reviewers can submit a review"); err != nil {
		return models.Review{}, err
	}

	rv, err := s.repo.CreateReview(ctx, models.Review{
		ID:            s.newID(),
		PullRequestID: prID,
		UserID:        callerID,
		Decision:      decision,
		Body:          body,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return models.Review{}, fmt.Errorf("%w: You have already submitted a review; use update", ErrConflict)
		}
		s.logger.Error("failed to create review", "error", err, "pr_id", prID, "user_id", callerID)
		return models.Review{}, err
	}

	s.recordAudit(ctx, auditEvent{
		entityType: entityReview, entityID: rv.ID, action: strings.ToLower(string(decision)),
		userID: callerID, prID: prID, metadata: map[string]models.ReviewDecision{"decision": decision},
	})
	if pr.AuthorID != callerID {
		s.notify(ctx, pr.AuthorID, NotifyReviewSubmitted,
			fmt.Sprintf("Review %s: %s", decision, pr.Title), body, prID)
	}

	s.logger.Info("review submitted", "pr_id", prID, "review_id", rv.ID)
	return rv, nil
}

// UpdateReview lets a reviewer revise their own decision or body.
func (s *Service) UpdateReview(ctx context.Context, prID, reviewID, callerID string, decision *models.ReviewDecision, body *string) (models.Review, error) {
	s.logger.Info("updating review", "pr_id", prID, "review_id", reviewID, "user_id", callerID)

	rv, err := s.repo.GetReview(ctx, reviewID)
	if err != nil || rv.PullRequestID != prID {
		if err == nil || errors.Is(err, repository.ErrNotFound) {
			return models.Review{}, fmt.Errorf("%w: review not found", ErrNotFound)
		}
		s.logger.Error("failed to load review", "error", err, "review_id", reviewID)
		return models.Review{}, err
	}
	if rv.UserID != callerID {
		return models.Review{}, fmt.Errorf("%w: only the review author can update it", ErrForbidden)
	}

	if decision != nil {
		if !decision.Valid() {
			return models.Review{}, fmt.Errorf("%w: unknown decision %q", ErrBadRequest, *decision)
		}
		rv.Decision = *decision
	}
	if body != nil {
		rv.Body = body
	}

	pr, err := s.loadPR(ctx, prID)
	if err != nil {
		return models.Review{}, err
	}
	if !authz.CanApprove(pr.AuthorID, callerID, rv.Decision) {
		s.logger.Warn("author attempted self-approval", "pr_id", prID, "user_id", callerID)
		return models.Review{}, fmt.Errorf("%w: %s", ErrForbidden, msgAuthorApproval)
	}

	updated, err := s.repo.UpdateReview(ctx, rv)
	if err != nil {
		s.logger.Error("failed to update review", "error", err, "review_id", reviewID)
		return models.Review{}, err
	}

	s.recordAudit(ctx, auditEvent{
		entityType: entityReview, entityID: reviewID, action: "updated",
		userID: callerID, prID: prID, metadata: map[string]models.ReviewDecision{"decision": updated.Decision},
	})
	return updated, nil
}

func (s *Service) ListReviews(ctx context.Context, prID string) ([]models.Review, error) {
	if _, err := s.loadPR(ctx, prID); err != nil {
		return nil, err
	}
	reviews, err := s.repo.ListReviews(ctx, prID)
	if err != nil {
		s.logger.Error("failed to list reviews", "error", err, "pr_id", prID)
		return nil, err
	}
	return reviews, nil
}
