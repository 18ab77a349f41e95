package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"prgate/internal/authz"
	"prgate/internal/models"
	"prgate/internal/repository"

	"golang.org/x/sync/errgroup"
)

type CreatePRInput struct {
	Title          string
	Description    string
	RepositoryLink string
	SourceBranch   string
	TargetBranch   string
	Checklist      []models.ChecklistItem
}

func validateChecklist(items []models.ChecklistItem) error {
	for i, it := range items {
		if strings.TrimSpace(it.Label) == "" {
			return fmt.Errorf("%w: checklist item %d has empty label", ErrBadRequest, i)
		}
	}
	return nil
}

func (s *Service) CreatePR(ctx context.Context, callerID string, in CreatePRInput) (models.PR, error) {
	s.logger.Info("creating PR", "title", in.Title, "author_id", callerID)

	if strings.TrimSpace(in.Title) == "" {
		return models.PR{}, fmt.Errorf("%w: title is required", ErrBadRequest)
	}
	if err := validateChecklist(in.Checklist); err != nil {
		return models.PR{}, err
	}

	sub, err := s.subject(ctx, callerID)
	if err != nil {
		return models.PR{}, err
	}
	if !authz.CreatePR(sub, authz.Resource{}) {
		s.logger.Warn("permission denied", "user_id", callerID, "reason", "submit_pr")
		return models.PR{}, fmt.Errorf("%w: role %s cannot submit PRs", ErrForbidden, sub.Role)
	}

	checklist := in.Checklist
	if checklist == nil {
		checklist = []models.ChecklistItem{}
	}
	pr, err := s.repo.CreatePR(ctx, models.PR{
		ID:             s.newID(),
		Title:          in.Title,
		Description:    in.Description,
		RepositoryLink: in.RepositoryLink,
		SourceBranch:   in.SourceBranch,
		TargetBranch:   in.TargetBranch,
		Status:         models.PRStatusOpen,
		Checklist:      checklist,
		AuthorID:       callerID,
	})
	if err != nil {
		s.logger.Error("failed to create PR", "error", err, "title", in.Title, "author_id", callerID)
		return models.PR{}, err
	}

	s.recordAudit(ctx, auditEvent{
		entityType: entityPullRequest, entityID: pr.ID, action: "created",
		userID: callerID, prID: pr.ID, metadata: map[string]string{"title": pr.Title},
	})

	s.logger.Info("PR created successfully", "pr_id", pr.ID)
	return pr, nil
}

// GetPR returns a PR with its author, reviewers, reviews, comments and
// deployment status loaded concurrently.
func (s *Service) GetPR(ctx context.Context, id string) (models.PRDetails, error) {
	pr, err := s.loadPR(ctx, id)
	if err != nil {
		return models.PRDetails{}, err
	}

	d := models.PRDetails{PR: pr}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		author, err := s.repo.GetUserByID(gctx, pr.AuthorID)
		if err != nil {
			return fmt.Errorf("load author: %w", err)
		}
		d.Author = userRef(author)
		return nil
	})
	g.Go(func() error {
		var err error
		d.Reviewers, err = s.repo.ListReviewers(gctx, pr.ID)
		return err
	})
	g.Go(func() error {
		var err error
		d.Reviews, err = s.repo.ListReviews(gctx, pr.ID)
		return err
	})
	g.Go(func() error {
		var err error
		d.DeploymentStatus, err = s.repo.GetDeploymentStatus(gctx, pr.ID)
		return err
	})
	g.Go(func() error {
		var err error
		d.Comments, _, err = s.repo.ListComments(gctx, pr.ID, 0, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("failed to load PR details", "error", err, "pr_id", id)
		return models.PRDetails{}, err
	}
	return d, nil
}

func (s *Service) ListPRs(ctx context.Context, f models.PRFilter) (models.Page[models.PR], error) {
	if f.Status != "" && !f.Status.Valid() {
		return models.Page[models.PR]{}, fmt.Errorf("%w: unknown status %q", ErrBadRequest, f.Status)
	}
	f.Page, f.Limit = normalizePage(f.Page, f.Limit)

	prs, total, err := s.repo.ListPRs(ctx, f)
	if err != nil {
		s.logger.Error("failed to list PRs", "error", err)
		return models.Page[models.PR]{}, err
	}
	return models.Page[models.PR]{Data: prs, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

// UpdatePR applies fields if version still matches the stored one. An empty
// field set is a no-op and does not bump the version.
func (s *Service) UpdatePR(ctx context.Context, prID, callerID string, fields models.PRFields, version int) (models.PR, error) {
	s.logger.Info("updating PR", "pr_id", prID, "user_id", callerID, "version", version)

	if fields.Title != nil && strings.TrimSpace(*fields.Title) == "" {
		return models.PR{}, fmt.Errorf("%w: title cannot be empty", ErrBadRequest)
	}
	if fields.SetChecklist {
		if err := validateChecklist(fields.Checklist); err != nil {
			return models.PR{}, err
		}
	}

	pr, err := s.loadPR(ctx, prID)
	if err != nil {
		return models.PR{}, err
	}
	if _, err := s.authorize(ctx, callerID, pr, authz.EditPR, "only the author or an admin can edit this PR"); err != nil {
		return models.PR{}, err
	}

	if fields.Empty() {
		if pr.Version != version {
			return models.PR{}, fmt.Errorf("%w: PR was updated by someone else", ErrConflict)
		}
		return pr, nil
	}

	updated, err := s.repo.UpdatePR(ctx, prID, version, fields)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrVersionConflict):
			s.logger.Warn("version conflict on PR update", "pr_id", prID, "version", version)
			return models.PR{}, fmt.Errorf("%w: PR was updated by someone else", ErrConflict)
		case errors.Is(err, repository.ErrNotFound):
			return models.PR{}, fmt.Errorf("%w: pull request not found", ErrNotFound)
		}
		s.logger.Error("failed to update PR", "error", err, "pr_id", prID)
		return models.PR{}, err
	}

	s.recordAudit(ctx, auditEvent{
		entityType: entityPullRequest, entityID: prID, action: "updated",
		userID: callerID, prID: prID, metadata: map[string]int{"version": updated.Version},
	})

	s.logger.Info("PR updated successfully", "pr_id", prID, "version", updated.Version)
	return updated, nil
}

func (s *Service) DeletePR(ctx context.Context, prID, callerID string) error {
	s.logger.Info("deleting PR", "pr_id", prID, "user_id", callerID)

	pr, err := s.loadPR(ctx, prID)
	if err != nil {
		return err
	}
	if _, err := s.authorize(ctx, callerID, pr, authz.DeletePR, "only the author can delete an OPEN PR"); err != nil {
		return err
	}

	if err := s.repo.DeletePR(ctx, prID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: pull request not found", ErrNotFound)
		}
		s.logger.Error("failed to delete PR", "error", err, "pr_id", prID)
		return err
	}

	s.recordAudit(ctx, auditEvent{
		entityType: entityPullRequest, entityID: prID, action: "deleted",
		userID: callerID, prID: prID, metadata: map[string]string{"title": pr.Title, "status": string(pr.Status)},
	})
	return nil
}

// UpdateStatus moves the PR to any known status. Adjacency is not enforced.
func (s *Service) UpdateStatus(ctx context.Context, prID, callerID string, status models.PRStatus) (models.PR, error) {
	s.logger.Info("updating PR status", "pr_id", prID, "user_id", callerID, "status", status)

	if !status.Valid() {
		return models.PR{}, fmt.Errorf("%w: unknown status %q", ErrConflict, status)
	}

	pr, err := s.loadPR(ctx, prID)
	if err != nil {
		return models.PR{}, err
	}
	if _, err := s.authorize(ctx, callerID, pr, authz.ChangeStatus, "only the author, an assigned reviewer or an admin can change status"); err != nil {
		return models.PR{}, err
	}

	updated, err := s.repo.SetPRStatus(ctx, prID, status)
	if err != nil {
		s.logger.Error("failed to set PR status", "error", err, "pr_id", prID)
		return models.PR{}, err
	}
	if status == models.PRStatusDeployed {
		if err := s.stampDeployed(ctx, prID, &callerID); err != nil {
			return models.PR{}, err
		}
	}

	s.recordAudit(ctx, auditEvent{
		entityType: entityPullRequest, entityID: prID, action: "status_change",
		userID: callerID, prID: prID,
		metadata: map[string]models.PRStatus{"from": pr.Status, "to": status},
	})
	return updated, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// AssignReviewers adds reviewers idempotently. Only newly added reviewers
// are notified.
func (s *Service) AssignReviewers(ctx context.Context, prID, callerID string, userIDs []string) ([]models.Reviewer, error) {
	s.logger.Info("assigning reviewers", "pr_id", prID, "user_id", callerID, "reviewer_ids", userIDs)

	ids := dedupe(userIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: user_ids is required", ErrBadRequest)
	}

	pr, err := s.loadPR(ctx, prID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, callerID, pr, authz.AssignReviewers, "role cannot assign reviewers"); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if id == callerID {
			return nil, fmt.Errorf("%w: You cannot assign yourself as a reviewer", ErrForbidden)
		}
		if id == pr.AuthorID {
			return nil, fmt.Errorf("%w: PR author cannot review their own PR", ErrForbidden)
		}
	}

	users, err := s.repo.GetUsersByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("failed to load reviewer users", "error", err, "pr_id", prID)
		return nil, err
	}
	if len(users) != len(ids) {
		known := make(map[string]struct{}, len(users))
		for _, u := range users {
			known[u.ID] = struct{}{}
		}
		for _, id := range ids {
			if _, ok := known[id]; !ok {
				return nil, fmt.Errorf("%w: user %s not found", ErrNotFound, id)
			}
		}
	}

	added, err := s.repo.AddReviewers(ctx, prID, ids)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		s.logger.Error("failed to assign reviewers", "error", err, "pr_id", prID, "reviewer_ids", ids)
		return nil, err
	}

	for _, id := range added {
		s.notify(ctx, id, NotifyReviewerAssigned, "Reviewer assigned",
			strPtr("You were assigned to review PR: "+pr.Title), prID)
	}
	s.recordAudit(ctx, auditEvent{
		entityType: entityPullRequest, entityID: prID, action: "reviewers_assigned",
		userID: callerID, prID: prID, metadata: map[string][]string{"user_ids": added},
	})

	reviewers, err := s.repo.ListReviewers(ctx, prID)
	if err != nil {
		s.logger.Error("failed to load reviewers", "error", err, "pr_id", prID)
		return nil, err
	}

	s.logger.Info("reviewers assigned", "pr_id", prID, "added", added)
	return reviewers, nil
}

func (s *Service) RemoveReviewer(ctx context.Context, prID, reviewerID, callerID string) error {
	s.logger.Info("removing reviewer", "pr_id", prID, "reviewer_id", reviewerID, "user_id", callerID)

	pr, err := s.loadPR(ctx, prID)
	if err != nil {
		return err
	}
	if _, err := s.authorize(ctx, callerID, pr, authz.RemoveReviewer, "only the author or an admin can remove reviewers"); err != nil {
		return err
	}

	if err := s.repo.RemoveReviewer(ctx, prID, reviewerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: reviewer is not assigned to this PR", ErrNotFound)
		}
		s.logger.Error("failed to remove reviewer", "error", err, "pr_id", prID, "reviewer_id", reviewerID)
		return err
	}

	s.recordAudit(ctx, auditEvent{
		entityType: entityPullRequest, entityID: prID, action: "reviewer_removed",
		userID: callerID, prID: prID, metadata: map[string]string{"user_id": reviewerID},
	})
	return nil
}
