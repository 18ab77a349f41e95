package service

import (
	"context"
	"errors"
	"time"

	"prgate/internal/authz"
	"prgate/internal/models"
	"prgate/internal/readiness"
	"prgate/internal/repository"

	"golang.org/x/sync/errgroup"
)

const msgDeploymentRole = "Only Release Manager or Admin can mark ready"

// DeploymentUpdate carries the manually editable deployment fields.
// SetCIPassed with a nil CIPassed resets CI to unknown.
type DeploymentUpdate struct {
	CIPassed    *bool
	SetCIPassed bool
	Blockers    *[]string
	Warnings *[]string
}

// evaluate loads the readiness inputs concurrently and runs the evaluator.
func (s *Service) evaluate(ctx context.Context, pr models.PR) (readiness.Report, error) {
	in := readiness.Input{PR: pr}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		in.Reviewers, err = s.repo.ListReviewers(gctx, pr.ID)
		return err
	})
	g.Go(func() error {
		var err error
		in.Reviews, err = s.repo.ListReviews(gctx, pr.ID)
		return err
	})
	g.Go(func() error {
		var err error
		in.Deployment, err = s.repo.GetDeploymentStatus(gctx, pr.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("failed to load readiness inputs", "error", err, "pr_id", pr.ID)
		return readiness.Report{}, err
	}

	if ds := in.Deployment; ds != nil && ds.DeployedByID != nil {
		u, err := s.repo.GetUserByID(ctx, *ds.DeployedByID)
		switch {
		case err == nil:
			ref := userRef(u)
			in.DeployedBy = &ref
		case errors.Is(err, repository.ErrNotFound):
			in.DeployedBy = &models.UserRef{ID: *ds.DeployedByID}
		default:
			return readiness.Report{}, err
		}
	}

	return readiness.Evaluate(in), nil
}

// Readiness returns a freshly computed report for the PR.
func (s *Service) Readiness(ctx context.Context, prID string) (readiness.Report, error) {
	pr, err := s.loadPR(ctx, prID)
	if err != nil {
		return readiness.Report{}, err
	}
	return s.evaluate(ctx, pr)
}

func (s *Service) requireDeploymentRole(ctx context.Context, callerID string, pr models.PR) error {
	_, err := s.authorize(ctx, callerID, pr, authz.ManageDeployment, msgDeploymentRole)
	return err
}

// MarkReady snapshots the readiness verdict. When ready, the PR is moved to
// READY_FOR_DEPLOYMENT and the author is notified. It never fails just
// because the PR is not ready.
func (s *Service) MarkReady(ctx context.Context, prID, callerID string) (readiness.Report, error) {
	s.logger.Info("marking PR ready", "pr_id", prID, "user_id", callerID)

	pr, err := s.loadPR(ctx, prID)
	if err != nil {
		return readiness.Report{}, err
	}
	if err := s.requireDeploymentRole(ctx, callerID, pr); err != nil {
		return readiness.Report{}, err
	}

	rep, err := s.evaluate(ctx, pr)
	if err != nil {
		return readiness.Report{}, err
	}

	ready := rep.Ready
	if _, err := s.repo.UpsertDeploymentStatus(ctx, prID, models.DeploymentPatch{Ready: &ready}); err != nil {
		s.logger.Error("failed to store readiness snapshot", "error", err, "pr_id", prID)
		return readiness.Report{}, err
	}

	if ready {
		if pr.Status != models.PRStatusReadyForDeployment {
			if pr, err = s.repo.SetPRStatus(ctx, prID, models.PRStatusReadyForDeployment); err != nil {
				s.logger.Error("failed to set PR status", "error", err, "pr_id", prID)
				return readiness.Report{}, err
			}
		}
		s.notify(ctx, pr.AuthorID, NotifyDeploymentReady, "PR ready for deployment: "+pr.Title, nil, prID)
	}

	s.recordAudit(ctx, auditEvent{
		entityType: entityPullRequest, entityID: prID, action: "mark_ready",
		userID: callerID, prID: prID, metadata: map[string]bool{"ready": ready},
	})

	s.logger.Info("mark ready evaluated", "pr_id", prID, "ready", ready)
	return s.evaluate(ctx, pr)
}

// MarkDeployed force-deploys the PR regardless of readiness.
func (s *Service) MarkDeployed(ctx context.Context, prID, callerID string) (readiness.Report, error) {
	s.logger.Info("marking PR deployed", "pr_id", prID, "user_id", callerID)

	pr, err := s.loadPR(ctx, prID)
	if err != nil {
		return readiness.Report{}, err
	}
	if err := s.requireDeploymentRole(ctx, callerID, pr); err != nil {
		return readiness.Report{}, err
	}

	updated, err := s.repo.SetPRStatus(ctx, prID, models.PRStatusDeployed)
	if err != nil {
		s.logger.Error("failed to set PR status", "error", err, "pr_id", prID)
		return readiness.Report{}, err
	}

	if err := s.stampDeployed(ctx, prID, &callerID); err != nil {
		return readiness.Report{}, err
	}

	s.recordAudit(ctx, auditEvent{
		entityType: entityPullRequest, entityID: prID, action: "deployed",
		userID: callerID, prID: prID, metadata: map[string]models.PRStatus{"from": pr.Status},
	})
	s.notify(ctx, pr.AuthorID, NotifyDeployed, "PR deployed: "+pr.Title, nil, prID)

	return s.evaluate(ctx, updated)
}

// stampDeployed records when and by whom the PR was first deployed. Later
// transitions to DEPLOYED keep the original stamp.
func (s *Service) stampDeployed(ctx context.Context, prID string, byID *string) error {
	now := time.Now().UTC()
	if _, err := s.repo.UpsertDeploymentStatus(ctx, prID, models.DeploymentPatch{
		DeployedAt:   &now,
		DeployedByID: byID,
	}); err != nil {
		s.logger.Error("failed to stamp deployment", "error", err, "pr_id", prID)
		return err
	}
	return nil
}

// UpdateDeploymentStatus merges only the supplied fields.
func (s *Service) UpdateDeploymentStatus(ctx context.Context, prID, callerID string, upd DeploymentUpdate) (readiness.Report, error) {
	s.logger.Info("updating deployment status", "pr_id", prID, "user_id", callerID)

	pr, err := s.loadPR(ctx, prID)
	if err != nil {
		return readiness.Report{}, err
	}
	if err := s.requireDeploymentRole(ctx, callerID, pr); err != nil {
		return readiness.Report{}, err
	}

	patch := models.DeploymentPatch{
		CIPassed:    upd.CIPassed,
		SetCIPassed: upd.SetCIPassed,
		Blockers:    upd.Blockers,
		Warnings:    upd.Warnings,
	}
	if _, err := s.repo.UpsertDeploymentStatus(ctx, prID, patch); err != nil {
		s.logger.Error("failed to update deployment status", "error", err, "pr_id", prID)
		return readiness.Report{}, err
	}

	meta := map[string]any{}
	if upd.SetCIPassed || upd.CIPassed != nil {
		meta["ci_passed"] = upd.CIPassed
	}
	if upd.Blockers != nil {
		meta["blockers"] = *upd.Blockers
	}
	if upd.Warnings != nil {
		meta["warnings"] = *upd.Warnings
	}
	s.recordAudit(ctx, auditEvent{
		entityType: entityPullRequest, entityID: prID, action: "deployment_status_updated",
		userID: callerID, prID: prID, metadata: meta,
	})

	return s.evaluate(ctx, pr)
}
