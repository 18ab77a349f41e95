package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"prgate/internal/models"
	"prgate/internal/repository"
)

// WebhookResult reports what an inbound event did. Unmatched events are
// acknowledged, never rejected.
type WebhookResult struct {
	Received      bool            `json:"received"`
	PullRequestID string          `json:"pull_request_id,omitempty"`
	Status        models.PRStatus `json:"status,omitempty"`
}

var (
	githubStates = map[string]models.PRStatus{
		"open":   models.PRStatusOpen,
		"closed": models.PRStatusDeployed,
	}
	gitlabStates = map[string]models.PRStatus{
		"opened": models.PRStatusOpen,
		"merged": models.PRStatusDeployed,
		"closed": models.PRStatusChangesRequested,
	}
)

type githubPayload struct {
	Action      string `json:"action"`
	PullRequest *struct {
		HTMLURL string `json:"html_url"`
		State   string `json:"state"`
		Title   string `json:"title"`
	} `json:"pull_request"`
	Repository *struct {
		HTMLURL string `json:"html_url"`
	} `json:"repository"`
	CheckSuite *struct {
		Conclusion string `json:"conclusion"`
	} `json:"check_suite"`
	CheckRun *struct {
		Conclusion string `json:"conclusion"`
	} `json:"check_run"`
}

type gitlabPayload struct {
	ObjectKind       string `json:"object_kind"`
	ObjectAttributes *struct {
		URL   string `json:"url"`
		State string `json:"state"`
		Title string `json:"title"`
	} `json:"object_attributes"`
}

// HandleGitHubWebhook mirrors a GitHub pull_request or check event onto the
// most recently updated PR with a matching repository link.
func (s *Service) HandleGitHubWebhook(ctx context.Context, payload []byte) (WebhookResult, error) {
	var p githubPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return WebhookResult{}, fmt.Errorf("%w: invalid github payload", ErrBadRequest)
	}

	res := WebhookResult{Received: true}
	var link, state, title string
	switch {
	case p.PullRequest != nil:
		link, state, title = p.PullRequest.HTMLURL, p.PullRequest.State, p.PullRequest.Title
	case (p.CheckSuite != nil || p.CheckRun != nil) && p.Repository != nil:
		link = p.Repository.HTMLURL
	default:
		return res, nil
	}

	pr, ok, err := s.matchPR(ctx, "github", link)
	if err != nil || !ok {
		return res, err
	}
	res.PullRequestID = pr.ID

	if pr, err = s.mirrorState(ctx, "github", pr, githubStates[state], title); err != nil {
		return res, err
	}
	res.Status = pr.Status

	if p.CheckSuite != nil || p.CheckRun != nil {
		conclusion := ""
		if p.CheckSuite != nil {
			conclusion = p.CheckSuite.Conclusion
		} else {
			conclusion = p.CheckRun.Conclusion
		}
		if conclusion == "" {
			s.logger.Info("check event without conclusion ignored", "pr_id", pr.ID)
			return res, nil
		}
		passed := conclusion == "success"
		if _, err := s.repo.UpsertDeploymentStatus(ctx, pr.ID, models.DeploymentPatch{CIPassed: &passed}); err != nil {
			s.logger.Error("failed to store CI result", "error", err, "pr_id", pr.ID)
			return res, err
		}
		s.recordAudit(ctx, auditEvent{
			entityType: entityPullRequest, entityID: pr.ID, action: "ci_reported",
			userID: "webhook:github", prID: pr.ID, metadata: map[string]any{"ci_passed": passed, "conclusion": conclusion},
		})
	}
	return res, nil
}

// HandleGitLabWebhook mirrors a GitLab merge_request event.
func (s *Service) HandleGitLabWebhook(ctx context.Context, payload []byte) (WebhookResult, error) {
	var p gitlabPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return WebhookResult{}, fmt.Errorf("%w: invalid gitlab payload", ErrBadRequest)
	}

	res := WebhookResult{Received: true}
	if p.ObjectKind != "merge_request" || p.ObjectAttributes == nil {
		return res, nil
	}

	pr, ok, err := s.matchPR(ctx, "gitlab", p.ObjectAttributes.URL)
	if err != nil || !ok {
		return res, err
	}
	res.PullRequestID = pr.ID

	if pr, err = s.mirrorState(ctx, "gitlab", pr, gitlabStates[p.ObjectAttributes.State], p.ObjectAttributes.Title); err != nil {
		return res, err
	}
	res.Status = pr.Status
	return res, nil
}

func (s *Service) matchPR(ctx context.Context, source, link string) (models.PR, bool, error) {
	if link == "" {
		return models.PR{}, false, nil
	}
	pr, err := s.repo.FindPRByRepositoryLink(ctx, link)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("webhook matched no PR", "source", source, "link", link)
			return models.PR{}, false, nil
		}
		s.logger.Error("failed to match webhook PR", "error", err, "source", source)
		return models.PR{}, false, err
	}
	return pr, true, nil
}

// mirrorState syncs the title and status reported by the provider. An empty
// status leaves the PR status untouched.
func (s *Service) mirrorState(ctx context.Context, source string, pr models.PR, status models.PRStatus, title string) (models.PR, error) {
	if title != "" && title != pr.Title {
		updated, err := s.repo.UpdatePR(ctx, pr.ID, pr.Version, models.PRFields{Title: &title})
		switch {
		case err == nil:
			pr = updated
		case errors.Is(err, repository.ErrVersionConflict):
			s.logger.Warn("webhook title sync lost a version race", "source", source, "pr_id", pr.ID)
		default:
			return pr, err
		}
	}

	if status == "" || status == pr.Status {
		return pr, nil
	}
	from := pr.Status
	updated, err := s.repo.SetPRStatus(ctx, pr.ID, status)
	if err != nil {
		s.logger.Error("failed to mirror webhook status", "error", err, "source", source, "pr_id", pr.ID)
		return pr, err
	}
	if status == models.PRStatusDeployed {
		if err := s.stampDeployed(ctx, pr.ID, nil); err != nil {
			return updated, err
		}
	}
	s.recordAudit(ctx, auditEvent{
		entityType: entityPullRequest, entityID: pr.ID, action: "status_change",
		userID: "webhook:" + source, prID: pr.ID,
		metadata: map[string]models.PRStatus{"from": from, "to": status},
	})
	return updated, nil
}
