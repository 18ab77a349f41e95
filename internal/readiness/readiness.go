// Package readiness derives review aggregation and the deployment readiness
// verdict from a PR's current sub-state. Everything here is pure.
package readiness

import (
	"fmt"
	"time"

	"prgate/internal/models"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

const (
	BlockerRejected      = "One or more reviews rejected"
	BlockerNotApproved   = "Not all reviewers have approved"
	BlockerChecklistOpen = "Checklist incomplete"
)

// Aggregation summarizes reviewer decisions for one PR.
type Aggregation struct {
	PendingReviewers []models.Reviewer
	HasRejection     bool
	AllApproved      bool
	Status           ApprovalStatus
}

// Aggregate folds reviews into the assigned reviewer set. Reviews whose
// author is no longer assigned still count toward HasRejection but are
// otherwise ignored.
func Aggregate(reviewers []models.Reviewer, reviews []models.Review) Aggregation {
	byUser := make(map[string]models.ReviewDecision, len(reviews))
	agg := Aggregation{PendingReviewers: []models.Reviewer{}}

	for _, rv := range reviews {
		byUser[rv.UserID] = rv.Decision
		if rv.Decision == models.DecisionRejected {
			agg.HasRejection = true
		}
	}

	agg.AllApproved = len(reviewers) > 0
	for _, r := range reviewers {
		d, ok := byUser[r.UserID]
		if !ok {
			agg.PendingReviewers = append(agg.PendingReviewers, r)
		}
		if d != models.DecisionApproved {
			agg.AllApproved = false
		}
	}

	switch {
	case agg.HasRejection:
		agg.Status = ApprovalRejected
	case agg.AllApproved:
		agg.Status = ApprovalApproved
	default:
		agg.Status = ApprovalPending
	}
	return agg
}

type ReviewSummary struct {
	UserID   string                `json:"user_id"`
	Decision models.ReviewDecision `json:"decision"`
}

type Report struct {
	PullRequestID     string           `json:"pull_request_id"`
	Status            models.PRStatus  `json:"status"`
	ApprovalStatus    ApprovalStatus   `json:"approval_status"`
	PendingReviewers  []models.UserRef `json:"pending_reviewers"`
	Reviews           []ReviewSummary  `json:"reviews"`
	ChecklistComplete bool             `json:"checklist_complete"`
	ChecklistTotal    int              `json:"checklist_total"`
	CIPassed          *bool            `json:"ci_passed"`
	Blockers          []string         `json:"blockers"`
	Warnings          []string         `json:"warnings"`
	Ready             bool             `json:"ready"`
	DeployedAt        *time.Time       `json:"deployed_at"`
	DeployedBy        *models.UserRef  `json:"deployed_by"`
}

// Input bundles everything Evaluate reads. Deployment may be nil when no
// deployment status row exists yet.
type Input struct {
	PR         models.PR
	Reviewers  []models.Reviewer
	Reviews    []models.Review
	Deployment *models.DeploymentStatus
	DeployedBy *models.UserRef
}

func checklistComplete(items []models.ChecklistItem) bool {
	for _, it := range items {
		if !it.Done {
			return false
		}
	}
	return true
}

// Evaluate computes a fresh readiness report.
func Evaluate(in Input) Report {
	agg := Aggregate(in.Reviewers, in.Reviews)

	blockers := []string{}
	warnings := []string{}

	if agg.HasRejection {
		blockers = append(blockers, BlockerRejected)
	}
	if len(in.Reviewers) > 0 && !agg.AllApproved {
		blockers = append(blockers, BlockerNotApproved)
	}
	complete := checklistComplete(in.PR.Checklist)
	if !complete {
		blockers = append(blockers, BlockerChecklistOpen)
	}

	var ci *bool
	if ds := in.Deployment; ds != nil {
		blockers = append(blockers, ds.Blockers...)
		warnings = append(warnings, ds.Warnings...)
		ci = ds.CIPassed
	}
	if n := len(agg.PendingReviewers); n > 0 {
		warnings = append(warnings, fmt.Sprintf("%d reviewer(s) pending", n))
	}

	ciOK := ci == nil || *ci
	ready := !agg.HasRejection && agg.AllApproved && complete && ciOK && len(blockers) == 0

	pending := make([]models.UserRef, 0, len(agg.PendingReviewers))
	for _, r := range agg.PendingReviewers {
		ref := r.User
		if ref.ID == "" {
			ref.ID = r.UserID
		}
		pending = append(pending, ref)
	}

	summaries := make([]ReviewSummary, 0, len(in.Reviews))
	for _, rv := range in.Reviews {
		summaries = append(summaries, ReviewSummary{UserID: rv.UserID, Decision: rv.Decision})
	}

	rep := Report{
		PullRequestID:     in.PR.ID,
		Status:            in.PR.Status,
		ApprovalStatus:    agg.Status,
		PendingReviewers:  pending,
		Reviews:           summaries,
		ChecklistComplete: complete,
		ChecklistTotal:    len(in.PR.Checklist),
		CIPassed:          ci,
		Blockers:          blockers,
		Warnings:          warnings,
		Ready:             ready,
		DeployedBy:        in.DeployedBy,
	}
	if in.Deployment != nil {
		rep.DeployedAt = in.Deployment.DeployedAt
	}
	return rep
}
