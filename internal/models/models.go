package models

import (
	"encoding/json"
	"time"
)

type Role string

const (
	RoleAdmin          Role = "ADMIN"
	RoleDeveloper      Role = "DEVELOPER"
	RoleReviewer       Role = "REVIEWER"
	RoleReleaseManager Role = "RELEASE_MANAGER"
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// UserRef is the short user projection embedded in PR and readiness payloads.
type UserRef struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name"`
}

type PRStatus string

const (
	PRStatusOpen               PRStatus = "OPEN"
	PRStatusInReview           PRStatus = "IN_REVIEW"
	PRStatusChangesRequested   PRStatus = "CHANGES_REQUESTED"
	PRStatusApproved           PRStatus = "APPROVED"
	PRStatusReadyForDeployment PRStatus = "READY_FOR_DEPLOYMENT"
	PRStatusDeployed           PRStatus = "DEPLOYED"
)

// PRStatuses lists every status in nominal lifecycle order.
var PRStatuses = []PRStatus{
	PRStatusOpen,
	PRStatusInReview,
	PRStatusChangesRequested,
	PRStatusApproved,
	PRStatusReadyForDeployment,
	PRStatusDeployed,
}

func (s PRStatus) Valid() bool {
	for _, v := range PRStatuses {
		if s == v {
			return true
		}
	}
	return false
}

type ChecklistItem struct {
	Label string `json:"label"`
	Done  bool   `json:"done"`
}

type PR struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	RepositoryLink string          `json:"repository_link"`
	SourceBranch   string          `json:"source_branch"`
	TargetBranch   string          `json:"target_branch"`
	Status         PRStatus        `json:"status"`
	Checklist      []ChecklistItem `json:"checklist"`
	AuthorID       string          `json:"author_id"`
	Version        int             `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// PRFields carries the editable PR fields; nil means "leave unchanged".
type PRFields struct {
	Title          *string
	Description    *string
	RepositoryLink *string
	SourceBranch   *string
	TargetBranch   *string
	Checklist      []ChecklistItem
	SetChecklist   bool
}

func (f PRFields) Empty() bool {
	return f.Title == nil && f.Description == nil && f.RepositoryLink == nil &&
		f.SourceBranch == nil && f.TargetBranch == nil && !f.SetChecklist
}

// Apply copies the non-nil fields onto pr.
func (f PRFields) Apply(pr *PR) {
	if f.Title != nil {
		pr.Title = *f.Title
	}
	if f.Description != nil {
		pr.Description = *f.Description
	}
	if f.RepositoryLink != nil {
		pr.RepositoryLink = *f.RepositoryLink
	}
	if f.SourceBranch != nil {
		pr.SourceBranch = *f.SourceBranch
	}
	if f.TargetBranch != nil {
		pr.TargetBranch = *f.TargetBranch
	}
	if f.SetChecklist {
		pr.Checklist = append([]ChecklistItem(nil), f.Checklist...)
	}
}

type Reviewer struct {
	PullRequestID string    `json:"pull_request_id"`
	UserID        string    `json:"user_id"`
	User          UserRef   `json:"user"`
	CreatedAt     time.Time `json:"created_at"`
}

type ReviewDecision string

const (
	DecisionApproved         ReviewDecision = "APPROVED"
	DecisionChangesRequested ReviewDecision = "CHANGES_REQUESTED"
	DecisionRejected         ReviewDecision = "REJECTED"
)

func (d ReviewDecision) Valid() bool {
	switch d {
	case DecisionApproved, DecisionChangesRequested, DecisionRejected:
		return true
	}
	return false
}

type Review struct {
	ID            string         `json:"id"`
	PullRequestID string         `json:"pull_request_id"`
	UserID        string         `json:"user_id"`
	Decision      ReviewDecision `json:"decision"`
	Body          *string        `json:"body"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type DeploymentStatus struct {
	PullRequestID string     `json:"pull_request_id"`
	CIPassed      *bool      `json:"ci_passed"`
	Blockers      []string   `json:"blockers"`
	Warnings      []string   `json:"warnings"`
	Ready         bool       `json:"ready"`
	DeployedAt    *time.Time `json:"deployed_at"`
	DeployedByID  *string    `json:"deployed_by_id"`
}

// DeploymentPatch is a field-level upsert: only non-nil fields are written.
// SetCIPassed with a nil CIPassed resets CI to unknown. DeployedAt and
// DeployedByID are written together and only while no deployment is stamped.
type DeploymentPatch struct {
	CIPassed     *bool
	SetCIPassed  bool
	Blockers     *[]string
	Warnings     *[]string
	Ready        *bool
	DeployedAt   *time.Time
	DeployedByID *string
}

// Apply merges the patch into ds.
func (p DeploymentPatch) Apply(ds *DeploymentStatus) {
	if p.SetCIPassed || p.CIPassed != nil {
		ds.CIPassed = nil
		if p.CIPassed != nil {
			v := *p.CIPassed
			ds.CIPassed = &v
		}
	}
	if p.Blockers != nil {
		ds.Blockers = append([]string{}, (*p.Blockers)...)
	}
	if p.Warnings != nil {
		ds.Warnings = append([]string{}, (*p.Warnings)...)
	}
	if p.Ready != nil {
		ds.Ready = *p.Ready
	}
	if p.DeployedAt != nil && ds.DeployedAt == nil {
		t := *p.DeployedAt
		ds.DeployedAt = &t
		ds.DeployedByID = nil
		if p.DeployedByID != nil {
			id := *p.DeployedByID
			ds.DeployedByID = &id
		}
	}
}

// PRDetails is a PR together with the sub-state shown on its detail page.
type PRDetails struct {
	PR
	Author           UserRef           `json:"author"`
	Reviewers        []Reviewer        `json:"reviewers"`
	Reviews          []Review          `json:"reviews"`
	DeploymentStatus *DeploymentStatus `json:"deployment_status"`
	Comments         []Comment         `json:"comments"`
}

type PRFilter struct {
	Status     PRStatus
	AuthorID   string
	ReviewerID string
	Page       int
	Limit      int
	SortBy     string
}

type Page[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type Comment struct {
	ID            string    `json:"id"`
	PullRequestID string    `json:"pull_request_id"`
	ReviewID      *string   `json:"review_id"`
	UserID        string    `json:"user_id"`
	Body          string    `json:"body"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UserFields carries the editable user fields; nil means "leave unchanged".
type UserFields struct {
	Email *string
	Name  *string
	Role  *Role
}

func (f UserFields) Empty() bool {
	return f.Email == nil && f.Name == nil && f.Role == nil
}

func (f UserFields) Apply(u *User) {
	if f.Email != nil {
		u.Email = *f.Email
	}
	if f.Name != nil {
		u.Name = *f.Name
	}
	if f.Role != nil {
		u.Role = *f.Role
	}
}

type AuditEntry struct {
	ID            string          `json:"id"`
	EntityType    string          `json:"entity_type"`
	EntityID      string          `json:"entity_id"`
	Action        string          `json:"action"`
	UserID        string          `json:"user_id"`
	PullRequestID *string         `json:"pull_request_id"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type AuditFilter struct {
	EntityType    string
	EntityID      string
	UserID        string
	Action        string
	PullRequestID string
	DateFrom      *time.Time
	DateTo        *time.Time
	Page          int
	Limit         int
}

type Notification struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Body      *string         `json:"body"`
	Link      *string         `json:"link"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	Read      bool            `json:"read"`
	CreatedAt time.Time       `json:"created_at"`
}
