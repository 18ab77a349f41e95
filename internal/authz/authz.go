// Package authz holds the role/permission table and one authorization
// predicate per operation. Predicates are pure and know nothing about HTTP.
package authz

import "prgate/internal/models"

type Permission string

const (
	PermSubmitPR            Permission = "submit_pr"
	PermAssignReviewers     Permission = "assign_reviewers"
	PermApprovePR           Permission = "approve_pr"
	PermViewAuditLogs       Permission = "view_audit_logs"
	PermMarkDeploymentReady Permission = "mark_deployment_ready"
	PermManageUsers         Permission = "manage_users"
)

var rolePermissions = map[models.Role][]Permission{
	models.RoleAdmin: {
		PermSubmitPR, PermAssignReviewers, PermApprovePR,
		PermViewAuditLogs, PermMarkDeploymentReady, PermManageUsers,
	},
	models.RoleDeveloper: {PermSubmitPR, PermAssignReviewers},
	models.RoleReviewer:  {PermSubmitPR, PermAssignReviewers, PermApprovePR},
	models.RoleReleaseManager: {
		PermSubmitPR, PermAssignReviewers, PermApprovePR,
		PermViewAuditLogs, PermMarkDeploymentReady,
	},
}

// Roles returns every known role in a stable order.
func Roles() []models.Role {
	return []models.Role{models.RoleAdmin, models.RoleDeveloper, models.RoleReleaseManager, models.RoleReviewer}
}

func Permissions(r models.Role) []Permission {
	return append([]Permission(nil), rolePermissions[r]...)
}

func ValidRole(r models.Role) bool {
	_, ok := rolePermissions[r]
	return ok
}

func Has(r models.Role, p Permission) bool {
	for _, v := range rolePermissions[r] {
		if v == p {
			return true
		}
	}
	return false
}

// Subject is the resolved caller.
type Subject struct {
	UserID string
	Role   models.Role
}

func (s Subject) IsAdmin() bool { return s.Role == models.RoleAdmin }

// Resource is the PR-shaped object an operation acts on.
type Resource struct {
	AuthorID  string
	Reviewers []string
	Status    models.PRStatus
}

func (r Resource) IsAuthor(userID string) bool { return r.AuthorID == userID }

func (r Resource) IsReviewer(userID string) bool {
	for _, id := range r.Reviewers {
		if id == userID {
			return true
		}
	}
	return false
}

// Predicate decides whether s may act on res.
type Predicate func(s Subject, res Resource) bool

var (
	CreatePR Predicate = func(s Subject, _ Resource) bool {
		return Has(s.Role, PermSubmitPR)
	}

	EditPR Predicate = func(s Subject, res Resource) bool {
		return s.IsAdmin() || res.IsAuthor(s.UserID)
	}

	// DeletePR: the author only while the PR is still OPEN.
	DeletePR Predicate = func(s Subject, res Resource) bool {
		if s.IsAdmin() {
			return true
		}
		return res.IsAuthor(s.UserID) && res.Status == models.PRStatusOpen
	}

	ChangeStatus Predicate = func(s Subject, res Resource) bool {
		return s.IsAdmin() || res.IsAuthor(s.UserID) || res.IsReviewer(s.UserID)
	}

	AssignReviewers Predicate = func(s Subject, _ Resource) bool {
		return Has(s.Role, PermAssignReviewers)
	}

	RemoveReviewer Predicate = func(s Subject, res Resource) bool {
		return s.IsAdmin() || res.IsAuthor(s.UserID)
	}

	SubmitReview Predicate = func(s Subject, res Resource) bool {
		return s.IsAdmin() || res.IsReviewer(s.UserID)
	}

	// ManageDeployment covers markReady, markDeployed and deployment status edits.
	ManageDeployment Predicate = func(s Subject, _ Resource) bool {
		return s.Role == models.RoleAdmin || s.Role == models.RoleReleaseManager
	}

	ViewAuditLogs Predicate = func(s Subject, _ Resource) bool {
		return Has(s.Role, PermViewAuditLogs)
	}

	ManageUsers Predicate = func(s Subject, _ Resource) bool {
		return Has(s.Role, PermManageUsers)
	}
)

// CanApprove reports whether decision may be recorded by userID on a PR
// authored by authorID. Authors can never approve their own PR.
func CanApprove(authorID, userID string, decision models.ReviewDecision) bool {
	return !(authorID == userID && decision == models.DecisionApproved)
}
