package repository

import (
	"context"
	"errors"

	"prgate/internal/models"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrDuplicate       = errors.New("duplicate record")
	ErrReferenced      = errors.New("record still referenced")
)

// Repository is the persistence contract. Ids are assigned by the caller;
// timestamps and versions are owned by the store.
type Repository interface {
	CreateUser(ctx context.Context, u models.User) (models.User, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
	// ListUsers pages users newest first; an empty role matches every role.
	ListUsers(ctx context.Context, role models.Role, page, limit int) ([]models.User, int, error)
	UpdateUser(ctx context.Context, id string, fields models.UserFields) (models.User, error)
	// DeleteUser removes the user with their assignments, reviews, comments
	// and notifications. Authors of existing PRs yield ErrReferenced.
	DeleteUser(ctx context.Context, id string) error

	CreatePR(ctx context.Context, pr models.PR) (models.PR, error)
	GetPR(ctx context.Context, id string) (models.PR, error)
	ListPRs(ctx context.Context, f models.PRFilter) ([]models.PR, int, error)
	// UpdatePR writes fields only if the stored version still equals
	// expectedVersion, bumping it by one. A mismatch yields ErrVersionConflict.
	UpdatePR(ctx context.Context, id string, expectedVersion int, fields models.PRFields) (models.PR, error)
	// SetPRStatus sets the status and bumps the version unconditionally.
	SetPRStatus(ctx context.Context, id string, status models.PRStatus) (models.PR, error)
	DeletePR(ctx context.Context, id string) error
	FindPRByRepositoryLink(ctx context.Context, link string) (models.PR, error)

	// AddReviewers inserts the given assignments, skipping existing ones, and
	// returns the ids that were actually added.
	AddReviewers(ctx context.Context, prID string, userIDs []string) ([]string, error)
	RemoveReviewer(ctx context.Context, prID, userID string) error
	ListReviewers(ctx context.Context, prID string) ([]models.Reviewer, error)

	CreateReview(ctx context.Context, r models.Review) (models.Review, error)
	GetReview(ctx context.Context, id string) (models.Review, error)
	UpdateReview(ctx context.Context, r models.Review) (models.Review, error)
	ListReviews(ctx context.Context, prID string) ([]models.Review, error)

	// GetDeploymentStatus returns nil without error when no row exists yet.
	GetDeploymentStatus(ctx context.Context, prID string) (*models.DeploymentStatus, error)
	// UpsertDeploymentStatus creates the row if absent and otherwise writes
	// only the fields present in the patch.
	UpsertDeploymentStatus(ctx context.Context, prID string, p models.DeploymentPatch) (models.DeploymentStatus, error)

	CreateComment(ctx context.Context, c models.Comment) (models.Comment, error)
	GetComment(ctx context.Context, id string) (models.Comment, error)
	UpdateComment(ctx context.Context, id, body string) (models.Comment, error)
	DeleteComment(ctx context.Context, id string) error
	// ListComments pages oldest first; a limit of zero returns every comment.
	ListComments(ctx context.Context, prID string, page, limit int) ([]models.Comment, int, error)

	RecordAudit(ctx context.Context, e models.AuditEntry) error
	ListAudit(ctx context.Context, f models.AuditFilter) ([]models.AuditEntry, int, error)

	CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error)
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, page, limit int) ([]models.Notification, int, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) (int, error)
}

// Offset converts a 1-based page into a row offset.
func Offset(page, limit int) int {
	if page < 1 {
		return 0
	}
	return (page - 1) * limit
}
