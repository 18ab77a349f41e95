package api

import (
	"context"

	"prgate/internal/models"
	"prgate/internal/readiness"
	"prgate/internal/service"
)

type ServiceInterface interface {
	Authenticate(ctx context.Context, userID string) (models.User, error)
	Roles() []service.RoleInfo
	CreateUser(ctx context.Context, callerID, email, name string, role models.Role) (models.User, error)
	ListUsers(ctx context.Context, callerID string, role models.Role, page, limit int) (models.Page[models.User], error)
	GetUser(ctx context.Context, callerID, id string) (models.User, error)
	UpdateMe(ctx context.Context, callerID string, name *string) (models.User, error)
	UpdateUser(ctx context.Context, callerID, id string, fields models.UserFields) (models.User, error)
	DeleteUser(ctx context.Context, callerID, id string) error

	CreatePR(ctx context.Context, callerID string, in service.CreatePRInput) (models.PR, error)
	GetPR(ctx context.Context, id string) (models.PRDetails, error)
	ListPRs(ctx context.Context, f models.PRFilter) (models.Page[models.PR], error)
	UpdatePR(ctx context.Context, prID, callerID string, fields models.PRFields, version int) (models.PR, error)
	DeletePR(ctx context.Context, prID, callerID string) error
	UpdateStatus(ctx context.Context, prID, callerID string, status models.PRStatus) (models.PR, error)
	AssignReviewers(ctx context.Context, prID, callerID string, userIDs []string) ([]models.Reviewer, error)
	RemoveReviewer(ctx context.Context, prID, reviewerID, callerID string) error

	CreateReview(ctx context.Context, prID, callerID string, decision models.ReviewDecision, body *string) (models.Review, error)
	UpdateReview(ctx context.Context, prID, reviewID, callerID string, decision *models.ReviewDecision, body *string) (models.Review, error)
	ListReviews(ctx context.Context, prID string) ([]models.Review, error)

	Readiness(ctx context.Context, prID string) (readiness.Report, error)
	MarkReady(ctx context.Context, prID, callerID string) (readiness.Report, error)
	MarkDeployed(ctx context.Context, prID, callerID string) (readiness.Report, error)
	UpdateDeploymentStatus(ctx context.Context, prID, callerID string, upd service.DeploymentUpdate) (readiness.Report, error)

	CreateComment(ctx context.Context, prID, callerID, body string, reviewID *string) (models.Comment, error)
	ListComments(ctx context.Context, prID string, page, limit int) (models.Page[models.Comment], error)
	UpdateComment(ctx context.Context, commentID, callerID, body string) (models.Comment, error)
	DeleteComment(ctx context.Context, commentID, callerID string) error

	ListAuditLogs(ctx context.Context, callerID string, f models.AuditFilter) (models.Page[models.AuditEntry], error)

	ListNotifications(ctx context.Context, userID string, unreadOnly bool, page, limit int) (models.Page[models.Notification], error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) (int, error)
	Subscribe(userID string) (<-chan models.Notification, func())

	HandleGitHubWebhook(ctx context.Context, payload []byte) (service.WebhookResult, error)
	HandleGitLabWebhook(ctx context.Context, payload []byte) (service.WebhookResult, error)
}
