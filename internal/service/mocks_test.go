package service

import (
	"context"

	"prgate/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	args := m.Called(ctx, u)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockRepository) GetUserByID(ctx context.Context, id string) (models.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockRepository) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockRepository) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockRepository) ListUsers(ctx context.Context, role models.Role, page, limit int) ([]models.User, int, error) {
	args := m.Called(ctx, role, page, limit)
	return args.Get(0).([]models.User), args.Int(1), args.Error(2)
}

func (m *MockRepository) UpdateUser(ctx context.Context, id string, fields models.UserFields) (models.User, error) {
	args := m.Called(ctx, id, fields)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockRepository) DeleteUser(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) CreatePR(ctx context.Context, pr models.PR) (models.PR, error) {
	args := m.Called(ctx, pr)
	return args.Get(0).(models.PR), args.Error(1)
}

func (m *MockRepository) GetPR(ctx context.Context, id string) (models.PR, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.PR), args.Error(1)
}

func (m *MockRepository) ListPRs(ctx context.Context, f models.PRFilter) ([]models.PR, int, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]models.PR), args.Int(1), args.Error(2)
}

func (m *MockRepository) UpdatePR(ctx context.Context, id string, expectedVersion int, fields models.PRFields) (models.PR, error) {
	args := m.Called(ctx, id, expectedVersion, fields)
	return args.Get(0).(models.PR), args.Error(1)
}

func (m *MockRepository) SetPRStatus(ctx context.Context, id string, status models.PRStatus) (models.PR, error) {
	args := m.Called(ctx, id, status)
	return args.Get(0).(models.PR), args.Error(1)
}

func (m *MockRepository) DeletePR(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) FindPRByRepositoryLink(ctx context.Context, link string) (models.PR, error) {
	args := m.Called(ctx, link)
	return args.Get(0).(models.PR), args.Error(1)
}

func (m *MockRepository) AddReviewers(ctx context.Context, prID string, userIDs []string) ([]string, error) {
	args := m.Called(ctx, prID, userIDs)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockRepository) RemoveReviewer(ctx context.Context, prID, userID string) error {
	args := m.Called(ctx, prID, userID)
	return args.Error(0)
}

func (m *MockRepository) ListReviewers(ctx context.Context, prID string) ([]models.Reviewer, error) {
	args := m.Called(ctx, prID)
	return args.Get(0).([]models.Reviewer), args.Error(1)
}

func (m *MockRepository) CreateReview(ctx context.Context, r models.Review) (models.Review, error) {
	args := m.Called(ctx, r)
	return args.Get(0).(models.Review), args.Error(1)
}

func (m *MockRepository) GetReview(ctx context.Context, id string) (models.Review, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Review), args.Error(1)
}

func (m *MockRepository) UpdateReview(ctx context.Context, r models.Review) (models.Review, error) {
	args := m.Called(ctx, r)
	return args.Get(0).(models.Review), args.Error(1)
}

func (m *MockRepository) ListReviews(ctx context.Context, prID string) ([]models.Review, error) {
	args := m.Called(ctx, prID)
	return args.Get(0).([]models.Review), args.Error(1)
}

func (m *MockRepository) GetDeploymentStatus(ctx context.Context, prID string) (*models.DeploymentStatus, error) {
	args := m.Called(ctx, prID)
	ds, _ := args.Get(0).(*models.DeploymentStatus)
	return ds, args.Error(1)
}

func (m *MockRepository) UpsertDeploymentStatus(ctx context.Context, prID string, p models.DeploymentPatch) (models.DeploymentStatus, error) {
	args := m.Called(ctx, prID, p)
	return args.Get(0).(models.DeploymentStatus), args.Error(1)
}

func (m *MockRepository) CreateComment(ctx context.Context, c models.Comment) (models.Comment, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(models.Comment), args.Error(1)
}

func (m *MockRepository) GetComment(ctx context.Context, id string) (models.Comment, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Comment), args.Error(1)
}

func (m *MockRepository) UpdateComment(ctx context.Context, id, body string) (models.Comment, error) {
	args := m.Called(ctx, id, body)
	return args.Get(0).(models.Comment), args.Error(1)
}

func (m *MockRepository) DeleteComment(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) ListComments(ctx context.Context, prID string, page, limit int) ([]models.Comment, int, error) {
	args := m.Called(ctx, prID, page, limit)
	return args.Get(0).([]models.Comment), args.Int(1), args.Error(2)
}

func (m *MockRepository) RecordAudit(ctx context.Context, e models.AuditEntry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockRepository) ListAudit(ctx context.Context, f models.AuditFilter) ([]models.AuditEntry, int, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]models.AuditEntry), args.Int(1), args.Error(2)
}

func (m *MockRepository) CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	args := m.Called(ctx, n)
	return args.Get(0).(models.Notification), args.Error(1)
}

func (m *MockRepository) ListNotifications(ctx context.Context, userID string, unreadOnly bool, page, limit int) ([]models.Notification, int, error) {
	args := m.Called(ctx, userID, unreadOnly, page, limit)
	return args.Get(0).([]models.Notification), args.Int(1), args.Error(2)
}

func (m *MockRepository) MarkNotificationRead(ctx context.Context, userID, id string) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *MockRepository) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type MockHub struct {
	mock.Mock
}

func (m *MockHub) Publish(n models.Notification) int {
	args := m.Called(n)
	return args.Int(0)
}

func (m *MockHub) Subscribe(userID string) (<-chan models.Notification, func()) {
	args := m.Called(userID)
	return args.Get(0).(<-chan models.Notification), args.Get(1).(func())
}
