package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"prgate/internal/authz"
	"prgate/internal/models"
	"prgate/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
	ErrBadRequest = errors.New("bad request")
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	commentPageLimit = 50

	notifyAttempts = 3
	notifyBackoff  = 100 * time.Millisecond
)

// Hub is the live fan-out for persisted notifications.
type Hub interface {
	Publish(n models.Notification) int
	Subscribe(userID string) (<-chan models.Notification, func())
}

type Service struct {
	repo   repository.Repository
	hub    Hub
	logger *slog.Logger
	newID  func() string

	notifyBackoff time.Duration
}

func NewService(r repository.Repository, hub Hub, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   r,
		hub:    hub,
		logger: logger,
		newID:  uuid.NewString,

		notifyBackoff: notifyBackoff,
	}
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

// subject resolves the caller's role. Unknown callers are forbidden.
func (s *Service) subject(ctx context.Context, callerID string) (authz.Subject, error) {
	u, err := s.repo.GetUserByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return authz.Subject{}, fmt.Errorf("%w: unknown caller", ErrForbidden)
		}
		s.logger.Error("failed to load caller", "error", err, "user_id", callerID)
		return authz.Subject{}, err
	}
	return authz.Subject{UserID: u.ID, Role: u.Role}, nil
}

func (s *Service) loadPR(ctx context.Context, id string) (models.PR, error) {
	pr, err := s.repo.GetPR(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.PR{}, fmt.Errorf("%w: pull request not found", ErrNotFound)
		}
		s.logger.Error("failed to load PR", "error", err, "pr_id", id)
		return models.PR{}, err
	}
	return pr, nil
}

// resource builds the authorization view of pr, including its reviewer ids.
func (s *Service) resource(ctx context.Context, pr models.PR) (authz.Resource, error) {
	reviewers, err := s.repo.ListReviewers(ctx, pr.ID)
	if err != nil {
		s.logger.Error("failed to load reviewers", "error", err, "pr_id", pr.ID)
		return authz.Resource{}, err
	}
	ids := make([]string, 0, len(reviewers))
	for _, r := range reviewers {
		ids = append(ids, r.UserID)
	}
	return authz.Resource{AuthorID: pr.AuthorID, Reviewers: ids, Status: pr.Status}, nil
}

// authorize loads the caller and the PR resource and applies pred.
func (s *Service) authorize(ctx context.Context, callerID string, pr models.PR, pred authz.Predicate, reason string) (authz.Subject, error) {
	sub, err := s.subject(ctx, callerID)
	if err != nil {
		return authz.Subject{}, err
	}
	res, err := s.resource(ctx, pr)
	if err != nil {
		return authz.Subject{}, err
	}
	if !pred(sub, res) {
		s.logger.Warn("permission denied", "user_id", callerID, "pr_id", pr.ID, "reason", reason)
		return authz.Subject{}, fmt.Errorf("%w: %s", ErrForbidden, reason)
	}
	return sub, nil
}

func userRef(u models.User) models.UserRef {
	return models.UserRef{ID: u.ID, Email: u.Email, Name: u.Name}
}
