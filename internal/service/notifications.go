package service

import (
	"context"
	"errors"
	"fmt"

	"prgate/internal/models"
	"prgate/internal/repository"
)

func (s *Service) ListNotifications(ctx context.Context, userID string, unreadOnly bool, page, limit int) (models.Page[models.Notification], error) {
	page, limit = normalizePage(page, limit)
	items, total, err := s.repo.ListNotifications(ctx, userID, unreadOnly, page, limit)
	if err != nil {
		s.logger.Error("failed to list notifications", "error", err, "user_id", userID)
		return models.Page[models.Notification]{}, err
	}
	return models.Page[models.Notification]{Data: items, Total: total, Page: page, Limit: limit}, nil
}

func (s *Service) MarkNotificationRead(ctx context.Context, userID, id string) error {
	if err := s.repo.MarkNotificationRead(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: notification not found", ErrNotFound)
		}
		s.logger.Error("failed to mark notification read", "error", err, "notification_id", id)
		return err
	}
	return nil
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	n, err := s.repo.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		s.logger.Error("failed to mark notifications read", "error", err, "user_id", userID)
		return 0, err
	}
	return n, nil
}

// Subscribe opens a live notification stream for userID.
func (s *Service) Subscribe(userID string) (<-chan models.Notification, func()) {
	if s.hub == nil {
		ch := make(chan models.Notification)
		return ch, func() {}
	}
	return s.hub.Subscribe(userID)
}
