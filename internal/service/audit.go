package service

import (
	"context"
	"fmt"

	"prgate/internal/authz"
	"prgate/internal/models"
)

func (s *Service) ListAuditLogs(ctx context.Context, callerID string, f models.AuditFilter) (models.Page[models.AuditEntry], error) {
	sub, err := s.subject(ctx, callerID)
	if err != nil {
		return models.Page[models.AuditEntry]{}, err
	}
	if !authz.ViewAuditLogs(sub, authz.Resource{}) {
		s.logger.Warn("permission denied", "user_id", callerID, "reason", "view_audit_logs")
		return models.Page[models.AuditEntry]{}, fmt.Errorf("%w: role %s cannot view audit logs", ErrForbidden, sub.Role)
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateTo.Before(*f.DateFrom) {
		return models.Page[models.AuditEntry]{}, fmt.Errorf("%w: date_to is before date_from", ErrBadRequest)
	}

	f.Page, f.Limit = normalizePage(f.Page, f.Limit)
	entries, total, err := s.repo.ListAudit(ctx, f)
	if err != nil {
		s.logger.Error("failed to list audit logs", "error", err)
		return models.Page[models.AuditEntry]{}, err
	}
	return models.Page[models.AuditEntry]{Data: entries, Total: total, Page: f.Page, Limit: f.Limit}, nil
}
