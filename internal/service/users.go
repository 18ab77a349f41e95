package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"prgate/internal/authz"
	"prgate/internal/models"
	"prgate/internal/repository"
)

type RoleInfo struct {
	Name        models.Role        `json:"name"`
	Permissions []authz.Permission `json:"permissions"`
}

// Authenticate resolves an opaque caller id into a user.
func (s *Service) Authenticate(ctx context.Context, userID string) (models.User, error) {
	if userID == "" {
		return models.User{}, fmt.Errorf("%w: missing user id", ErrNotFound)
	}
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.User{}, fmt.Errorf("%w: user not found", ErrNotFound)
		}
		s.logger.Error("failed to load user", "error", err, "user_id", userID)
		return models.User{}, err
	}
	return u, nil
}

func (s *Service) Roles() []RoleInfo {
	roles := authz.Roles()
	out := make([]RoleInfo, 0, len(roles))
	for _, r := range roles {
		out = append(out, RoleInfo{Name: r, Permissions: authz.Permissions(r)})
	}
	return out
}

func validateUser(email, name string, role models.Role) error {
	if !strings.Contains(email, "@") {
		return fmt.Errorf("%w: valid email is required", ErrBadRequest)
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrBadRequest)
	}
	if !authz.ValidRole(role) {
		return fmt.Errorf("%w: unknown role %q", ErrBadRequest, role)
	}
	return nil
}

// CreateUser registers a user. Requires manage_users.
func (s *Service) CreateUser(ctx context.Context, callerID, email, name string, role models.Role) (models.User, error) {
	s.logger.Info("creating user", "email", email, "role", role, "user_id", callerID)

	if err := validateUser(email, name, role); err != nil {
		return models.User{}, err
	}
	if _, err := s.requireManageUsers(ctx, callerID); err != nil {
		return models.User{}, err
	}

	u, err := s.repo.CreateUser(ctx, models.User{ID: s.newID(), Email: email, Name: name, Role: role})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return models.User{}, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		s.logger.Error("failed to create user", "error", err, "email", email)
		return models.User{}, err
	}

	s.recordAudit(ctx, auditEvent{
		entityType: entityUser, entityID: u.ID, action: "created", userID: callerID,
		metadata: map[string]models.Role{"role": role},
	})

	s.logger.Info("user created successfully", "new_user_id", u.ID, "role", u.Role)
	return u, nil
}

// EnsureAdmin creates an ADMIN with the given email unless one exists.
func (s *Service) EnsureAdmin(ctx context.Context, email, name string) (models.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return models.User{}, err
	}
	if err := validateUser(email, name, models.RoleAdmin); err != nil {
		return models.User{}, err
	}

	u, err = s.repo.CreateUser(ctx, models.User{ID: s.newID(), Email: email, Name: name, Role: models.RoleAdmin})
	if err != nil {
		return models.User{}, err
	}
	s.logger.Info("bootstrap admin created", "user_id", u.ID, "email", email)
	return u, nil
}

func (s *Service) requireManageUsers(ctx context.Context, callerID string) (authz.Subject, error) {
	sub, err := s.subject(ctx, callerID)
	if err != nil {
		return authz.Subject{}, err
	}
	if !authz.ManageUsers(sub, authz.Resource{}) {
		s.logger.Warn("permission denied", "user_id", callerID, "reason", "manage_users")
		return authz.Subject{}, fmt.Errorf("%w: role %s cannot manage users", ErrForbidden, sub.Role)
	}
	return sub, nil
}

// ListUsers pages the directory newest first, optionally by role. Any
// known caller may list.
func (s *Service) ListUsers(ctx context.Context, callerID string, role models.Role, page, limit int) (models.Page[models.User], error) {
	if _, err := s.subject(ctx, callerID); err != nil {
		return models.Page[models.User]{}, err
	}
	if role != "" && !authz.ValidRole(role) {
		return models.Page[models.User]{}, fmt.Errorf("%w: unknown role %q", ErrBadRequest, role)
	}
	page, limit = normalizePage(page, limit)

	users, total, err := s.repo.ListUsers(ctx, role, page, limit)
	if err != nil {
		s.logger.Error("failed to list users", "error", err, "role", role)
		return models.Page[models.User]{}, err
	}
	return models.Page[models.User]{Data: users, Total: total, Page: page, Limit: limit}, nil
}

// GetUser returns a user to themselves or to an admin.
func (s *Service) GetUser(ctx context.Context, callerID, id string) (models.User, error) {
	u, err := s.Authenticate(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	if callerID == id {
		return u, nil
	}
	sub, err := s.subject(ctx, callerID)
	if err != nil {
		return models.User{}, err
	}
	if !sub.IsAdmin() {
		return models.User{}, fmt.Errorf("%w: access denied", ErrForbidden)
	}
	return u, nil
}

// UpdateMe lets any user rename themselves.
func (s *Service) UpdateMe(ctx context.Context, callerID string, name *string) (models.User, error) {
	return s.updateUser(ctx, callerID, callerID, models.UserFields{Name: name})
}

// UpdateUser edits email, name and role. Requires manage_users.
func (s *Service) UpdateUser(ctx context.Context, callerID, id string, fields models.UserFields) (models.User, error) {
	if _, err := s.requireManageUsers(ctx, callerID); err != nil {
		return models.User{}, err
	}
	return s.updateUser(ctx, callerID, id, fields)
}

func (s *Service) updateUser(ctx context.Context, callerID, id string, fields models.UserFields) (models.User, error) {
	s.logger.Info("updating user", "target_user_id", id, "user_id", callerID)

	if fields.Email != nil && !strings.Contains(*fields.Email, "@") {
		return models.User{}, fmt.Errorf("%w: valid email is required", ErrBadRequest)
	}
	if fields.Name != nil && strings.TrimSpace(*fields.Name) == "" {
		return models.User{}, fmt.Errorf("%w: name is required", ErrBadRequest)
	}
	if fields.Role != nil && !authz.ValidRole(*fields.Role) {
		return models.User{}, fmt.Errorf("%w: unknown role %q", ErrBadRequest, *fields.Role)
	}
	if fields.Empty() {
		return s.Authenticate(ctx, id)
	}

	u, err := s.repo.UpdateUser(ctx, id, fields)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return models.User{}, fmt.Errorf("%w: user not found", ErrNotFound)
		case errors.Is(err, repository.ErrDuplicate):
			return models.User{}, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		s.logger.Error("failed to update user", "error", err, "target_user_id", id)
		return models.User{}, err
	}

	meta := map[string]any{}
	if fields.Email != nil {
		meta["email"] = *fields.Email
	}
	if fields.Name != nil {
		meta["name"] = *fields.Name
	}
	if fields.Role != nil {
		meta["role"] = *fields.Role
	}
	s.recordAudit(ctx, auditEvent{
		entityType: entityUser, entityID: id, action: "updated", userID: callerID, metadata: meta,
	})
	return u, nil
}

// DeleteUser removes a user. Requires manage_users. Admins cannot delete
// themselves and PR authors cannot be deleted.
func (s *Service) DeleteUser(ctx context.Context, callerID, id string) error {
	s.logger.Info("deleting user", "target_user_id", id, "user_id", callerID)

	if _, err := s.requireManageUsers(ctx, callerID); err != nil {
		return err
	}
	if callerID == id {
		return fmt.Errorf("%w: cannot delete yourself", ErrConflict)
	}

	if err := s.repo.DeleteUser(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("%w: user not found", ErrNotFound)
		case errors.Is(err, repository.ErrReferenced):
			return fmt.Errorf("%w: user still authors pull requests", ErrConflict)
		}
		s.logger.Error("failed to delete user", "error", err, "target_user_id", id)
		return err
	}

	s.recordAudit(ctx, auditEvent{entityType: entityUser, entityID: id, action: "deleted", userID: callerID})
	return nil
}
