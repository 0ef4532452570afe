package auth

import (
	"context"
	"fmt"
	"strings"

	"backoffice.games/internal/ids"
)

// Management operations over the identity and role graph. Aggregate
// invariants (duplicate links, system-role immutability) are enforced by
// the entity methods in types.go; this layer loads aggregates, applies the
// mutation and persists the result.

// CreateUser registers a new user with a hashed password and optional
// initial roles.
func (s *Service) CreateUser(ctx context.Context, email, password, name string, roleIDs []string) (*User, error) {
	if strings.TrimSpace(password) == "" {
		return nil, NewFieldError("password", "password cannot be empty")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user, err := NewUser(email, hash, name, s.now())
	if err != nil {
		return nil, err
	}
	user.ID = ids.New()
	for _, roleID := range dedupeIDs(roleIDs) {
		if err := s.requireRole(ctx, roleID); err != nil {
			return nil, err
		}
		if err := user.AssignRole(roleID, s.now()); err != nil {
			return nil, err
		}
	}
	if err := s.store.Users(ctx).Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetUser loads a user with its role links.
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.store.Users(ctx).Find(ctx, userID)
}

// ListUsers returns all users with their role links.
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	return s.store.Users(ctx).List(ctx)
}

// UpdateUserName changes the display name.
func (s *Service) UpdateUserName(ctx context.Context, userID, name string) (*User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.UpdateName(name, s.now())
	if err := s.store.Users(ctx).Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUserPassword replaces the password hash and revokes every refresh
// token the user holds, forcing re-authentication everywhere.
func (s *Service) UpdateUserPassword(ctx context.Context, userID, password string) error {
	if strings.TrimSpace(password) == "" {
		return NewFieldError("password", "password cannot be empty")
	}
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if err := user.ChangePassword(hash, s.now()); err != nil {
		return err
	}
	if err := s.store.Users(ctx).UpdatePassword(ctx, user.ID, user.PasswordHash); err != nil {
		return err
	}
	return s.store.RefreshTokens(ctx).RevokeAllForUser(ctx, user.ID, revokedReasonPassword)
}

// DeleteUser removes the user and, through ownership, its role links.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.store.Users(ctx).Delete(ctx, userID)
}

// AssignUserRole links a role to a user. Duplicate links fail with
// ErrDuplicateAssignment.
func (s *Service) AssignUserRole(ctx context.Context, userID, roleID string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.requireRole(ctx, roleID); err != nil {
		return err
	}
	if err := user.AssignRole(roleID, s.now()); err != nil {
		return err
	}
	return s.persistUserRoles(ctx, user)
}

// RemoveUserRole unlinks a role from a user.
func (s *Service) RemoveUserRole(ctx context.Context, userID, roleID string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := user.RemoveRole(roleID, s.now()); err != nil {
		return err
	}
	return s.persistUserRoles(ctx, user)
}

// SetUserRoles replaces the user's role set. The diff is computed against
// the existing links so calling twice with the same set is a no-op.
func (s *Service) SetUserRoles(ctx context.Context, userID string, roleIDs []string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	roleIDs = dedupeIDs(roleIDs)
	for _, roleID := range roleIDs {
		if err := s.requireRole(ctx, roleID); err != nil {
			return err
		}
	}
	user.SetRoles(roleIDs, s.now())
	return s.persistUserRoles(ctx, user)
}

func (s *Service) persistUserRoles(ctx context.Context, user *User) error {
	roleIDs := make([]string, 0, len(user.Roles))
	for _, ur := range user.Roles {
		roleIDs = append(roleIDs, ur.RoleID)
	}
	return s.store.Users(ctx).SetRoles(ctx, user.ID, roleIDs)
}

func (s *Service) requireRole(ctx context.Context, roleID string) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return fmt.Errorf("%w: role id is required", ErrInvalidInput)
	}
	if _, err := s.store.Roles(ctx).Find(ctx, roleID); err != nil {
		return err
	}
	return nil
}

// CreateRole creates a non-system role.
func (s *Service) CreateRole(ctx context.Context, name, description string) (*Role, error) {
	role, err := NewRole(name, description, false, s.now())
	if err != nil {
		return nil, err
	}
	role.ID = ids.New()
	if err := s.store.Roles(ctx).Create(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// GetRole loads a role with its permission links.
func (s *Service) GetRole(ctx context.Context, roleID string) (*Role, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, fmt.Errorf("%w: role id is required", ErrInvalidInput)
	}
	return s.store.Roles(ctx).Find(ctx, roleID)
}

// ListRoles returns all roles with their permission links.
func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	return s.store.Roles(ctx).List(ctx)
}

// UpdateRoleDescription changes a role's description. System roles reject
// the mutation with ErrSystemRole.
func (s *Service) UpdateRoleDescription(ctx context.Context, roleID, description string) (*Role, error) {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if err := role.UpdateDescription(description, s.now()); err != nil {
		return nil, err
	}
	if err := s.store.Roles(ctx).Update(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// DeleteRole removes a non-system role.
func (s *Service) DeleteRole(ctx context.Context, roleID string) error {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return ErrSystemRole
	}
	return s.store.Roles(ctx).Delete(ctx, role.ID)
}

// SetRolePermissions replaces a role's permission set, given catalog keys.
// Unknown keys fail validation; system roles reject the mutation.
func (s *Service) SetRolePermissions(ctx context.Context, roleID string, keys []string) error {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	keys = dedupeIDs(keys)
	perms, err := s.store.Permissions(ctx).FindByKeys(ctx, keys)
	if err != nil {
		return err
	}
	if len(perms) != len(keys) {
		known := make(map[string]struct{}, len(perms))
		for _, p := range perms {
			known[p.Key] = struct{}{}
		}
		for _, k := range keys {
			if _, ok := known[k]; !ok {
				return NewFieldError("permissions", fmt.Sprintf("unknown permission key %q", k))
			}
		}
	}
	permissionIDs := make([]string, 0, len(perms))
	for _, p := range perms {
		permissionIDs = append(permissionIDs, p.ID)
	}
	if err := role.SetPermissions(permissionIDs, s.now()); err != nil {
		return err
	}
	return s.store.Roles(ctx).SetPermissions(ctx, role.ID, permissionIDs)
}

// RemoveRolePermission unlinks a single permission from a role.
func (s *Service) RemoveRolePermission(ctx context.Context, roleID, permissionID string) error {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if err := role.RemovePermission(permissionID, s.now()); err != nil {
		return err
	}
	permissionIDs := make([]string, 0, len(role.Permissions))
	for _, rp := range role.Permissions {
		permissionIDs = append(permissionIDs, rp.PermissionID)
	}
	return s.store.Roles(ctx).SetPermissions(ctx, role.ID, permissionIDs)
}

// ListPermissions returns the stored permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.Permissions(ctx).List(ctx)
}

func dedupeIDs(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
