package auth

import (
	"net/mail"
	"strings"
	"time"
)

const (
	maxRoleNameLen    = 128
	maxDescriptionLen = 512
)

// SuperAdminRoleName is the reserved system role whose members bypass
// permission checks entirely. Matching is exact and case-sensitive.
const SuperAdminRoleName = "SuperAdmin"

// User is an administrative identity. Email is stored normalized (trimmed,
// lower-cased) and is globally unique. The user owns its role links; they
// are deleted with the user.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Roles []UserRole
}

// Role is a named permission bundle. System roles reject direct mutation;
// only the bootstrap sync may add permissions to them.
type Role struct {
	ID          string
	Name        string
	Description string
	IsSystem    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Permissions []RolePermission
}

// Permission is an atomic capability identified by a dot-namespaced key.
type Permission struct {
	ID          string
	Key         string
	Resource    string
	Action      string
	Description string
	CreatedAt   time.Time
}

// UserRole links a user to a role. No independent lifecycle.
type UserRole struct {
	UserID string
	RoleID string
}

// RolePermission links a role to a permission. No independent lifecycle.
type RolePermission struct {
	RoleID       string
	PermissionID string
}

// RefreshToken is an opaque single-use credential. Validity is
// !Revoked && now < ExpiresAt.
type RefreshToken struct {
	ID            string
	UserID        string
	Token         string
	ExpiresAt     time.Time
	CreatedAt     time.Time
	Revoked       bool
	RevokedReason string
}

// Valid reports whether the token may still be exchanged at the given instant.
func (t *RefreshToken) Valid(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// NormalizeEmail applies the canonical email normalization used at both
// registration and lookup time.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewUser validates input and constructs a user with a normalized email.
func NewUser(email, passwordHash, name string, now time.Time) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, NewFieldError("email", "email cannot be empty")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, NewFieldError("email", "invalid email format")
	}
	if strings.TrimSpace(passwordHash) == "" {
		return nil, NewFieldError("password", "password hash cannot be empty")
	}
	return &User{
		Email:        email,
		PasswordHash: passwordHash,
		Name:         strings.TrimSpace(name),
		CreatedAt:    now.UTC(),
	}, nil
}

// ChangePassword replaces the password hash. Exactly one hash exists at a
// time; previous hashes are not retained.
func (u *User) ChangePassword(passwordHash string, now time.Time) error {
	if strings.TrimSpace(passwordHash) == "" {
		return NewFieldError("password", "password hash cannot be empty")
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = now.UTC()
	return nil
}

// UpdateName sets the optional display name.
func (u *User) UpdateName(name string, now time.Time) {
	u.Name = strings.TrimSpace(name)
	u.UpdatedAt = now.UTC()
}

// HasRole reports whether the user is linked to the role.
func (u *User) HasRole(roleID string) bool {
	for _, ur := range u.Roles {
		if ur.RoleID == roleID {
			return true
		}
	}
	return false
}

// AssignRole links a role to the user. Fails with ErrDuplicateAssignment if
// the link already exists. Mutation is in-memory; persistence is the
// caller's concern.
func (u *User) AssignRole(roleID string, now time.Time) error {
	if u.HasRole(roleID) {
		return ErrDuplicateAssignment
	}
	u.Roles = append(u.Roles, UserRole{UserID: u.ID, RoleID: roleID})
	u.UpdatedAt = now.UTC()
	return nil
}

// RemoveRole unlinks a role. Fails with ErrMissingAssignment if absent.
func (u *User) RemoveRole(roleID string, now time.Time) error {
	for i, ur := range u.Roles {
		if ur.RoleID == roleID {
			u.Roles = append(u.Roles[:i], u.Roles[i+1:]...)
			u.UpdatedAt = now.UTC()
			return nil
		}
	}
	return ErrMissingAssignment
}

// SetRoles replaces the full role set by diffing against the current links:
// links absent from roleIDs are removed, missing ones are added, links
// already present are left untouched.
func (u *User) SetRoles(roleIDs []string, now time.Time) {
	want := make(map[string]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		want[id] = struct{}{}
	}
	kept := u.Roles[:0]
	for _, ur := range u.Roles {
		if _, ok := want[ur.RoleID]; ok {
			kept = append(kept, ur)
			delete(want, ur.RoleID)
		}
	}
	u.Roles = kept
	for _, id := range roleIDs {
		if _, ok := want[id]; ok {
			u.Roles = append(u.Roles, UserRole{UserID: u.ID, RoleID: id})
			delete(want, id)
		}
	}
	u.UpdatedAt = now.UTC()
}

// NewRole validates input and constructs a role.
func NewRole(name, description string, isSystem bool, now time.Time) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewFieldError("name", "role name cannot be empty")
	}
	if len(name) > maxRoleNameLen {
		return nil, NewFieldError("name", "role name cannot exceed 128 characters")
	}
	description = strings.TrimSpace(description)
	if len(description) > maxDescriptionLen {
		return nil, NewFieldError("description", "description cannot exceed 512 characters")
	}
	return &Role{
		Name:        name,
		Description: description,
		IsSystem:    isSystem,
		CreatedAt:   now.UTC(),
	}, nil
}

// UpdateDescription changes the description. Rejected for system roles.
func (r *Role) UpdateDescription(description string, now time.Time) error {
	if r.IsSystem {
		return ErrSystemRole
	}
	description = strings.TrimSpace(description)
	if len(description) > maxDescriptionLen {
		return NewFieldError("description", "description cannot exceed 512 characters")
	}
	r.Description = description
	r.UpdatedAt = now.UTC()
	return nil
}

// HasPermission reports whether the role links the permission.
func (r *Role) HasPermission(permissionID string) bool {
	for _, rp := range r.Permissions {
		if rp.PermissionID == permissionID {
			return true
		}
	}
	return false
}

// AssignPermission links a permission to the role. Permitted on system
// roles: the bootstrap sync uses this path to grant new catalog entries.
func (r *Role) AssignPermission(permissionID string, now time.Time) error {
	if r.HasPermission(permissionID) {
		return ErrDuplicateAssignment
	}
	r.Permissions = append(r.Permissions, RolePermission{RoleID: r.ID, PermissionID: permissionID})
	r.UpdatedAt = now.UTC()
	return nil
}

// RemovePermission unlinks a permission. Rejected for system roles.
func (r *Role) RemovePermission(permissionID string, now time.Time) error {
	if r.IsSystem {
		return ErrSystemRole
	}
	for i, rp := range r.Permissions {
		if rp.PermissionID == permissionID {
			r.Permissions = append(r.Permissions[:i], r.Permissions[i+1:]...)
			r.UpdatedAt = now.UTC()
			return nil
		}
	}
	return ErrMissingAssignment
}

// SetPermissions replaces the full permission set by diff, preserving
// existing links. Rejected for system roles.
func (r *Role) SetPermissions(permissionIDs []string, now time.Time) error {
	if r.IsSystem {
		return ErrSystemRole
	}
	want := make(map[string]struct{}, len(permissionIDs))
	for _, id := range permissionIDs {
		want[id] = struct{}{}
	}
	kept := r.Permissions[:0]
	for _, rp := range r.Permissions {
		if _, ok := want[rp.PermissionID]; ok {
			kept = append(kept, rp)
			delete(want, rp.PermissionID)
		}
	}
	r.Permissions = kept
	for _, id := range permissionIDs {
		if _, ok := want[id]; ok {
			r.Permissions = append(r.Permissions, RolePermission{RoleID: r.ID, PermissionID: id})
			delete(want, id)
		}
	}
	r.UpdatedAt = now.UTC()
	return nil
}
