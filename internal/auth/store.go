package auth

import (
	"context"
	"time"
)

// Store describes persistence required by the access-control core. All
// graph reads are explicit, eagerly-specified queries; there is no lazy
// loading.
type Store interface {
	Users(ctx context.Context) UserStore
	Roles(ctx context.Context) RoleStore
	Permissions(ctx context.Context) PermissionStore
	RefreshTokens(ctx context.Context) RefreshTokenStore
}

// UserStore manages users and their role links.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	Delete(ctx context.Context, id string) error
	// SetRoles persists the full role link set for the user, diffing
	// against the stored links rather than clearing and reinserting.
	SetRoles(ctx context.Context, userID string, roleIDs []string) error
}

// RoleStore manages roles and their permission links.
type RoleStore interface {
	Create(ctx context.Context, r *Role) error
	Find(ctx context.Context, id string) (*Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]*Role, error)
	Update(ctx context.Context, r *Role) error
	Delete(ctx context.Context, id string) error
	// ForUser returns the roles linked to the user. Orphaned links (role
	// row gone) are silently skipped.
	ForUser(ctx context.Context, userID string) ([]*Role, error)
	SetPermissions(ctx context.Context, roleID string, permissionIDs []string) error
}

// PermissionStore manages the permission catalog.
type PermissionStore interface {
	// Ensure inserts missing permissions; existing keys are never touched
	// or removed.
	Ensure(ctx context.Context, perms []Permission) error
	List(ctx context.Context) ([]Permission, error)
	FindByKeys(ctx context.Context, keys []string) ([]Permission, error)
	// ForRole returns the permissions linked to the role, skipping
	// orphaned links.
	ForRole(ctx context.Context, roleID string) ([]Permission, error)
}

// RefreshTokenStore manages the refresh token lifecycle.
type RefreshTokenStore interface {
	Create(ctx context.Context, tok *RefreshToken) error
	Find(ctx context.Context, token string) (*RefreshToken, error)
	// Rotate revokes the old token with the given reason and inserts the
	// replacement in a single atomic unit; a partially-rotated state must
	// never be visible.
	Rotate(ctx context.Context, oldToken, reason string, replacement *RefreshToken) error
	RevokeAllForUser(ctx context.Context, userID, reason string) error
	// PurgeExpired deletes tokens whose expiry predates the cutoff.
	// Revoked rows stay until they expire. Returns the rows removed.
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
