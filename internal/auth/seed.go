package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"backoffice.games/internal/ids"
)

// GameManagerRoleName is the non-system role bootstrapped with the
// game-management permission group.
const GameManagerRoleName = "GameManager"

// BootstrapConfig controls the seeded SuperAdmin account.
type BootstrapConfig struct {
	SuperAdminEmail    string
	SuperAdminPassword string
	SuperAdminName     string
}

// SyncCatalog inserts catalog permissions missing from storage. The sync
// is additive and idempotent: existing keys are never modified or removed.
func (s *Service) SyncCatalog(ctx context.Context) error {
	perms := make([]Permission, 0, len(Catalog()))
	for _, key := range Catalog() {
		resource, action := splitPermissionKey(key)
		perms = append(perms, Permission{
			ID:          ids.New(),
			Key:         key,
			Resource:    resource,
			Action:      action,
			Description: "Permission: " + key,
		})
	}
	return s.store.Permissions(ctx).Ensure(ctx, perms)
}

// Bootstrap seeds the permission catalog, the SuperAdmin system role (kept
// current with every catalog permission), the GameManager role, and the
// configured SuperAdmin account. Safe to run on every startup.
func (s *Service) Bootstrap(ctx context.Context, cfg BootstrapConfig) error {
	if err := s.SyncCatalog(ctx); err != nil {
		return fmt.Errorf("sync permission catalog: %w", err)
	}

	superRole, err := s.ensureRole(ctx, SuperAdminRoleName, "Super administrator with full access", true)
	if err != nil {
		return err
	}
	all, err := s.store.Permissions(ctx).List(ctx)
	if err != nil {
		return err
	}
	if err := s.grantMissing(ctx, superRole, all); err != nil {
		return err
	}

	gmRole, err := s.ensureRole(ctx, GameManagerRoleName, "Game management", false)
	if err != nil {
		return err
	}
	gmPerms, err := s.store.Permissions(ctx).FindByKeys(ctx, GroupGameManagement)
	if err != nil {
		return err
	}
	if err := s.grantMissing(ctx, gmRole, gmPerms); err != nil {
		return err
	}

	return s.ensureSuperAdminUser(ctx, cfg, superRole)
}

func (s *Service) ensureRole(ctx context.Context, name, description string, system bool) (*Role, error) {
	roles := s.store.Roles(ctx)
	role, err := roles.FindByName(ctx, name)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	role, err = NewRole(name, description, system, s.now())
	if err != nil {
		return nil, err
	}
	role.ID = ids.New()
	if err := roles.Create(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// grantMissing adds permissions the role does not yet link. This is the
// one path allowed to mutate system roles: AssignPermission has no system
// guard precisely so that bootstrap can keep SuperAdmin current with new
// catalog entries.
func (s *Service) grantMissing(ctx context.Context, role *Role, perms []Permission) error {
	changed := false
	for _, p := range perms {
		if role.HasPermission(p.ID) {
			continue
		}
		if err := role.AssignPermission(p.ID, s.now()); err != nil {
			return err
		}
		changed = true
	}
	if !changed {
		return nil
	}
	permissionIDs := make([]string, 0, len(role.Permissions))
	for _, rp := range role.Permissions {
		permissionIDs = append(permissionIDs, rp.PermissionID)
	}
	return s.store.Roles(ctx).SetPermissions(ctx, role.ID, permissionIDs)
}

func (s *Service) ensureSuperAdminUser(ctx context.Context, cfg BootstrapConfig, superRole *Role) error {
	email := NormalizeEmail(cfg.SuperAdminEmail)
	if email == "" || strings.TrimSpace(cfg.SuperAdminPassword) == "" {
		return nil
	}
	users := s.store.Users(ctx)
	user, err := users.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		_, err := s.CreateUser(ctx, email, cfg.SuperAdminPassword, cfg.SuperAdminName, []string{superRole.ID})
		return err
	}
	if err != nil {
		return err
	}
	if user.HasRole(superRole.ID) {
		return nil
	}
	if err := user.AssignRole(superRole.ID, s.now()); err != nil {
		return err
	}
	return s.persistUserRoles(ctx, user)
}

func splitPermissionKey(key string) (resource, action string) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) == 1 {
		return key, "unknown"
	}
	return parts[0], parts[1]
}
