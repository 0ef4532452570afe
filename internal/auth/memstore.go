package auth

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory Store used by tests and DSN-less local runs.
// All operations are safe for concurrent use.
type MemStore struct {
	mu sync.Mutex

	users     map[string]*User
	roles     map[string]*Role
	perms     map[string]Permission // by id
	userRoles map[string][]string   // userID -> roleIDs
	rolePerms map[string][]string   // roleID -> permissionIDs
	tokens    map[string]*RefreshToken
}

var _ Store = (*MemStore)(nil)

// NewMemStore constructs an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		users:     make(map[string]*User),
		roles:     make(map[string]*Role),
		perms:     make(map[string]Permission),
		userRoles: make(map[string][]string),
		rolePerms: make(map[string][]string),
		tokens:    make(map[string]*RefreshToken),
	}
}

func (m *MemStore) Users(context.Context) UserStore               { return (*memUsers)(m) }
func (m *MemStore) Roles(context.Context) RoleStore               { return (*memRoles)(m) }
func (m *MemStore) Permissions(context.Context) PermissionStore   { return (*memPerms)(m) }
func (m *MemStore) RefreshTokens(context.Context) RefreshTokenStore { return (*memTokens)(m) }

// Users ----------------------------------------------------------------

type memUsers MemStore

func (m *memUsers) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrConflict
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	roleIDs := make([]string, 0, len(u.Roles))
	for _, ur := range u.Roles {
		roleIDs = append(roleIDs, ur.RoleID)
	}
	m.userRoles[u.ID] = roleIDs
	return nil
}

func (m *memUsers) Find(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadUserLocked(id)
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if u.Email == email {
			return m.loadUserLocked(id)
		}
	}
	return nil, ErrNotFound
}

func (m *memUsers) List(_ context.Context) ([]*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*User, 0, len(m.users))
	for id := range m.users {
		u, _ := m.loadUserLocked(id)
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *memUsers) Update(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Name = u.Name
	stored.UpdatedAt = u.UpdatedAt
	return nil
}

func (m *memUsers) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	stored.PasswordHash = passwordHash
	return nil
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	delete(m.userRoles, id)
	return nil
}

func (m *memUsers) SetRoles(_ context.Context, userID string, roleIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return ErrNotFound
	}
	m.userRoles[userID] = append([]string(nil), roleIDs...)
	return nil
}

func (m *memUsers) loadUserLocked(id string) (*User, error) {
	stored, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *stored
	cp.Roles = nil
	for _, roleID := range m.userRoles[id] {
		cp.Roles = append(cp.Roles, UserRole{UserID: id, RoleID: roleID})
	}
	return &cp, nil
}

// Roles ----------------------------------------------------------------

type memRoles MemStore

func (m *memRoles) Create(_ context.Context, r *Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.roles {
		if existing.Name == r.Name {
			return ErrConflict
		}
	}
	cp := *r
	m.roles[r.ID] = &cp
	permIDs := make([]string, 0, len(r.Permissions))
	for _, rp := range r.Permissions {
		permIDs = append(permIDs, rp.PermissionID)
	}
	m.rolePerms[r.ID] = permIDs
	return nil
}

func (m *memRoles) Find(_ context.Context, id string) (*Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadRoleLocked(id)
}

func (m *memRoles) FindByName(_ context.Context, name string) (*Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.roles {
		if r.Name == name {
			return m.loadRoleLocked(id)
		}
	}
	return nil, ErrNotFound
}

func (m *memRoles) List(_ context.Context) ([]*Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Role, 0, len(m.roles))
	for id := range m.roles {
		r, _ := m.loadRoleLocked(id)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memRoles) Update(_ context.Context, r *Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.roles[r.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Description = r.Description
	stored.UpdatedAt = r.UpdatedAt
	return nil
}

func (m *memRoles) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[id]; !ok {
		return ErrNotFound
	}
	delete(m.roles, id)
	delete(m.rolePerms, id)
	return nil
}

func (m *memRoles) ForUser(_ context.Context, userID string) ([]*Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Role
	for _, roleID := range m.userRoles[userID] {
		role, err := m.loadRoleLocked(roleID)
		if err != nil {
			continue // orphaned link
		}
		out = append(out, role)
	}
	return out, nil
}

func (m *memRoles) SetPermissions(_ context.Context, roleID string, permissionIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[roleID]; !ok {
		return ErrNotFound
	}
	m.rolePerms[roleID] = append([]string(nil), permissionIDs...)
	return nil
}

func (m *memRoles) loadRoleLocked(id string) (*Role, error) {
	stored, ok := m.roles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *stored
	cp.Permissions = nil
	for _, permID := range m.rolePerms[id] {
		cp.Permissions = append(cp.Permissions, RolePermission{RoleID: id, PermissionID: permID})
	}
	return &cp, nil
}

// Permissions ----------------------------------------------------------

type memPerms MemStore

func (m *memPerms) Ensure(_ context.Context, perms []Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing := make(map[string]struct{}, len(m.perms))
	for _, p := range m.perms {
		existing[p.Key] = struct{}{}
	}
	for _, p := range perms {
		if _, ok := existing[p.Key]; ok {
			continue
		}
		m.perms[p.ID] = p
		existing[p.Key] = struct{}{}
	}
	return nil
}

func (m *memPerms) List(_ context.Context) ([]Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Permission, 0, len(m.perms))
	for _, p := range m.perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memPerms) FindByKeys(_ context.Context, keys []string) ([]Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		want[k] = struct{}{}
	}
	var out []Permission
	for _, p := range m.perms {
		if _, ok := want[p.Key]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memPerms) ForRole(_ context.Context, roleID string) ([]Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Permission
	for _, permID := range m.rolePerms[roleID] {
		p, ok := m.perms[permID]
		if !ok {
			continue // orphaned link
		}
		out = append(out, p)
	}
	return out, nil
}

// Refresh tokens -------------------------------------------------------

type memTokens MemStore

func (m *memTokens) Create(_ context.Context, tok *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[tok.Token]; ok {
		return ErrConflict
	}
	cp := *tok
	m.tokens[tok.Token] = &cp
	return nil
}

func (m *memTokens) Find(_ context.Context, token string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.tokens[token]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *stored
	return &cp, nil
}

func (m *memTokens) Rotate(_ context.Context, oldToken, reason string, replacement *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.tokens[oldToken]
	if !ok || stored.Revoked {
		// A consumed token cannot be rotated again; exactly one caller wins.
		return ErrNotFound
	}
	if _, ok := m.tokens[replacement.Token]; ok {
		return ErrConflict
	}
	stored.Revoked = true
	stored.RevokedReason = reason
	cp := *replacement
	m.tokens[replacement.Token] = &cp
	return nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, userID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tok := range m.tokens {
		if tok.UserID == userID && !tok.Revoked {
			tok.Revoked = true
			tok.RevokedReason = reason
		}
	}
	return nil
}

func (m *memTokens) PurgeExpired(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for key, tok := range m.tokens {
		if tok.ExpiresAt.Before(cutoff) {
			delete(m.tokens, key)
			removed++
		}
	}
	return removed, nil
}
