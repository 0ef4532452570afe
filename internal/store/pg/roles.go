package pg

import (
	"context"
	"database/sql"
	"errors"

	"backoffice.games/internal/auth"
)

type roleStore Store

func (s *roleStore) Create(ctx context.Context, r *auth.Role) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into roles (id, name, description, is_system, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $5)
	`, r.ID, r.Name, r.Description, r.IsSystem, r.CreatedAt); err != nil {
		return mapConstraintError(err)
	}
	for _, rp := range r.Permissions {
		if _, err := tx.ExecContext(ctx, `
			insert into role_permissions (role_id, permission_id)
			values ($1, $2)
		`, r.ID, rp.PermissionID); err != nil {
			return mapConstraintError(err)
		}
	}
	return tx.Commit()
}

func (s *roleStore) Find(ctx context.Context, id string) (*auth.Role, error) {
	return s.findBy(ctx, `where id = $1`, id)
}

func (s *roleStore) FindByName(ctx context.Context, name string) (*auth.Role, error) {
	return s.findBy(ctx, `where name = $1`, name)
}

func (s *roleStore) findBy(ctx context.Context, where, arg string) (*auth.Role, error) {
	var r auth.Role
	err := s.db.QueryRowContext(ctx, `
		select id, name, description, is_system, created_at, updated_at
		from roles `+where,
		arg,
	).Scan(&r.ID, &r.Name, &r.Description, &r.IsSystem, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if r.Permissions, err = s.permissionLinks(ctx, r.ID); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *roleStore) List(ctx context.Context) ([]*auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, description, is_system, created_at, updated_at
		from roles
		order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*auth.Role
	byID := map[string]*auth.Role{}
	for rows.Next() {
		var r auth.Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.IsSystem, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, &r)
		byID[r.ID] = &r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	linkRows, err := s.db.QueryContext(ctx, `select role_id, permission_id from role_permissions`)
	if err != nil {
		return nil, err
	}
	defer linkRows.Close()
	for linkRows.Next() {
		var roleID, permID string
		if err := linkRows.Scan(&roleID, &permID); err != nil {
			return nil, err
		}
		if r, ok := byID[roleID]; ok {
			r.Permissions = append(r.Permissions, auth.RolePermission{RoleID: roleID, PermissionID: permID})
		}
	}
	return roles, linkRows.Err()
}

func (s *roleStore) Update(ctx context.Context, r *auth.Role) error {
	res, err := s.db.ExecContext(ctx, `
		update roles set description = $2, updated_at = $3 where id = $1
	`, r.ID, r.Description, r.UpdatedAt)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *roleStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from roles where id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// ForUser resolves the user's roles through the link table. The inner join
// drops links whose role row is gone.
func (s *roleStore) ForUser(ctx context.Context, userID string) ([]*auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name, r.description, r.is_system, r.created_at, r.updated_at
		from user_roles ur
		join roles r on r.id = ur.role_id
		where ur.user_id = $1
		order by r.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*auth.Role
	for rows.Next() {
		var r auth.Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.IsSystem, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, &r)
	}
	return roles, rows.Err()
}

func (s *roleStore) SetPermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `select 1 from roles where id = $1`, roleID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.ErrNotFound
		}
		return err
	}

	rows, err := tx.QueryContext(ctx, `select permission_id from role_permissions where role_id = $1`, roleID)
	if err != nil {
		return err
	}
	existing, err := scanIDs(rows)
	if err != nil {
		return err
	}

	add, remove := diffLinks(existing, permissionIDs)
	for _, permID := range remove {
		if _, err := tx.ExecContext(ctx, `
			delete from role_permissions where role_id = $1 and permission_id = $2
		`, roleID, permID); err != nil {
			return err
		}
	}
	for _, permID := range add {
		if _, err := tx.ExecContext(ctx, `
			insert into role_permissions (role_id, permission_id) values ($1, $2)
		`, roleID, permID); err != nil {
			return mapConstraintError(err)
		}
	}
	return tx.Commit()
}

func (s *roleStore) permissionLinks(ctx context.Context, roleID string) ([]auth.RolePermission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select permission_id from role_permissions where role_id = $1 order by permission_id
	`, roleID)
	if err != nil {
		return nil, err
	}
	ids, err := scanIDs(rows)
	if err != nil {
		return nil, err
	}
	links := make([]auth.RolePermission, 0, len(ids))
	for _, permID := range ids {
		links = append(links, auth.RolePermission{RoleID: roleID, PermissionID: permID})
	}
	return links, nil
}
