package pg

import (
	"context"
	"database/sql"
	"errors"

	"backoffice.games/internal/auth"
)

type permissionStore Store

// Ensure inserts catalog entries that are not yet stored. Existing keys are
// left untouched so descriptions edited in place survive restarts.
func (s *permissionStore) Ensure(ctx context.Context, perms []auth.Permission) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range perms {
		if _, err := tx.ExecContext(ctx, `
			insert into permissions (id, key, resource, action, description)
			values ($1, $2, $3, $4, $5)
			on conflict (key) do nothing
		`, p.ID, p.Key, p.Resource, p.Action, p.Description); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *permissionStore) List(ctx context.Context) ([]auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, key, resource, action, description, created_at
		from permissions
		order by key
	`)
	if err != nil {
		return nil, err
	}
	return scanPermissions(rows)
}

func (s *permissionStore) FindByKeys(ctx context.Context, keys []string) ([]auth.Permission, error) {
	var out []auth.Permission
	for _, key := range keys {
		var p auth.Permission
		err := s.db.QueryRowContext(ctx, `
			select id, key, resource, action, description, created_at
			from permissions
			where key = $1
		`, key).Scan(&p.ID, &p.Key, &p.Resource, &p.Action, &p.Description, &p.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			continue // caller decides whether missing keys are an error
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ForRole resolves the role's permissions through the link table; the join
// drops links whose permission row is gone.
func (s *permissionStore) ForRole(ctx context.Context, roleID string) ([]auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select p.id, p.key, p.resource, p.action, p.description, p.created_at
		from role_permissions rp
		join permissions p on p.id = rp.permission_id
		where rp.role_id = $1
		order by p.key
	`, roleID)
	if err != nil {
		return nil, err
	}
	return scanPermissions(rows)
}

func scanPermissions(rows *sql.Rows) ([]auth.Permission, error) {
	defer rows.Close()
	var out []auth.Permission
	for rows.Next() {
		var p auth.Permission
		if err := rows.Scan(&p.ID, &p.Key, &p.Resource, &p.Action, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
