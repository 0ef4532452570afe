package pg

import (
	"context"
	"database/sql"
	"errors"

	"backoffice.games/internal/auth"
)

type userStore Store

func (s *userStore) Create(ctx context.Context, u *auth.User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into users (id, email, password_hash, name, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $5)
	`, u.ID, u.Email, u.PasswordHash, u.Name, u.CreatedAt); err != nil {
		return mapConstraintError(err)
	}
	for _, ur := range u.Roles {
		if _, err := tx.ExecContext(ctx, `
			insert into user_roles (user_id, role_id)
			values ($1, $2)
		`, u.ID, ur.RoleID); err != nil {
			return mapConstraintError(err)
		}
	}
	return tx.Commit()
}

func (s *userStore) Find(ctx context.Context, id string) (*auth.User, error) {
	return s.findBy(ctx, `where id = $1`, id)
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.findBy(ctx, `where email = $1`, email)
}

func (s *userStore) findBy(ctx context.Context, where, arg string) (*auth.User, error) {
	var u auth.User
	err := s.db.QueryRowContext(ctx, `
		select id, email, password_hash, name, created_at, updated_at
		from users `+where,
		arg,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if u.Roles, err = s.roleLinks(ctx, u.ID); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *userStore) List(ctx context.Context) ([]*auth.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, email, password_hash, name, created_at, updated_at
		from users
		order by email
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*auth.User
	byID := map[string]*auth.User{}
	for rows.Next() {
		var u auth.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, &u)
		byID[u.ID] = &u
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	linkRows, err := s.db.QueryContext(ctx, `select user_id, role_id from user_roles`)
	if err != nil {
		return nil, err
	}
	defer linkRows.Close()
	for linkRows.Next() {
		var userID, roleID string
		if err := linkRows.Scan(&userID, &roleID); err != nil {
			return nil, err
		}
		if u, ok := byID[userID]; ok {
			u.Roles = append(u.Roles, auth.UserRole{UserID: userID, RoleID: roleID})
		}
	}
	return users, linkRows.Err()
}

func (s *userStore) Update(ctx context.Context, u *auth.User) error {
	res, err := s.db.ExecContext(ctx, `
		update users set name = $2, updated_at = $3 where id = $1
	`, u.ID, u.Name, u.UpdatedAt)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *userStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `
		update users set password_hash = $2, updated_at = now() where id = $1
	`, userID, passwordHash)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *userStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from users where id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *userStore) SetRoles(ctx context.Context, userID string, roleIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `select 1 from users where id = $1`, userID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.ErrNotFound
		}
		return err
	}

	rows, err := tx.QueryContext(ctx, `select role_id from user_roles where user_id = $1`, userID)
	if err != nil {
		return err
	}
	existing, err := scanIDs(rows)
	if err != nil {
		return err
	}

	// Links already present keep their rows; only the difference is written.
	add, remove := diffLinks(existing, roleIDs)
	for _, roleID := range remove {
		if _, err := tx.ExecContext(ctx, `
			delete from user_roles where user_id = $1 and role_id = $2
		`, userID, roleID); err != nil {
			return err
		}
	}
	for _, roleID := range add {
		if _, err := tx.ExecContext(ctx, `
			insert into user_roles (user_id, role_id) values ($1, $2)
		`, userID, roleID); err != nil {
			return mapConstraintError(err)
		}
	}
	return tx.Commit()
}

func (s *userStore) roleLinks(ctx context.Context, userID string) ([]auth.UserRole, error) {
	rows, err := s.db.QueryContext(ctx, `
		select role_id from user_roles where user_id = $1 order by role_id
	`, userID)
	if err != nil {
		return nil, err
	}
	ids, err := scanIDs(rows)
	if err != nil {
		return nil, err
	}
	links := make([]auth.UserRole, 0, len(ids))
	for _, roleID := range ids {
		links = append(links, auth.UserRole{UserID: userID, RoleID: roleID})
	}
	return links, nil
}

func scanIDs(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func requireAffected(res sql.Result) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}
