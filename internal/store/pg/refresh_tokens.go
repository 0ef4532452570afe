package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"backoffice.games/internal/auth"
)

type tokenStore Store

func (s *tokenStore) Create(ctx context.Context, tok *auth.RefreshToken) error {
	if _, err := s.db.ExecContext(ctx, `
		insert into refresh_tokens (id, user_id, token, expires_at, created_at, revoked, revoked_reason)
		values ($1, $2, $3, $4, $5, false, '')
	`, tok.ID, tok.UserID, tok.Token, tok.ExpiresAt, tok.CreatedAt); err != nil {
		return mapConstraintError(err)
	}
	return nil
}

func (s *tokenStore) Find(ctx context.Context, token string) (*auth.RefreshToken, error) {
	var t auth.RefreshToken
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, token, expires_at, created_at, revoked, revoked_reason
		from refresh_tokens
		where token = $1
	`, token).Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.CreatedAt, &t.Revoked, &t.RevokedReason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Rotate revokes the consumed token and inserts its replacement in one
// transaction so a half-rotated state is never observable.
func (s *tokenStore) Rotate(ctx context.Context, oldToken, reason string, replacement *auth.RefreshToken) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update refresh_tokens
		set revoked = true, revoked_reason = $2
		where token = $1 and revoked = false
	`, oldToken, reason)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		insert into refresh_tokens (id, user_id, token, expires_at, created_at, revoked, revoked_reason)
		values ($1, $2, $3, $4, $5, false, '')
	`, replacement.ID, replacement.UserID, replacement.Token, replacement.ExpiresAt, replacement.CreatedAt); err != nil {
		return mapConstraintError(err)
	}
	return tx.Commit()
}

func (s *tokenStore) RevokeAllForUser(ctx context.Context, userID, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		update refresh_tokens
		set revoked = true, revoked_reason = $2
		where user_id = $1 and revoked = false
	`, userID, reason)
	return err
}

func (s *tokenStore) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		delete from refresh_tokens where expires_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
