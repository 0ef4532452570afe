package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"backoffice.games/internal/auth"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

func expectMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserFindNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select id, email, password_hash, name, created_at, updated_at").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Users(context.Background()).Find(context.Background(), "missing")
	if !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	expectMet(t, mock)
}

func TestUserFindByEmailLoadsRoleLinks(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	mock.ExpectQuery("select id, email, password_hash, name, created_at, updated_at").
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "name", "created_at", "updated_at"}).
			AddRow("u1", "ada@example.com", "hash", "Ada", now, now))
	mock.ExpectQuery("select role_id from user_roles").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"role_id"}).AddRow("r1").AddRow("r2"))

	user, err := store.Users(context.Background()).FindByEmail(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if len(user.Roles) != 2 || user.Roles[0].RoleID != "r1" || user.Roles[1].RoleID != "r2" {
		t.Fatalf("unexpected role links: %+v", user.Roles)
	}
	expectMet(t, mock)
}

func TestUserCreateMapsUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec("insert into users").
		WithArgs("u1", "ada@example.com", "hash", "Ada", now).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
	mock.ExpectRollback()

	err := store.Users(context.Background()).Create(context.Background(), &auth.User{
		ID: "u1", Email: "ada@example.com", PasswordHash: "hash", Name: "Ada", CreatedAt: now,
	})
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	expectMet(t, mock)
}

func TestUserSetRolesWritesOnlyTheDiff(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("select 1 from users").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery("select role_id from user_roles").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"role_id"}).AddRow("r1").AddRow("r2"))
	// r2 is kept untouched; only r1 is removed and r3 inserted.
	mock.ExpectExec("delete from user_roles").
		WithArgs("u1", "r1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into user_roles").
		WithArgs("u1", "r3").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.Users(context.Background()).SetRoles(context.Background(), "u1", []string{"r2", "r3"}); err != nil {
		t.Fatalf("SetRoles: %v", err)
	}
	expectMet(t, mock)
}

func TestRoleForUserJoinsLinkTable(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	mock.ExpectQuery("from user_roles ur").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "is_system", "created_at", "updated_at"}).
			AddRow("r1", "SuperAdmin", "", true, now, now))

	roles, err := store.Roles(context.Background()).ForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ForUser: %v", err)
	}
	if len(roles) != 1 || roles[0].Name != "SuperAdmin" || !roles[0].IsSystem {
		t.Fatalf("unexpected roles: %+v", roles)
	}
	expectMet(t, mock)
}

func TestPermissionEnsureIsAdditive(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("insert into permissions").
		WithArgs("p1", "users.read", "users", "read", "Permission: users.read").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into permissions").
		WithArgs("p2", "users.update", "users", "update", "Permission: users.update").
		WillReturnResult(sqlmock.NewResult(0, 0)) // already present, conflict skipped
	mock.ExpectCommit()

	err := store.Permissions(context.Background()).Ensure(context.Background(), []auth.Permission{
		{ID: "p1", Key: "users.read", Resource: "users", Action: "read", Description: "Permission: users.read"},
		{ID: "p2", Key: "users.update", Resource: "users", Action: "update", Description: "Permission: users.update"},
	})
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	expectMet(t, mock)
}

func TestRotateIsAtomic(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	rep := &auth.RefreshToken{ID: "t2", UserID: "u1", Token: "new-token", ExpiresAt: now.Add(time.Hour), CreatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec("update refresh_tokens").
		WithArgs("old-token", "used for refresh").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into refresh_tokens").
		WithArgs("t2", "u1", "new-token", rep.ExpiresAt, rep.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.RefreshTokens(context.Background()).Rotate(context.Background(), "old-token", "used for refresh", rep); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	expectMet(t, mock)
}

func TestRotateConsumedTokenRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	rep := &auth.RefreshToken{ID: "t2", UserID: "u1", Token: "new-token", ExpiresAt: now.Add(time.Hour), CreatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec("update refresh_tokens").
		WithArgs("old-token", "used for refresh").
		WillReturnResult(sqlmock.NewResult(0, 0)) // already revoked
	mock.ExpectRollback()

	err := store.RefreshTokens(context.Background()).Rotate(context.Background(), "old-token", "used for refresh", rep)
	if !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	expectMet(t, mock)
}

func TestPurgeExpiredReturnsCount(t *testing.T) {
	store, mock := newMockStore(t)
	cutoff := time.Now().UTC()
	mock.ExpectExec("delete from refresh_tokens").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	removed, err := store.RefreshTokens(context.Background()).PurgeExpired(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
	expectMet(t, mock)
}
