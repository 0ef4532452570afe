package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestNewUserNormalizesEmail(t *testing.T) {
	u, err := NewUser("  Admin@Example.COM ", "hash", "  Ada  ", testNow)
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	if u.Email != "admin@example.com" {
		t.Fatalf("email not normalized: %q", u.Email)
	}
	if u.Name != "Ada" {
		t.Fatalf("name not trimmed: %q", u.Name)
	}
}

func TestNewUserValidation(t *testing.T) {
	cases := []struct {
		name     string
		email    string
		hash     string
		wantFail string
	}{
		{"empty email", "", "hash", "email"},
		{"invalid email", "not-an-email", "hash", "email"},
		{"empty hash", "a@b.example", "  ", "password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewUser(tc.email, tc.hash, "", testNow)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if _, ok := verr.Fields[tc.wantFail]; !ok {
				t.Fatalf("expected failure on field %q, got %v", tc.wantFail, verr.Fields)
			}
		})
	}
}

func TestUserAssignRoleRejectsDuplicate(t *testing.T) {
	u := &User{ID: "u1"}
	if err := u.AssignRole("r1", testNow); err != nil {
		t.Fatalf("first assign: %v", err)
	}
	err := u.AssignRole("r1", testNow)
	if !errors.Is(err, ErrDuplicateAssignment) {
		t.Fatalf("expected ErrDuplicateAssignment, got %v", err)
	}
	if !errors.Is(err, ErrDomainRule) {
		t.Fatalf("duplicate assignment should classify as domain rule violation")
	}
	if len(u.Roles) != 1 {
		t.Fatalf("expected single link, got %d", len(u.Roles))
	}
}

func TestUserSetRolesDiffsInsteadOfClearing(t *testing.T) {
	u := &User{ID: "u1"}
	u.SetRoles([]string{"r1", "r2"}, testNow)
	if len(u.Roles) != 2 {
		t.Fatalf("expected 2 links, got %d", len(u.Roles))
	}
	before := append([]UserRole(nil), u.Roles...)

	// Same set again: no link churn.
	u.SetRoles([]string{"r1", "r2"}, testNow)
	if len(u.Roles) != 2 || u.Roles[0] != before[0] || u.Roles[1] != before[1] {
		t.Fatalf("identical set should be a no-op, got %v", u.Roles)
	}

	// Replace r2 with r3: r1 link survives untouched.
	u.SetRoles([]string{"r1", "r3"}, testNow)
	if len(u.Roles) != 2 {
		t.Fatalf("expected 2 links, got %d", len(u.Roles))
	}
	if u.Roles[0] != before[0] {
		t.Fatalf("existing r1 link should be preserved")
	}
	if u.Roles[1].RoleID != "r3" {
		t.Fatalf("expected r3 link, got %v", u.Roles[1])
	}
}

func TestUserRemoveRoleMissing(t *testing.T) {
	u := &User{ID: "u1"}
	if err := u.RemoveRole("r1", testNow); !errors.Is(err, ErrMissingAssignment) {
		t.Fatalf("expected ErrMissingAssignment, got %v", err)
	}
}

func TestNewRoleLimits(t *testing.T) {
	if _, err := NewRole(strings.Repeat("x", 129), "", false, testNow); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected name length rejection, got %v", err)
	}
	if _, err := NewRole("Ops", strings.Repeat("x", 513), false, testNow); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected description length rejection, got %v", err)
	}
	if _, err := NewRole("  ", "", false, testNow); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected empty name rejection, got %v", err)
	}
}

func TestSystemRoleRejectsDirectMutation(t *testing.T) {
	r := &Role{ID: "r1", Name: SuperAdminRoleName, IsSystem: true}
	if err := r.AssignPermission("p1", testNow); err != nil {
		t.Fatalf("bootstrap assignment path must work on system roles: %v", err)
	}

	if err := r.UpdateDescription("new", testNow); !errors.Is(err, ErrSystemRole) {
		t.Fatalf("UpdateDescription: expected ErrSystemRole, got %v", err)
	}
	if err := r.RemovePermission("p1", testNow); !errors.Is(err, ErrSystemRole) {
		t.Fatalf("RemovePermission: expected ErrSystemRole, got %v", err)
	}
	if err := r.SetPermissions([]string{"p2"}, testNow); !errors.Is(err, ErrSystemRole) {
		t.Fatalf("SetPermissions: expected ErrSystemRole, got %v", err)
	}
	if !r.HasPermission("p1") {
		t.Fatalf("rejected mutations must leave links intact")
	}
}

func TestRoleAssignPermissionRejectsDuplicate(t *testing.T) {
	r := &Role{ID: "r1"}
	if err := r.AssignPermission("p1", testNow); err != nil {
		t.Fatalf("first assign: %v", err)
	}
	if err := r.AssignPermission("p1", testNow); !errors.Is(err, ErrDuplicateAssignment) {
		t.Fatalf("expected ErrDuplicateAssignment, got %v", err)
	}
}

func TestRefreshTokenValidity(t *testing.T) {
	tok := &RefreshToken{ExpiresAt: testNow.Add(time.Hour)}
	if !tok.Valid(testNow) {
		t.Fatalf("expected valid token")
	}
	if tok.Valid(testNow.Add(time.Hour)) {
		t.Fatalf("token at expiry instant must be invalid")
	}
	tok.Revoked = true
	if tok.Valid(testNow) {
		t.Fatalf("revoked token must be invalid")
	}
}
