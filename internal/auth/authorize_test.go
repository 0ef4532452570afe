package auth

import "testing"

func TestAuthorize(t *testing.T) {
	withPerms := func(sub string, super bool, perms ...string) *AccessClaims {
		c := &AccessClaims{Permissions: permissionList(perms)}
		c.Subject = sub
		if super {
			c.SuperAdmin = "true"
		}
		return c
	}

	cases := []struct {
		name   string
		claims *AccessClaims
		key    string
		want   bool
	}{
		{"nil claims denied", nil, PermUsersRead, false},
		{"unauthenticated denied", withPerms("", false, PermUsersRead), PermUsersRead, false},
		{"exact match allowed", withPerms("u1", false, PermUsersRead), PermUsersRead, true},
		{"missing key denied", withPerms("u1", false, PermUsersRead), PermGMConfigDelete, false},
		{"no prefix semantics", withPerms("u1", false, "users"), PermUsersRead, false},
		{"superadmin bypasses keys", withPerms("u1", true), PermGMConfigDelete, true},
		{"superadmin literal must be true", func() *AccessClaims {
			c := withPerms("u1", false)
			c.SuperAdmin = "1"
			return c
		}(), PermUsersRead, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Authorize(tc.claims, tc.key); got != tc.want {
				t.Fatalf("Authorize = %v, want %v", got, tc.want)
			}
		})
	}
}
