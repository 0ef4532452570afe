package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"backoffice.games/internal/auth"
)

type testEnv struct {
	api   *API
	svc   *auth.Service
	store *auth.MemStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := auth.NewMemStore()
	svc, err := auth.NewService(store,
		auth.WithSigningKey("httpapi-test-signing-key"),
		auth.WithIssuer("backoffice-test"),
		auth.WithAudience("backoffice-spa"),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if err := svc.Bootstrap(context.Background(), auth.BootstrapConfig{
		SuperAdminEmail:    "root@example.com",
		SuperAdminPassword: "root-secret",
		SuperAdminName:     "Root",
	}); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	return &testEnv{api: New(svc, ReadyProbe{}, "test"), svc: svc, store: store}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.api.withAuth(e.api.mux).ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return out
}

func (e *testEnv) login(t *testing.T, email, password string) tokenPairResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: email, Password: password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", rec.Code, rec.Body.String())
	}
	return decodeBody[tokenPairResponse](t, rec)
}

func TestLoginEndpoint(t *testing.T) {
	env := newTestEnv(t)
	pair := env.login(t, "root@example.com", "root-secret")
	if pair.AccessToken == "" || pair.RefreshToken == "" || pair.TokenType != "Bearer" {
		t.Fatalf("unexpected token pair: %+v", pair)
	}
}

func TestLoginFailureIsGeneric(t *testing.T) {
	env := newTestEnv(t)
	unknown := env.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: "nobody@example.com", Password: "x"})
	wrong := env.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: "root@example.com", Password: "wrong"})
	if unknown.Code != http.StatusUnauthorized || wrong.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", unknown.Code, wrong.Code)
	}
	var a, b map[string]any
	_ = json.Unmarshal(unknown.Body.Bytes(), &a)
	_ = json.Unmarshal(wrong.Body.Bytes(), &b)
	if a["error"] != b["error"] {
		t.Fatalf("login failures are distinguishable: %v vs %v", a["error"], b["error"])
	}
}

func TestRefreshEndpointRotates(t *testing.T) {
	env := newTestEnv(t)
	pair := env.login(t, "root@example.com", "root-secret")

	rec := env.do(t, http.MethodPost, "/api/auth/refresh", "", refreshRequest{RefreshToken: pair.RefreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: status %d body %s", rec.Code, rec.Body.String())
	}
	next := decodeBody[tokenPairResponse](t, rec)
	if next.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh must rotate the refresh token")
	}

	reuse := env.do(t, http.MethodPost, "/api/auth/refresh", "", refreshRequest{RefreshToken: pair.RefreshToken})
	if reuse.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on reuse, got %d", reuse.Code)
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/users", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/users", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rec.Code)
	}
}

func TestPermissionDeniedIsForbidden(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// A user with no roles at all.
	if _, err := env.svc.CreateUser(ctx, "plain@example.com", "s3cret", "Plain", nil); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	pair := env.login(t, "plain@example.com", "s3cret")

	rec := env.do(t, http.MethodGet, "/api/users", pair.AccessToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body %s", rec.Code, rec.Body.String())
	}
}

func TestSuperAdminBypassesPermissionChecks(t *testing.T) {
	env := newTestEnv(t)
	pair := env.login(t, "root@example.com", "root-secret")

	rec := env.do(t, http.MethodGet, "/api/users", pair.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body %s", rec.Code, rec.Body.String())
	}
	users := decodeBody[[]userResponse](t, rec)
	if len(users) != 1 || users[0].Email != "root@example.com" {
		t.Fatalf("unexpected users: %+v", users)
	}
}

func TestUserLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	pair := env.login(t, "root@example.com", "root-secret")

	rec := env.do(t, http.MethodPost, "/api/users", pair.AccessToken, createUserRequest{
		Email:    "ada@example.com",
		Password: "s3cret",
		Name:     "Ada",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[userResponse](t, rec)
	if created.Email != "ada@example.com" || created.ID == "" {
		t.Fatalf("unexpected user: %+v", created)
	}
	if loc := rec.Header().Get("Location"); loc != "/api/users/"+created.ID {
		t.Fatalf("unexpected Location: %s", loc)
	}

	rec = env.do(t, http.MethodPut, "/api/users/"+created.ID, pair.AccessToken, updateUserRequest{Name: "Ada L."})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d", rec.Code)
	}
	if got := decodeBody[userResponse](t, rec); got.Name != "Ada L." {
		t.Fatalf("name not updated: %+v", got)
	}

	rec = env.do(t, http.MethodDelete, "/api/users/"+created.ID, pair.AccessToken, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/users/"+created.ID, pair.AccessToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestValidationErrorsCarryFieldDetail(t *testing.T) {
	env := newTestEnv(t)
	pair := env.login(t, "root@example.com", "root-secret")

	rec := env.do(t, http.MethodPost, "/api/users", pair.AccessToken, createUserRequest{
		Email:    "not-an-email",
		Password: "s3cret",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decodeBody[map[string]any](t, rec)
	fields, ok := body["fields"].(map[string]any)
	if !ok {
		t.Fatalf("expected fields map, got %v", body)
	}
	if _, ok := fields["email"]; !ok {
		t.Fatalf("expected email field error, got %v", fields)
	}
}

func TestSystemRoleMutationRejected(t *testing.T) {
	env := newTestEnv(t)
	pair := env.login(t, "root@example.com", "root-secret")

	rec := env.do(t, http.MethodGet, "/api/roles", pair.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list roles: status %d", rec.Code)
	}
	roles := decodeBody[[]roleResponse](t, rec)
	var superID string
	for _, role := range roles {
		if role.Name == auth.SuperAdminRoleName {
			superID = role.ID
		}
	}
	if superID == "" {
		t.Fatalf("SuperAdmin role not listed: %+v", roles)
	}

	rec = env.do(t, http.MethodPut, "/api/roles/"+superID, pair.AccessToken, updateRoleRequest{Description: "renamed"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for system role mutation, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodDelete, "/api/roles/"+superID, pair.AccessToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for system role delete, got %d", rec.Code)
	}
}

func TestRolePermissionFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	pair := env.login(t, "root@example.com", "root-secret")

	rec := env.do(t, http.MethodPost, "/api/roles", pair.AccessToken, createRoleRequest{Name: "auditors", Description: "read only"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create role: status %d body %s", rec.Code, rec.Body.String())
	}
	role := decodeBody[roleResponse](t, rec)

	rec = env.do(t, http.MethodPut, "/api/roles/"+role.ID+"/permissions", pair.AccessToken,
		setRolePermissionsRequest{Permissions: []string{auth.PermUsersRead, auth.PermRolesRead}})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("set permissions: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/roles/"+role.ID, pair.AccessToken, nil)
	got := decodeBody[roleResponse](t, rec)
	if len(got.PermissionIDs) != 2 {
		t.Fatalf("expected 2 permission links, got %+v", got.PermissionIDs)
	}

	// Unknown keys are a validation failure, not a silent skip.
	rec = env.do(t, http.MethodPut, "/api/roles/"+role.ID+"/permissions", pair.AccessToken,
		setRolePermissionsRequest{Permissions: []string{"made.up"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown key, got %d", rec.Code)
	}
}

func TestPermissionCatalogEndpoints(t *testing.T) {
	env := newTestEnv(t)
	pair := env.login(t, "root@example.com", "root-secret")

	rec := env.do(t, http.MethodGet, "/api/permissions", pair.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list permissions: status %d", rec.Code)
	}
	perms := decodeBody[[]permissionResponse](t, rec)
	if len(perms) != len(auth.Catalog()) {
		t.Fatalf("expected %d permissions, got %d", len(auth.Catalog()), len(perms))
	}

	rec = env.do(t, http.MethodGet, "/api/permissions/groups", pair.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("groups: status %d", rec.Code)
	}
	body := decodeBody[map[string]map[string][]string](t, rec)
	if len(body["groups"]["game_management"]) == 0 {
		t.Fatalf("expected game_management group, got %v", body)
	}
}

func TestHealthAndReadyArePublic(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := env.do(t, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d", path, rec.Code)
		}
	}
}
