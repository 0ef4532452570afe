package httpapi

import (
	"net/http"
	"strings"
	"time"

	"backoffice.games/internal/audit"
	"backoffice.games/internal/auth"
)

type createUserRequest struct {
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Name     string   `json:"name"`
	RoleIDs  []string `json:"role_ids"`
}

type updateUserRequest struct {
	Name string `json:"name"`
}

type updatePasswordRequest struct {
	Password string `json:"password"`
}

type setUserRolesRequest struct {
	RoleIDs []string `json:"role_ids"`
}

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	RoleIDs   []string  `json:"role_ids"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toUserResponse(u *auth.User) userResponse {
	roleIDs := make([]string, 0, len(u.Roles))
	for _, ur := range u.Roles {
		roleIDs = append(roleIDs, ur.RoleID)
	}
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		RoleIDs:   roleIDs,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !a.requirePermission(w, r, auth.PermUsersRead) {
			return
		}
		users, err := a.svc.ListUsers(r.Context())
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		out := make([]userResponse, 0, len(users))
		for _, u := range users {
			out = append(out, toUserResponse(u))
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		if !a.requirePermission(w, r, auth.PermUsersCreate) {
			return
		}
		var req createUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.svc.CreateUser(r.Context(), req.Email, req.Password, req.Name, req.RoleIDs)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.audit(r, "user.create", map[string]any{"user_id": user.ID, "email": user.Email})
		w.Header().Set("Location", "/api/users/"+user.ID)
		writeJSON(w, http.StatusCreated, toUserResponse(user))
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/users/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	userID := parts[0]

	switch {
	case len(parts) == 1:
		a.handleUser(w, r, userID)
	case len(parts) == 2 && parts[1] == "password":
		a.handleUserPassword(w, r, userID)
	case len(parts) == 2 && parts[1] == "roles":
		a.handleUserRoles(w, r, userID)
	case len(parts) == 3 && parts[1] == "roles":
		a.handleUserRole(w, r, userID, parts[2])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleUser(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodGet:
		if !a.requirePermission(w, r, auth.PermUsersRead) {
			return
		}
		user, err := a.svc.GetUser(r.Context(), userID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toUserResponse(user))
	case http.MethodPut:
		if !a.requirePermission(w, r, auth.PermUsersUpdate) {
			return
		}
		var req updateUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.svc.UpdateUserName(r.Context(), userID, req.Name)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.audit(r, "user.update", map[string]any{"user_id": userID})
		writeJSON(w, http.StatusOK, toUserResponse(user))
	case http.MethodDelete:
		if !a.requirePermission(w, r, auth.PermUsersDelete) {
			return
		}
		if err := a.svc.DeleteUser(r.Context(), userID); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.audit(r, "user.delete", map[string]any{"user_id": userID})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleUserPassword(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	if !a.requirePermission(w, r, auth.PermUsersUpdate) {
		return
	}
	var req updatePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.svc.UpdateUserPassword(r.Context(), userID, req.Password); err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.audit(r, "user.password.update", map[string]any{"user_id": userID})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleUserRoles(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodPut:
		if !a.requirePermission(w, r, auth.PermUsersManage) {
			return
		}
		var req setUserRolesRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.svc.SetUserRoles(r.Context(), userID, req.RoleIDs); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.audit(r, "user.roles.set", map[string]any{"user_id": userID, "count": len(req.RoleIDs)})
		w.WriteHeader(http.StatusNoContent)
	case http.MethodPost:
		if !a.requirePermission(w, r, auth.PermUsersManage) {
			return
		}
		var req assignRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.svc.AssignUserRole(r.Context(), userID, req.RoleID); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.audit(r, "user.roles.assign", map[string]any{"user_id": userID, "role_id": req.RoleID})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPut, http.MethodPost)
	}
}

func (a *API) handleUserRole(w http.ResponseWriter, r *http.Request, userID, roleID string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	if !a.requirePermission(w, r, auth.PermUsersManage) {
		return
	}
	if err := a.svc.RemoveUserRole(r.Context(), userID, roleID); err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.audit(r, "user.roles.remove", map[string]any{"user_id": userID, "role_id": roleID})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) audit(r *http.Request, event string, fields map[string]any) {
	_ = audit.LogEvent(r.Context(), event, fields)
}
