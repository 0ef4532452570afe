package httpapi

import (
	"net/http"
	"strings"
	"time"

	"backoffice.games/internal/auth"
)

type createRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateRoleRequest struct {
	Description string `json:"description"`
}

type setRolePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

type roleResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	IsSystem      bool      `json:"is_system"`
	PermissionIDs []string  `json:"permission_ids"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toRoleResponse(role *auth.Role) roleResponse {
	permIDs := make([]string, 0, len(role.Permissions))
	for _, rp := range role.Permissions {
		permIDs = append(permIDs, rp.PermissionID)
	}
	return roleResponse{
		ID:            role.ID,
		Name:          role.Name,
		Description:   role.Description,
		IsSystem:      role.IsSystem,
		PermissionIDs: permIDs,
		CreatedAt:     role.CreatedAt,
		UpdatedAt:     role.UpdatedAt,
	}
}

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !a.requirePermission(w, r, auth.PermRolesRead) {
			return
		}
		roles, err := a.svc.ListRoles(r.Context())
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		out := make([]roleResponse, 0, len(roles))
		for _, role := range roles {
			out = append(out, toRoleResponse(role))
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		if !a.requirePermission(w, r, auth.PermRolesCreate) {
			return
		}
		var req createRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.svc.CreateRole(r.Context(), req.Name, req.Description)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.audit(r, "role.create", map[string]any{"role_id": role.ID, "name": role.Name})
		w.Header().Set("Location", "/api/roles/"+role.ID)
		writeJSON(w, http.StatusCreated, toRoleResponse(role))
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/roles/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	roleID := parts[0]

	switch {
	case len(parts) == 1:
		a.handleRole(w, r, roleID)
	case len(parts) == 2 && parts[1] == "permissions":
		a.handleRolePermissions(w, r, roleID)
	case len(parts) == 3 && parts[1] == "permissions":
		a.handleRolePermission(w, r, roleID, parts[2])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleRole(w http.ResponseWriter, r *http.Request, roleID string) {
	switch r.Method {
	case http.MethodGet:
		if !a.requirePermission(w, r, auth.PermRolesRead) {
			return
		}
		role, err := a.svc.GetRole(r.Context(), roleID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toRoleResponse(role))
	case http.MethodPut:
		if !a.requirePermission(w, r, auth.PermRolesUpdate) {
			return
		}
		var req updateRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.svc.UpdateRoleDescription(r.Context(), roleID, req.Description)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.audit(r, "role.update", map[string]any{"role_id": roleID})
		writeJSON(w, http.StatusOK, toRoleResponse(role))
	case http.MethodDelete:
		if !a.requirePermission(w, r, auth.PermRolesDelete) {
			return
		}
		if err := a.svc.DeleteRole(r.Context(), roleID); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.audit(r, "role.delete", map[string]any{"role_id": roleID})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleRolePermissions(w http.ResponseWriter, r *http.Request, roleID string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	if !a.requirePermission(w, r, auth.PermRolesManage) {
		return
	}
	var req setRolePermissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.svc.SetRolePermissions(r.Context(), roleID, req.Permissions); err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.audit(r, "role.permissions.set", map[string]any{"role_id": roleID, "count": len(req.Permissions)})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRolePermission(w http.ResponseWriter, r *http.Request, roleID, permissionID string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	if !a.requirePermission(w, r, auth.PermRolesManage) {
		return
	}
	if err := a.svc.RemoveRolePermission(r.Context(), roleID, permissionID); err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.audit(r, "role.permissions.remove", map[string]any{"role_id": roleID, "permission_id": permissionID})
	w.WriteHeader(http.StatusNoContent)
}
