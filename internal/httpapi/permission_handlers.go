package httpapi

import (
	"net/http"

	"backoffice.games/internal/auth"
)

type permissionResponse struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	Resource    string `json:"resource"`
	Action      string `json:"action"`
	Description string `json:"description,omitempty"`
}

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.requirePermission(w, r, auth.PermRolesRead) {
		return
	}
	perms, err := a.svc.ListPermissions(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	out := make([]permissionResponse, 0, len(perms))
	for _, p := range perms {
		out = append(out, permissionResponse{
			ID:          p.ID,
			Key:         p.Key,
			Resource:    p.Resource,
			Action:      p.Action,
			Description: p.Description,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handlePermissionGroups serves the static catalog grouping used by the
// role management UI to render permission checkboxes.
func (a *API) handlePermissionGroups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.requirePermission(w, r, auth.PermRolesRead) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": auth.Groups})
}
