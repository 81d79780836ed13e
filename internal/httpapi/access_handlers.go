package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"accesshub.org/internal/access"
	"accesshub.org/internal/audit"
)

type createNamedRequest struct {
	Name string `json:"name"`
}

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

type assignGroupRequest struct {
	GroupID string `json:"group_id"`
}

type assignPermissionRequest struct {
	PermissionID string `json:"permission_id"`
}

type effectivePermissionsResponse struct {
	UserID         string              `json:"user_id"`
	OrganizationID string              `json:"organization_id"`
	Permissions    map[string][]string `json:"permissions"`
	AsOf           time.Time           `json:"as_of"`
}

func (a *API) createRole(w http.ResponseWriter, r *http.Request, orgID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req createNamedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := a.service.CreateRole(r.Context(), actor, orgID, req.Name)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "access.role.create", map[string]any{
		"organization_id": orgID,
		"role_id":         role.ID,
		"name":            role.Name,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/organizations/%s/roles/%s", orgID, role.ID))
	writeJSON(w, http.StatusCreated, role)
}

func (a *API) createGroup(w http.ResponseWriter, r *http.Request, orgID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req createNamedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	group, err := a.service.CreateGroup(r.Context(), actor, orgID, req.Name)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "access.group.create", map[string]any{
		"organization_id": orgID,
		"group_id":        group.ID,
		"name":            group.Name,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/organizations/%s/groups/%s", orgID, group.ID))
	writeJSON(w, http.StatusCreated, group)
}

func (a *API) assignRoleToGroup(w http.ResponseWriter, r *http.Request, orgID, groupID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req assignRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.service.AssignRoleToGroup(r.Context(), actor, orgID, groupID, req.RoleID); err != nil {
		handleAccessError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "access.group.assign_role", map[string]any{
		"organization_id": orgID,
		"group_id":        groupID,
		"role_id":         req.RoleID,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) assignPermissionToRole(w http.ResponseWriter, r *http.Request, orgID, roleID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req assignPermissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.service.AssignPermissionToRole(r.Context(), actor, orgID, roleID, req.PermissionID); err != nil {
		handleAccessError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "access.role.assign_permission", map[string]any{
		"organization_id": orgID,
		"role_id":         roleID,
		"permission_id":   req.PermissionID,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) assignPermissionToUser(w http.ResponseWriter, r *http.Request, orgID, userID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req assignPermissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.service.AssignPermissionToUser(r.Context(), actor, orgID, userID, req.PermissionID); err != nil {
		handleAccessError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "access.user.assign_permission", map[string]any{
		"organization_id": orgID,
		"user_id":         userID,
		"permission_id":   req.PermissionID,
	})
	w.WriteHeader(http.StatusNoContent)
}

// userRoles serves both the direct role assignment and the role listing
// for one user, depending on the method.
func (a *API) userRoles(w http.ResponseWriter, r *http.Request, orgID, userID string) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req assignRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.service.AssignRoleToUser(r.Context(), actor, orgID, userID, req.RoleID); err != nil {
			handleAccessError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "access.user.assign_role", map[string]any{
			"organization_id": orgID,
			"user_id":         userID,
			"role_id":         req.RoleID,
		})
		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet:
		p, err := listParamsFromQuery(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		roles, err := a.service.GetRolesForUser(r.Context(), actor, orgID, userID, p)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse[access.Role]{
			Items: roles,
			AsOf:  time.Now().UTC(),
		})
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) userGroups(w http.ResponseWriter, r *http.Request, orgID, userID string) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req assignGroupRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.service.AssignUserToGroup(r.Context(), actor, orgID, userID, req.GroupID); err != nil {
			handleAccessError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "access.user.assign_group", map[string]any{
			"organization_id": orgID,
			"user_id":         userID,
			"group_id":        req.GroupID,
		})
		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet:
		p, err := listParamsFromQuery(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		groups, err := a.service.GetGroupsForUser(r.Context(), actor, orgID, userID, p)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse[access.Group]{
			Items: groups,
			AsOf:  time.Now().UTC(),
		})
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) effectivePermissions(w http.ResponseWriter, r *http.Request, orgID, userID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	perms, err := a.service.GetEffectivePermissions(r.Context(), actor, userID, orgID)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, effectivePermissionsResponse{
		UserID:         userID,
		OrganizationID: orgID,
		Permissions:    perms,
		AsOf:           time.Now().UTC(),
	})
}

func (a *API) handlePermissionCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	catalog, err := a.service.ListPermissionCatalog(r.Context())
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[access.ModuleActions]{
		Items: catalog,
		AsOf:  time.Now().UTC(),
	})
}

func handleAccessError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, access.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, access.ErrUnauthorized):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, access.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, access.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "access operation failed")
	}
}
