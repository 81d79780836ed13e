package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"accesshub.org/internal/access"
	"accesshub.org/internal/audit"
)

type createOrganizationRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type createUserRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	ExternalID string `json:"external_id"`
}

type addMemberRequest struct {
	UserID string `json:"user_id"`
	Tier   string `json:"tier"`
}

type listResponse[T any] struct {
	Items []T       `json:"items"`
	AsOf  time.Time `json:"as_of"`
}

func (a *API) handleOrganizationsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createOrganization(w, r)
	case http.MethodGet:
		a.listOrganizations(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) createOrganization(w http.ResponseWriter, r *http.Request) {
	var req createOrganizationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	org, err := a.service.CreateOrganization(r.Context(), req.Name, req.Slug)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "tenant.organization.create", map[string]any{
		"organization_id": org.ID,
		"slug":            org.Slug,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/organizations/%s", org.ID))
	writeJSON(w, http.StatusCreated, org)
}

func (a *API) listOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := a.service.ListOrganizations(r.Context())
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[access.Organization]{
		Items: orgs,
		AsOf:  time.Now().UTC(),
	})
}

// handleOrganizationScoped dispatches everything under /v1/organizations/{id}.
func (a *API) handleOrganizationScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/organizations/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	orgID := parts[0]

	switch len(parts) {
	case 1:
		a.getOrganization(w, r, orgID)
	case 2:
		switch parts[1] {
		case "members":
			a.addMember(w, r, orgID)
		case "users":
			a.listOrganizationUsers(w, r, orgID)
		case "roles":
			a.createRole(w, r, orgID)
		case "groups":
			a.createGroup(w, r, orgID)
		default:
			writeError(w, r, http.StatusNotFound, "resource not found")
		}
	case 4:
		sub := parts[1]
		resourceID := parts[2]
		leaf := parts[3]
		switch {
		case sub == "groups" && leaf == "roles":
			a.assignRoleToGroup(w, r, orgID, resourceID)
		case sub == "roles" && leaf == "permissions":
			a.assignPermissionToRole(w, r, orgID, resourceID)
		case sub == "users" && leaf == "roles":
			a.userRoles(w, r, orgID, resourceID)
		case sub == "users" && leaf == "groups":
			a.userGroups(w, r, orgID, resourceID)
		case sub == "users" && leaf == "permissions":
			a.assignPermissionToUser(w, r, orgID, resourceID)
		case sub == "users" && leaf == "effective-permissions":
			a.effectivePermissions(w, r, orgID, resourceID)
		default:
			writeError(w, r, http.StatusNotFound, "resource not found")
		}
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) getOrganization(w http.ResponseWriter, r *http.Request, orgID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	org, err := a.service.GetOrganization(r.Context(), orgID)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (a *API) addMember(w http.ResponseWriter, r *http.Request, orgID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req addMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	m, err := a.service.AddMember(r.Context(), orgID, req.UserID, access.Tier(req.Tier))
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "tenant.member.add", map[string]any{
		"organization_id": orgID,
		"user_id":         m.UserID,
		"tier":            string(m.Tier),
	})
	writeJSON(w, http.StatusCreated, m)
}

func (a *API) listOrganizationUsers(w http.ResponseWriter, r *http.Request, orgID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, err := listParamsFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	users, err := a.service.ListUsers(r.Context(), orgID, p)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[access.User]{
		Items: users,
		AsOf:  time.Now().UTC(),
	})
}

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.service.CreateUser(r.Context(), req.Name, req.Email, req.ExternalID)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "tenant.user.create", map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/users/%s", user.ID))
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	path = strings.Trim(path, "/")
	if path == "" || strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	user, err := a.service.GetUser(r.Context(), path)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func listParamsFromQuery(r *http.Request) (access.ListParams, error) {
	q := r.URL.Query()
	limit, err := parsePositiveInt(q.Get("limit"), "limit", 0, 1, 100)
	if err != nil {
		return access.ListParams{}, err
	}
	offset, err := parsePositiveInt(q.Get("offset"), "offset", 0, 0, 1<<30)
	if err != nil {
		return access.ListParams{}, err
	}
	return access.ListParams{
		Search:    strings.TrimSpace(q.Get("search")),
		Limit:     limit,
		Offset:    offset,
		SortBy:    strings.TrimSpace(q.Get("sort")),
		SortOrder: access.SortOrder(strings.TrimSpace(q.Get("order"))),
	}, nil
}
