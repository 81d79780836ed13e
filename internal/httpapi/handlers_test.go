package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"accesshub.org/internal/access"
	"accesshub.org/internal/auth"
	"accesshub.org/internal/ids"
)

// memStore is an in-memory access.Store used to exercise the HTTP layer
// end to end without a database.
type memStore struct {
	mu sync.Mutex

	orgs    map[string]access.Organization
	users   map[string]access.User
	members map[string]access.Membership
	roles   map[string]access.Role
	groups  map[string]access.Group
	modules map[string]access.FeatureModule
	perms   map[string]access.Permission

	userRoles  map[string]struct{}
	groupRoles map[string]struct{}
	userGroups map[string]struct{}
	rolePerms  map[string]struct{}
	userPerms  map[string]struct{}
}

func newMemStore() *memStore {
	return &memStore{
		orgs:       map[string]access.Organization{},
		users:      map[string]access.User{},
		members:    map[string]access.Membership{},
		roles:      map[string]access.Role{},
		groups:     map[string]access.Group{},
		modules:    map[string]access.FeatureModule{},
		perms:      map[string]access.Permission{},
		userRoles:  map[string]struct{}{},
		groupRoles: map[string]struct{}{},
		userGroups: map[string]struct{}{},
		rolePerms:  map[string]struct{}{},
		userPerms:  map[string]struct{}{},
	}
}

func pairKey(a, b string) string { return a + "|" + b }

func (s *memStore) CreateOrganization(_ context.Context, org *access.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.orgs {
		if existing.Slug == org.Slug {
			return &access.ConflictError{Kind: "organization", Key: org.Slug}
		}
	}
	org.ID = ids.New()
	org.CreatedAt = time.Now().UTC()
	org.UpdatedAt = org.CreatedAt
	s.orgs[org.ID] = *org
	return nil
}

func (s *memStore) GetOrganization(_ context.Context, id string) (access.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[id]
	if !ok {
		return access.Organization{}, &access.NotFoundError{Kind: "organization", ID: id}
	}
	return org, nil
}

func (s *memStore) ListOrganizations(_ context.Context) ([]access.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]access.Organization, 0, len(s.orgs))
	for _, org := range s.orgs {
		out = append(out, org)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) CreateUser(_ context.Context, u *access.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return &access.ConflictError{Kind: "user", Key: u.Email}
		}
	}
	u.ID = ids.New()
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = *u
	return nil
}

func (s *memStore) GetUser(_ context.Context, id string) (access.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return access.User{}, &access.NotFoundError{Kind: "user", ID: id}
	}
	return u, nil
}

func (s *memStore) ListUsers(_ context.Context, orgID string, _ access.ListParams) ([]access.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []access.User
	for _, m := range s.members {
		if m.OrganizationID != orgID {
			continue
		}
		if u, ok := s.users[m.UserID]; ok {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) AddMember(_ context.Context, m *access.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[m.UserID]; !ok {
		return &access.NotFoundError{Kind: "user", ID: m.UserID}
	}
	if _, ok := s.orgs[m.OrganizationID]; !ok {
		return &access.NotFoundError{Kind: "organization", ID: m.OrganizationID}
	}
	key := pairKey(m.UserID, m.OrganizationID)
	if _, dup := s.members[key]; dup {
		return &access.ConflictError{Kind: "membership", Key: key}
	}
	m.CreatedAt = time.Now().UTC()
	s.members[key] = *m
	return nil
}

func (s *memStore) Membership(_ context.Context, userID, orgID string) (access.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[pairKey(userID, orgID)]
	if !ok {
		return access.Membership{}, &access.NotFoundError{Kind: "membership", ID: userID}
	}
	return m, nil
}

func (s *memStore) CreateRole(_ context.Context, role *access.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[role.OrganizationID]; !ok {
		return &access.NotFoundError{Kind: "organization", ID: role.OrganizationID}
	}
	for _, existing := range s.roles {
		if existing.OrganizationID == role.OrganizationID && existing.Name == role.Name {
			return &access.ConflictError{Kind: "role", Key: role.Name}
		}
	}
	role.ID = ids.New()
	role.CreatedAt = time.Now().UTC()
	role.UpdatedAt = role.CreatedAt
	s.roles[role.ID] = *role
	return nil
}

func (s *memStore) CreateGroup(_ context.Context, group *access.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[group.OrganizationID]; !ok {
		return &access.NotFoundError{Kind: "organization", ID: group.OrganizationID}
	}
	for _, existing := range s.groups {
		if existing.OrganizationID == group.OrganizationID && existing.Name == group.Name {
			return &access.ConflictError{Kind: "group", Key: group.Name}
		}
	}
	group.ID = ids.New()
	group.CreatedAt = time.Now().UTC()
	group.UpdatedAt = group.CreatedAt
	s.groups[group.ID] = *group
	return nil
}

func (s *memStore) assignPair(set map[string]struct{}, kind, a, b string) error {
	key := pairKey(a, b)
	if _, dup := set[key]; dup {
		return &access.ConflictError{Kind: kind, Key: key}
	}
	set[key] = struct{}{}
	return nil
}

func (s *memStore) AssignRoleToUser(_ context.Context, userID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return &access.NotFoundError{Kind: "user", ID: userID}
	}
	if _, ok := s.roles[roleID]; !ok {
		return &access.NotFoundError{Kind: "role", ID: roleID}
	}
	return s.assignPair(s.userRoles, "user role", userID, roleID)
}

func (s *memStore) AssignRoleToGroup(_ context.Context, groupID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[groupID]; !ok {
		return &access.NotFoundError{Kind: "group", ID: groupID}
	}
	if _, ok := s.roles[roleID]; !ok {
		return &access.NotFoundError{Kind: "role", ID: roleID}
	}
	return s.assignPair(s.groupRoles, "group role", groupID, roleID)
}

func (s *memStore) AssignUserToGroup(_ context.Context, userID, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return &access.NotFoundError{Kind: "user", ID: userID}
	}
	if _, ok := s.groups[groupID]; !ok {
		return &access.NotFoundError{Kind: "group", ID: groupID}
	}
	return s.assignPair(s.userGroups, "user group", userID, groupID)
}

func (s *memStore) AssignPermissionToRole(_ context.Context, roleID, permissionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID]; !ok {
		return &access.NotFoundError{Kind: "role", ID: roleID}
	}
	if _, ok := s.perms[permissionID]; !ok {
		return &access.NotFoundError{Kind: "permission", ID: permissionID}
	}
	return s.assignPair(s.rolePerms, "role permission", roleID, permissionID)
}

func (s *memStore) AssignPermissionToUser(_ context.Context, userID, permissionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return &access.NotFoundError{Kind: "user", ID: userID}
	}
	if _, ok := s.perms[permissionID]; !ok {
		return &access.NotFoundError{Kind: "permission", ID: permissionID}
	}
	return s.assignPair(s.userPerms, "user permission", userID, permissionID)
}

func (s *memStore) RolesForUser(_ context.Context, orgID, userID string, onlyAssigned bool, _ access.ListParams) ([]access.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []access.Role
	for _, role := range s.roles {
		if role.OrganizationID != orgID {
			continue
		}
		if onlyAssigned {
			if _, ok := s.userRoles[pairKey(userID, role.ID)]; !ok {
				continue
			}
		}
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) GroupsForUser(_ context.Context, orgID, userID string, onlyAssigned bool, _ access.ListParams) ([]access.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []access.Group
	for _, group := range s.groups {
		if group.OrganizationID != orgID {
			continue
		}
		if onlyAssigned {
			if _, ok := s.userGroups[pairKey(userID, group.ID)]; !ok {
				continue
			}
		}
		out = append(out, group)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) DirectGrants(_ context.Context, userID string) ([]access.GrantedAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []access.GrantedAction
	for key := range s.userPerms {
		parts := strings.SplitN(key, "|", 2)
		if parts[0] != userID {
			continue
		}
		p := s.perms[parts[1]]
		out = append(out, access.GrantedAction{ModuleID: p.ModuleID, Action: p.Action})
	}
	return out, nil
}

func (s *memStore) RoleGrants(_ context.Context, userID, orgID string) ([]access.GrantedAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []access.GrantedAction
	for urKey := range s.userRoles {
		ur := strings.SplitN(urKey, "|", 2)
		if ur[0] != userID {
			continue
		}
		if s.roles[ur[1]].OrganizationID != orgID {
			continue
		}
		for rpKey := range s.rolePerms {
			rp := strings.SplitN(rpKey, "|", 2)
			if rp[0] != ur[1] {
				continue
			}
			p := s.perms[rp[1]]
			out = append(out, access.GrantedAction{ModuleID: p.ModuleID, Action: p.Action})
		}
	}
	return out, nil
}

func (s *memStore) GroupGrants(_ context.Context, userID, orgID string) ([]access.GrantedAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []access.GrantedAction
	for ugKey := range s.userGroups {
		ug := strings.SplitN(ugKey, "|", 2)
		if ug[0] != userID {
			continue
		}
		if s.groups[ug[1]].OrganizationID != orgID {
			continue
		}
		for grKey := range s.groupRoles {
			gr := strings.SplitN(grKey, "|", 2)
			if gr[0] != ug[1] {
				continue
			}
			for rpKey := range s.rolePerms {
				rp := strings.SplitN(rpKey, "|", 2)
				if rp[0] != gr[1] {
					continue
				}
				p := s.perms[rp[1]]
				out = append(out, access.GrantedAction{ModuleID: p.ModuleID, Action: p.Action})
			}
		}
	}
	return out, nil
}

func (s *memStore) FeatureModuleNames(_ context.Context, moduleIDs []string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(moduleIDs))
	for _, id := range moduleIDs {
		if m, ok := s.modules[id]; ok {
			out[id] = m.Name
		}
	}
	return out, nil
}

func (s *memStore) ListPermissions(_ context.Context) ([]access.Permission, []access.FeatureModule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	perms := make([]access.Permission, 0, len(s.perms))
	for _, p := range s.perms {
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool {
		if perms[i].ModuleID != perms[j].ModuleID {
			return perms[i].ModuleID < perms[j].ModuleID
		}
		return perms[i].Action < perms[j].Action
	})
	modules := make([]access.FeatureModule, 0, len(s.modules))
	for _, m := range s.modules {
		modules = append(modules, m)
	}
	return perms, modules, nil
}

// seedPermission registers a feature module (if new) and one permission
// under it, returning the permission id.
func (s *memStore) seedPermission(moduleName, action string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var moduleID string
	for id, m := range s.modules {
		if m.Name == moduleName {
			moduleID = id
			break
		}
	}
	if moduleID == "" {
		moduleID = ids.New()
		s.modules[moduleID] = access.FeatureModule{ID: moduleID, Name: moduleName}
	}
	permID := ids.New()
	s.perms[permID] = access.Permission{ID: permID, ModuleID: moduleID, Action: action}
	return permID
}

// --- harness ---

type apiClient struct {
	baseURL string
	client  *http.Client
	store   *memStore
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("ACCESSHUB_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()

	store := newMemStore()
	service, err := access.NewService(store)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	api := New(service, ReadyProbe{}, "test")
	api.rateBurst = 1000
	api.ratePerSecond = 1000

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		store:   store,
		t:       t,
	}
}

func authHeaderFor(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func (c *apiClient) obtainToken(user string, superAdmin bool) string {
	c.t.Helper()
	resp := c.post("/v1/auth/token", map[string]any{
		"user":        user,
		"super_admin": superAdmin,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected token status: %d", resp.StatusCode)
	}
	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode token response: %v", err)
	}
	if payload.Token == "" {
		c.t.Fatalf("empty token issued")
	}
	return payload.Token
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

// --- basic endpoints ---

func TestHealthAndInfo(t *testing.T) {
	c := newTestAPI(t)

	resp := c.get("/healthz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status: %d", resp.StatusCode)
	}
	health := decode[map[string]any](t, resp)
	if health["status"] != "ok" || health["version"] != "test" {
		t.Fatalf("unexpected health payload: %v", health)
	}

	resp = c.get("/readyz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.get("/v1/info", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("info status: %d", resp.StatusCode)
	}
	info := decode[map[string]any](t, resp)
	if info["name"] != "accesshub-api" {
		t.Fatalf("unexpected info payload: %v", info)
	}
}

func TestProtectedPathsRequireToken(t *testing.T) {
	c := newTestAPI(t)

	resp := c.get("/v1/permissions", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp2 := c.get("/v1/permissions", nil, authHeaderFor("not-a-token"))
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", resp2.StatusCode)
	}
}

func TestAuthTokenValidation(t *testing.T) {
	c := newTestAPI(t)

	resp := c.post("/v1/auth/token", map[string]any{"user": "  "}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank user, got %d", resp.StatusCode)
	}

	resp2 := c.post("/v1/auth/token", map[string]any{"user": "u1", "unknown": true}, nil)
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", resp2.StatusCode)
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	c := newTestAPI(t)
	token := c.obtainToken("u1", false)

	resp := c.get(fmt.Sprintf("/v1/organizations/%s/widgets", ids.New()), nil, authHeaderFor(token))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
