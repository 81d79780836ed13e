package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Service is the single entry point for access-control operations. Every
// mutating call passes through the authorization rules before it touches
// the grant graph; effective-permission queries go straight to the
// resolver. The service is stateless and safe for concurrent use.
type Service struct {
	store    Store
	resolver *Resolver
}

// NewService constructs the access-control facade.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("access store is required")
	}
	return &Service{store: store, resolver: NewResolver(store)}, nil
}

// actorTier resolves the actor's membership tier in the organization.
// A missing membership is reported as member=false, not as an error.
func (s *Service) actorTier(ctx context.Context, actor Actor, orgID string) (Tier, bool, error) {
	if strings.TrimSpace(actor.UserID) == "" {
		return "", false, nil
	}
	m, err := s.store.Membership(ctx, actor.UserID, orgID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return m.Tier, true, nil
}

func (s *Service) authorize(ctx context.Context, actor Actor, orgID string, op Operation) error {
	tier, member, err := s.actorTier(ctx, actor, orgID)
	if err != nil {
		return err
	}
	return Authorize(op, actor, tier, member)
}

// --- Identity & tenancy -----------------------------------------------

func (s *Service) CreateOrganization(ctx context.Context, name, slug string) (Organization, error) {
	name = strings.TrimSpace(name)
	slug = strings.TrimSpace(strings.ToLower(slug))
	if name == "" || slug == "" {
		return Organization{}, fmt.Errorf("%w: organization name and slug are required", ErrInvalidInput)
	}
	org := Organization{Name: name, Slug: slug, Active: true}
	if err := s.store.CreateOrganization(ctx, &org); err != nil {
		return Organization{}, err
	}
	return org, nil
}

func (s *Service) GetOrganization(ctx context.Context, id string) (Organization, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Organization{}, fmt.Errorf("%w: organization id is required", ErrInvalidInput)
	}
	return s.store.GetOrganization(ctx, id)
}

func (s *Service) ListOrganizations(ctx context.Context) ([]Organization, error) {
	return s.store.ListOrganizations(ctx)
}

func (s *Service) CreateUser(ctx context.Context, name, email, externalID string) (User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))
	if name == "" {
		return User{}, fmt.Errorf("%w: user name is required", ErrInvalidInput)
	}
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	user := User{Name: name, Email: email, ExternalID: strings.TrimSpace(externalID), Active: true}
	if err := s.store.CreateUser(ctx, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.store.GetUser(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, orgID string, p ListParams) ([]User, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, fmt.Errorf("%w: organization id is required", ErrInvalidInput)
	}
	p, err := p.Normalize()
	if err != nil {
		return nil, err
	}
	return s.store.ListUsers(ctx, orgID, p)
}

func (s *Service) AddMember(ctx context.Context, orgID, userID string, tier Tier) (Membership, error) {
	orgID = strings.TrimSpace(orgID)
	userID = strings.TrimSpace(userID)
	if orgID == "" || userID == "" {
		return Membership{}, fmt.Errorf("%w: organization id and user id are required", ErrInvalidInput)
	}
	tier, err := ParseTier(string(tier))
	if err != nil {
		return Membership{}, err
	}
	m := Membership{UserID: userID, OrganizationID: orgID, Tier: tier}
	if err := s.store.AddMember(ctx, &m); err != nil {
		return Membership{}, err
	}
	return m, nil
}

// --- Structural mutations ---------------------------------------------

func (s *Service) CreateRole(ctx context.Context, actor Actor, orgID, name string) (Role, error) {
	orgID = strings.TrimSpace(orgID)
	name = strings.TrimSpace(name)
	if orgID == "" || name == "" {
		return Role{}, fmt.Errorf("%w: organization id and role name are required", ErrInvalidInput)
	}
	if err := s.authorize(ctx, actor, orgID, OpCreateRole); err != nil {
		return Role{}, err
	}
	role := Role{OrganizationID: orgID, Name: name}
	if err := s.store.CreateRole(ctx, &role); err != nil {
		return Role{}, err
	}
	return role, nil
}

func (s *Service) CreateGroup(ctx context.Context, actor Actor, orgID, name string) (Group, error) {
	orgID = strings.TrimSpace(orgID)
	name = strings.TrimSpace(name)
	if orgID == "" || name == "" {
		return Group{}, fmt.Errorf("%w: organization id and group name are required", ErrInvalidInput)
	}
	if err := s.authorize(ctx, actor, orgID, OpCreateGroup); err != nil {
		return Group{}, err
	}
	group := Group{OrganizationID: orgID, Name: name}
	if err := s.store.CreateGroup(ctx, &group); err != nil {
		return Group{}, err
	}
	return group, nil
}

func (s *Service) AssignRoleToGroup(ctx context.Context, actor Actor, orgID, groupID, roleID string) error {
	groupID = strings.TrimSpace(groupID)
	roleID = strings.TrimSpace(roleID)
	if groupID == "" || roleID == "" {
		return fmt.Errorf("%w: group id and role id are required", ErrInvalidInput)
	}
	if err := s.authorize(ctx, actor, orgID, OpAssignRoleToGroup); err != nil {
		return err
	}
	return s.store.AssignRoleToGroup(ctx, groupID, roleID)
}

func (s *Service) AssignPermissionToRole(ctx context.Context, actor Actor, orgID, roleID, permissionID string) error {
	roleID = strings.TrimSpace(roleID)
	permissionID = strings.TrimSpace(permissionID)
	if roleID == "" || permissionID == "" {
		return fmt.Errorf("%w: role id and permission id are required", ErrInvalidInput)
	}
	if err := s.authorize(ctx, actor, orgID, OpAssignPermissionToRole); err != nil {
		return err
	}
	return s.store.AssignPermissionToRole(ctx, roleID, permissionID)
}

func (s *Service) AssignPermissionToUser(ctx context.Context, actor Actor, orgID, userID, permissionID string) error {
	userID = strings.TrimSpace(userID)
	permissionID = strings.TrimSpace(permissionID)
	if userID == "" || permissionID == "" {
		return fmt.Errorf("%w: user id and permission id are required", ErrInvalidInput)
	}
	if err := s.authorize(ctx, actor, orgID, OpAssignPermissionToUser); err != nil {
		return err
	}
	return s.store.AssignPermissionToUser(ctx, userID, permissionID)
}

// --- Direct assignments (staff tier only) ------------------------------

func (s *Service) AssignRoleToUser(ctx context.Context, actor Actor, orgID, userID, roleID string) error {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return fmt.Errorf("%w: user id and role id are required", ErrInvalidInput)
	}
	if err := s.authorize(ctx, actor, orgID, OpAssignRoleToUser); err != nil {
		return err
	}
	return s.store.AssignRoleToUser(ctx, userID, roleID)
}

func (s *Service) AssignUserToGroup(ctx context.Context, actor Actor, orgID, userID, groupID string) error {
	userID = strings.TrimSpace(userID)
	groupID = strings.TrimSpace(groupID)
	if userID == "" || groupID == "" {
		return fmt.Errorf("%w: user id and group id are required", ErrInvalidInput)
	}
	if err := s.authorize(ctx, actor, orgID, OpAssignUserToGroup); err != nil {
		return err
	}
	return s.store.AssignUserToGroup(ctx, userID, groupID)
}

// --- Queries -----------------------------------------------------------

// listScope decides whose rows a list query may see. Staff members see
// only rows tied to the requested user; owner/admin members and
// super-admins see the whole organization. Actors with no standing in
// the organization are rejected rather than shown the full list.
func (s *Service) listScope(ctx context.Context, actor Actor, orgID string) (onlyAssigned bool, err error) {
	if actor.SuperAdmin {
		return false, nil
	}
	tier, member, err := s.actorTier(ctx, actor, orgID)
	if err != nil {
		return false, err
	}
	if !member {
		return false, &UnauthorizedError{Op: "list", RequiredTiers: []Tier{TierOwner, TierAdmin, TierStaff}}
	}
	return tier == TierStaff, nil
}

func (s *Service) GetRolesForUser(ctx context.Context, actor Actor, orgID, userID string, p ListParams) ([]Role, error) {
	orgID = strings.TrimSpace(orgID)
	userID = strings.TrimSpace(userID)
	if orgID == "" || userID == "" {
		return nil, fmt.Errorf("%w: organization id and user id are required", ErrInvalidInput)
	}
	p, err := p.Normalize()
	if err != nil {
		return nil, err
	}
	onlyAssigned, err := s.listScope(ctx, actor, orgID)
	if err != nil {
		return nil, err
	}
	return s.store.RolesForUser(ctx, orgID, userID, onlyAssigned, p)
}

func (s *Service) GetGroupsForUser(ctx context.Context, actor Actor, orgID, userID string, p ListParams) ([]Group, error) {
	orgID = strings.TrimSpace(orgID)
	userID = strings.TrimSpace(userID)
	if orgID == "" || userID == "" {
		return nil, fmt.Errorf("%w: organization id and user id are required", ErrInvalidInput)
	}
	p, err := p.Normalize()
	if err != nil {
		return nil, err
	}
	onlyAssigned, err := s.listScope(ctx, actor, orgID)
	if err != nil {
		return nil, err
	}
	return s.store.GroupsForUser(ctx, orgID, userID, onlyAssigned, p)
}

// GetEffectivePermissions resolves the user's permission set in the
// organization. Resolution is computed fresh per call. An actor may read
// their own set; anyone else's requires the super-admin flag or an
// owner/admin tier in the organization.
func (s *Service) GetEffectivePermissions(ctx context.Context, actor Actor, userID, orgID string) (map[string][]string, error) {
	userID = strings.TrimSpace(userID)
	orgID = strings.TrimSpace(orgID)
	if userID == "" || orgID == "" {
		return nil, fmt.Errorf("%w: user id and organization id are required", ErrInvalidInput)
	}
	if actor.UserID != userID && !actor.SuperAdmin {
		tier, member, err := s.actorTier(ctx, actor, orgID)
		if err != nil {
			return nil, err
		}
		if !member || (tier != TierOwner && tier != TierAdmin) {
			return nil, &UnauthorizedError{Op: "resolve_permissions", RequiredTiers: []Tier{TierOwner, TierAdmin}}
		}
	}
	return s.resolver.EffectivePermissions(ctx, userID, orgID)
}

// ModuleActions is one feature module with its permission actions,
// used for catalog display.
type ModuleActions struct {
	Module  string   `json:"module"`
	Actions []string `json:"actions"`
}

// ListPermissionCatalog returns the global permission catalog grouped by
// feature module, ordered by module then action.
func (s *Service) ListPermissionCatalog(ctx context.Context) ([]ModuleActions, error) {
	perms, modules, err := s.store.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(modules))
	for _, m := range modules {
		names[m.ID] = m.Name
	}
	byModule := make(map[string]*ModuleActions)
	var ordered []*ModuleActions
	for _, p := range perms {
		name, ok := names[p.ModuleID]
		if !ok {
			return nil, &NotFoundError{Kind: "feature module", ID: p.ModuleID}
		}
		entry, ok := byModule[name]
		if !ok {
			entry = &ModuleActions{Module: name}
			byModule[name] = entry
			ordered = append(ordered, entry)
		}
		entry.Actions = append(entry.Actions, p.Action)
	}
	result := make([]ModuleActions, len(ordered))
	for i, entry := range ordered {
		result[i] = *entry
	}
	return result, nil
}
