package access

import (
	"context"
	"fmt"
)

// stubStore implements Store with per-method hooks so each test only
// wires the calls it cares about.
type stubStore struct {
	createOrgFn        func(ctx context.Context, org *Organization) error
	getOrgFn           func(ctx context.Context, id string) (Organization, error)
	listOrgsFn         func(ctx context.Context) ([]Organization, error)
	createUserFn       func(ctx context.Context, u *User) error
	getUserFn          func(ctx context.Context, id string) (User, error)
	listUsersFn        func(ctx context.Context, orgID string, p ListParams) ([]User, error)
	addMemberFn        func(ctx context.Context, m *Membership) error
	membershipFn       func(ctx context.Context, userID, orgID string) (Membership, error)
	createRoleFn       func(ctx context.Context, role *Role) error
	createGroupFn      func(ctx context.Context, group *Group) error
	assignRoleUserFn   func(ctx context.Context, userID, roleID string) error
	assignRoleGroupFn  func(ctx context.Context, groupID, roleID string) error
	assignUserGroupFn  func(ctx context.Context, userID, groupID string) error
	assignPermRoleFn   func(ctx context.Context, roleID, permissionID string) error
	assignPermUserFn   func(ctx context.Context, userID, permissionID string) error
	rolesForUserFn     func(ctx context.Context, orgID, userID string, onlyAssigned bool, p ListParams) ([]Role, error)
	groupsForUserFn    func(ctx context.Context, orgID, userID string, onlyAssigned bool, p ListParams) ([]Group, error)
	directGrantsFn     func(ctx context.Context, userID string) ([]GrantedAction, error)
	roleGrantsFn       func(ctx context.Context, userID, orgID string) ([]GrantedAction, error)
	groupGrantsFn      func(ctx context.Context, userID, orgID string) ([]GrantedAction, error)
	moduleNamesFn      func(ctx context.Context, moduleIDs []string) (map[string]string, error)
	listPermissionsFn  func(ctx context.Context) ([]Permission, []FeatureModule, error)
}

var _ Store = (*stubStore)(nil)

func (s *stubStore) CreateOrganization(ctx context.Context, org *Organization) error {
	if s.createOrgFn != nil {
		return s.createOrgFn(ctx, org)
	}
	org.ID = "org-stub"
	return nil
}

func (s *stubStore) GetOrganization(ctx context.Context, id string) (Organization, error) {
	if s.getOrgFn != nil {
		return s.getOrgFn(ctx, id)
	}
	return Organization{ID: id}, nil
}

func (s *stubStore) ListOrganizations(ctx context.Context) ([]Organization, error) {
	if s.listOrgsFn != nil {
		return s.listOrgsFn(ctx)
	}
	return nil, nil
}

func (s *stubStore) CreateUser(ctx context.Context, u *User) error {
	if s.createUserFn != nil {
		return s.createUserFn(ctx, u)
	}
	u.ID = "user-stub"
	return nil
}

func (s *stubStore) GetUser(ctx context.Context, id string) (User, error) {
	if s.getUserFn != nil {
		return s.getUserFn(ctx, id)
	}
	return User{ID: id}, nil
}

func (s *stubStore) ListUsers(ctx context.Context, orgID string, p ListParams) ([]User, error) {
	if s.listUsersFn != nil {
		return s.listUsersFn(ctx, orgID, p)
	}
	return nil, nil
}

func (s *stubStore) AddMember(ctx context.Context, m *Membership) error {
	if s.addMemberFn != nil {
		return s.addMemberFn(ctx, m)
	}
	return nil
}

func (s *stubStore) Membership(ctx context.Context, userID, orgID string) (Membership, error) {
	if s.membershipFn != nil {
		return s.membershipFn(ctx, userID, orgID)
	}
	return Membership{}, ErrNotFound
}

func (s *stubStore) CreateRole(ctx context.Context, role *Role) error {
	if s.createRoleFn != nil {
		return s.createRoleFn(ctx, role)
	}
	role.ID = "role-stub"
	return nil
}

func (s *stubStore) CreateGroup(ctx context.Context, group *Group) error {
	if s.createGroupFn != nil {
		return s.createGroupFn(ctx, group)
	}
	group.ID = "group-stub"
	return nil
}

func (s *stubStore) AssignRoleToUser(ctx context.Context, userID, roleID string) error {
	if s.assignRoleUserFn != nil {
		return s.assignRoleUserFn(ctx, userID, roleID)
	}
	return nil
}

func (s *stubStore) AssignRoleToGroup(ctx context.Context, groupID, roleID string) error {
	if s.assignRoleGroupFn != nil {
		return s.assignRoleGroupFn(ctx, groupID, roleID)
	}
	return nil
}

func (s *stubStore) AssignUserToGroup(ctx context.Context, userID, groupID string) error {
	if s.assignUserGroupFn != nil {
		return s.assignUserGroupFn(ctx, userID, groupID)
	}
	return nil
}

func (s *stubStore) AssignPermissionToRole(ctx context.Context, roleID, permissionID string) error {
	if s.assignPermRoleFn != nil {
		return s.assignPermRoleFn(ctx, roleID, permissionID)
	}
	return nil
}

func (s *stubStore) AssignPermissionToUser(ctx context.Context, userID, permissionID string) error {
	if s.assignPermUserFn != nil {
		return s.assignPermUserFn(ctx, userID, permissionID)
	}
	return nil
}

func (s *stubStore) RolesForUser(ctx context.Context, orgID, userID string, onlyAssigned bool, p ListParams) ([]Role, error) {
	if s.rolesForUserFn != nil {
		return s.rolesForUserFn(ctx, orgID, userID, onlyAssigned, p)
	}
	return nil, nil
}

func (s *stubStore) GroupsForUser(ctx context.Context, orgID, userID string, onlyAssigned bool, p ListParams) ([]Group, error) {
	if s.groupsForUserFn != nil {
		return s.groupsForUserFn(ctx, orgID, userID, onlyAssigned, p)
	}
	return nil, nil
}

func (s *stubStore) DirectGrants(ctx context.Context, userID string) ([]GrantedAction, error) {
	if s.directGrantsFn != nil {
		return s.directGrantsFn(ctx, userID)
	}
	return nil, nil
}

func (s *stubStore) RoleGrants(ctx context.Context, userID, orgID string) ([]GrantedAction, error) {
	if s.roleGrantsFn != nil {
		return s.roleGrantsFn(ctx, userID, orgID)
	}
	return nil, nil
}

func (s *stubStore) GroupGrants(ctx context.Context, userID, orgID string) ([]GrantedAction, error) {
	if s.groupGrantsFn != nil {
		return s.groupGrantsFn(ctx, userID, orgID)
	}
	return nil, nil
}

func (s *stubStore) FeatureModuleNames(ctx context.Context, moduleIDs []string) (map[string]string, error) {
	if s.moduleNamesFn != nil {
		return s.moduleNamesFn(ctx, moduleIDs)
	}
	names := make(map[string]string, len(moduleIDs))
	for _, id := range moduleIDs {
		names[id] = fmt.Sprintf("module-%s", id)
	}
	return names, nil
}

func (s *stubStore) ListPermissions(ctx context.Context) ([]Permission, []FeatureModule, error) {
	if s.listPermissionsFn != nil {
		return s.listPermissionsFn(ctx)
	}
	return nil, nil, nil
}

// memberWithTier returns a membership hook granting tier to
// (userID, orgID) and ErrNotFound to anyone else.
func memberWithTier(userID, orgID string, tier Tier) func(context.Context, string, string) (Membership, error) {
	return func(_ context.Context, uid, oid string) (Membership, error) {
		if uid == userID && oid == orgID {
			return Membership{UserID: uid, OrganizationID: oid, Tier: tier}, nil
		}
		return Membership{}, ErrNotFound
	}
}
