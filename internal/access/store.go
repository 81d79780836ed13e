package access

import "context"

// Store describes the persistence operations the access-control engine
// consumes. Implementations must enforce the uniqueness constraints on
// entities and join rows (mapped to ConflictError) and report missing
// foreign keys as NotFoundError before or during the write; every
// mutating method is a single transactional unit.
type Store interface {
	// Identity & tenancy.
	CreateOrganization(ctx context.Context, org *Organization) error
	GetOrganization(ctx context.Context, id string) (Organization, error)
	ListOrganizations(ctx context.Context) ([]Organization, error)
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (User, error)
	ListUsers(ctx context.Context, orgID string, p ListParams) ([]User, error)
	AddMember(ctx context.Context, m *Membership) error
	// Membership returns ErrNotFound when the user holds no tier in the
	// organization.
	Membership(ctx context.Context, userID, orgID string) (Membership, error)

	// Grant graph mutations.
	CreateRole(ctx context.Context, role *Role) error
	CreateGroup(ctx context.Context, group *Group) error
	AssignRoleToUser(ctx context.Context, userID, roleID string) error
	AssignRoleToGroup(ctx context.Context, groupID, roleID string) error
	AssignUserToGroup(ctx context.Context, userID, groupID string) error
	AssignPermissionToRole(ctx context.Context, roleID, permissionID string) error
	AssignPermissionToUser(ctx context.Context, userID, permissionID string) error

	// Scoped list queries. When onlyAssigned is true the result is
	// restricted to rows associated with userID; otherwise the whole
	// organization is visible.
	RolesForUser(ctx context.Context, orgID, userID string, onlyAssigned bool, p ListParams) ([]Role, error)
	GroupsForUser(ctx context.Context, orgID, userID string, onlyAssigned bool, p ListParams) ([]Group, error)

	// Resolution joins, one per grant path. The role and group paths are
	// restricted to roles of the given organization; the direct path has
	// no organization dimension (permissions are global catalog entries).
	DirectGrants(ctx context.Context, userID string) ([]GrantedAction, error)
	RoleGrants(ctx context.Context, userID, orgID string) ([]GrantedAction, error)
	GroupGrants(ctx context.Context, userID, orgID string) ([]GrantedAction, error)

	// FeatureModuleNames resolves module ids to display names.
	FeatureModuleNames(ctx context.Context, moduleIDs []string) (map[string]string, error)

	// Permission catalog (seed/reference data).
	ListPermissions(ctx context.Context) ([]Permission, []FeatureModule, error)
}
