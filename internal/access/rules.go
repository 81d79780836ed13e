package access

// Operation names a mutating call gated by the authorization rules.
type Operation string

const (
	OpCreateRole             Operation = "create_role"
	OpCreateGroup            Operation = "create_group"
	OpAssignRoleToUser       Operation = "assign_role_to_user"
	OpAssignRoleToGroup      Operation = "assign_role_to_group"
	OpAssignUserToGroup      Operation = "assign_user_to_group"
	OpAssignPermissionToRole Operation = "assign_permission_to_role"
	OpAssignPermissionToUser Operation = "assign_permission_to_user"
)

// Authorize decides whether the actor may perform op within the
// organization the tier was resolved for. member reports whether a
// membership record exists; tier is only meaningful when member is true.
//
// Structural operations (creating roles/groups, wiring roles to groups,
// granting permissions) accept the super-admin override or an owner/admin
// tier. Direct assignment of roles or group membership to a user requires
// the staff tier exactly; the super-admin flag does not bypass it, so a
// platform operator without a staff membership in the target organization
// cannot force-assign staff grants.
func Authorize(op Operation, actor Actor, tier Tier, member bool) error {
	switch op {
	case OpAssignRoleToUser, OpAssignUserToGroup:
		if member && tier == TierStaff {
			return nil
		}
		return &UnauthorizedError{Op: op, RequiredTiers: []Tier{TierStaff}}
	case OpCreateRole, OpCreateGroup, OpAssignRoleToGroup,
		OpAssignPermissionToRole, OpAssignPermissionToUser:
		if actor.SuperAdmin {
			return nil
		}
		if member && (tier == TierOwner || tier == TierAdmin) {
			return nil
		}
		return &UnauthorizedError{Op: op, RequiredTiers: []Tier{TierOwner, TierAdmin}}
	default:
		return &UnauthorizedError{Op: op}
	}
}
