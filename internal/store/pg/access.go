package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"accesshub.org/internal/access"
	"accesshub.org/internal/ids"
)

func (s *Store) CreateOrganization(ctx context.Context, org *access.Organization) error {
	if org.ID == "" {
		org.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx, `
		insert into organizations (id, name, slug, active)
		values ($1, $2, $3, $4)
		returning created_at, updated_at
	`, org.ID, org.Name, org.Slug, org.Active)
	if err := row.Scan(&org.CreatedAt, &org.UpdatedAt); err != nil {
		return mapWriteError(err, "organization", org.Slug)
	}
	return nil
}

func (s *Store) GetOrganization(ctx context.Context, id string) (access.Organization, error) {
	var org access.Organization
	err := s.db.QueryRowContext(ctx, `
		select id, name, slug, active, created_at, updated_at
		from organizations
		where id = $1
	`, id).Scan(&org.ID, &org.Name, &org.Slug, &org.Active, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return access.Organization{}, &access.NotFoundError{Kind: "organization", ID: id}
	}
	if err != nil {
		return access.Organization{}, err
	}
	return org, nil
}

func (s *Store) ListOrganizations(ctx context.Context) ([]access.Organization, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, slug, active, created_at, updated_at
		from organizations
		order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []access.Organization
	for rows.Next() {
		var org access.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.Slug, &org.Active, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, org)
	}
	return result, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, u *access.User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, name, email, external_id, active)
		values ($1, $2, $3, $4, $5)
		returning created_at, updated_at
	`, u.ID, u.Name, u.Email, nullIfEmpty(u.ExternalID), u.Active)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		return mapWriteError(err, "user", u.Email)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (access.User, error) {
	var (
		u        access.User
		external sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, name, email, external_id, active, created_at, updated_at
		from users
		where id = $1
	`, id).Scan(&u.ID, &u.Name, &u.Email, &external, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return access.User{}, &access.NotFoundError{Kind: "user", ID: id}
	}
	if err != nil {
		return access.User{}, err
	}
	if external.Valid {
		u.ExternalID = external.String
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context, orgID string, p access.ListParams) ([]access.User, error) {
	query := fmt.Sprintf(`
		select u.id, u.name, u.email, u.external_id, u.active, u.created_at, u.updated_at
		from users u
		join organization_members om on om.user_id = u.id
		where om.organization_id = $1
		  and ($2 = '' or u.name ilike '%%' || $2 || '%%' or u.email ilike '%%' || $2 || '%%')
		order by u.%s %s
		limit $3 offset $4
	`, sortColumn(p.SortBy), sortDirection(p.SortOrder))
	rows, err := s.db.QueryContext(ctx, query, orgID, p.Search, p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []access.User
	for rows.Next() {
		var (
			u        access.User
			external sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &external, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		if external.Valid {
			u.ExternalID = external.String
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) AddMember(ctx context.Context, m *access.Membership) error {
	row := s.db.QueryRowContext(ctx, `
		insert into organization_members (user_id, organization_id, tier)
		values ($1, $2, $3)
		returning created_at
	`, m.UserID, m.OrganizationID, m.Tier)
	if err := row.Scan(&m.CreatedAt); err != nil {
		return mapWriteError(err, "membership", m.UserID+"/"+m.OrganizationID)
	}
	return nil
}

func (s *Store) Membership(ctx context.Context, userID, orgID string) (access.Membership, error) {
	var m access.Membership
	err := s.db.QueryRowContext(ctx, `
		select user_id, organization_id, tier, created_at
		from organization_members
		where user_id = $1 and organization_id = $2
	`, userID, orgID).Scan(&m.UserID, &m.OrganizationID, &m.Tier, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return access.Membership{}, access.ErrNotFound
	}
	if err != nil {
		return access.Membership{}, err
	}
	return m, nil
}

func (s *Store) CreateRole(ctx context.Context, role *access.Role) error {
	if role.ID == "" {
		role.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx, `
		insert into org_roles (id, organization_id, name)
		values ($1, $2, $3)
		returning created_at, updated_at
	`, role.ID, role.OrganizationID, role.Name)
	if err := row.Scan(&role.CreatedAt, &role.UpdatedAt); err != nil {
		return mapWriteError(err, "role", role.Name)
	}
	return nil
}

func (s *Store) CreateGroup(ctx context.Context, group *access.Group) error {
	if group.ID == "" {
		group.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx, `
		insert into org_groups (id, organization_id, name)
		values ($1, $2, $3)
		returning created_at, updated_at
	`, group.ID, group.OrganizationID, group.Name)
	if err := row.Scan(&group.CreatedAt, &group.UpdatedAt); err != nil {
		return mapWriteError(err, "group", group.Name)
	}
	return nil
}

func (s *Store) AssignRoleToUser(ctx context.Context, userID, roleID string) error {
	_, err := s.db.ExecContext(ctx, `
		insert into user_roles (user_id, role_id) values ($1, $2)
	`, userID, roleID)
	if err != nil {
		return mapWriteError(err, "role assignment", userID+"/"+roleID)
	}
	return nil
}

func (s *Store) AssignRoleToGroup(ctx context.Context, groupID, roleID string) error {
	_, err := s.db.ExecContext(ctx, `
		insert into group_roles (group_id, role_id) values ($1, $2)
	`, groupID, roleID)
	if err != nil {
		return mapWriteError(err, "group role", groupID+"/"+roleID)
	}
	return nil
}

func (s *Store) AssignUserToGroup(ctx context.Context, userID, groupID string) error {
	_, err := s.db.ExecContext(ctx, `
		insert into user_groups (user_id, group_id) values ($1, $2)
	`, userID, groupID)
	if err != nil {
		return mapWriteError(err, "group membership", userID+"/"+groupID)
	}
	return nil
}

func (s *Store) AssignPermissionToRole(ctx context.Context, roleID, permissionID string) error {
	_, err := s.db.ExecContext(ctx, `
		insert into role_permissions (role_id, permission_id) values ($1, $2)
	`, roleID, permissionID)
	if err != nil {
		return mapWriteError(err, "role permission", roleID+"/"+permissionID)
	}
	return nil
}

func (s *Store) AssignPermissionToUser(ctx context.Context, userID, permissionID string) error {
	_, err := s.db.ExecContext(ctx, `
		insert into user_permissions (user_id, permission_id) values ($1, $2)
	`, userID, permissionID)
	if err != nil {
		return mapWriteError(err, "user permission", userID+"/"+permissionID)
	}
	return nil
}

func (s *Store) RolesForUser(ctx context.Context, orgID, userID string, onlyAssigned bool, p access.ListParams) ([]access.Role, error) {
	var (
		join string
		args = []any{orgID}
		idx  = 2
	)
	if onlyAssigned {
		join = fmt.Sprintf("join user_roles ur on ur.role_id = r.id and ur.user_id = $%d", idx)
		args = append(args, userID)
		idx++
	}
	query := fmt.Sprintf(`
		select distinct r.id, r.organization_id, r.name, r.created_at, r.updated_at
		from org_roles r
		%s
		where r.organization_id = $1
		  and ($%d = '' or r.name ilike '%%' || $%d || '%%')
		order by r.%s %s
		limit $%d offset $%d
	`, join, idx, idx, sortColumn(p.SortBy), sortDirection(p.SortOrder), idx+1, idx+2)
	args = append(args, p.Search, p.Limit, p.Offset)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []access.Role
	for rows.Next() {
		var role access.Role
		if err := rows.Scan(&role.ID, &role.OrganizationID, &role.Name, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (s *Store) GroupsForUser(ctx context.Context, orgID, userID string, onlyAssigned bool, p access.ListParams) ([]access.Group, error) {
	var (
		join string
		args = []any{orgID}
		idx  = 2
	)
	if onlyAssigned {
		join = fmt.Sprintf("join user_groups ug on ug.group_id = g.id and ug.user_id = $%d", idx)
		args = append(args, userID)
		idx++
	}
	query := fmt.Sprintf(`
		select distinct g.id, g.organization_id, g.name, g.created_at, g.updated_at
		from org_groups g
		%s
		where g.organization_id = $1
		  and ($%d = '' or g.name ilike '%%' || $%d || '%%')
		order by g.%s %s
		limit $%d offset $%d
	`, join, idx, idx, sortColumn(p.SortBy), sortDirection(p.SortOrder), idx+1, idx+2)
	args = append(args, p.Search, p.Limit, p.Offset)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []access.Group
	for rows.Next() {
		var group access.Group
		if err := rows.Scan(&group.ID, &group.OrganizationID, &group.Name, &group.CreatedAt, &group.UpdatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

func (s *Store) DirectGrants(ctx context.Context, userID string) ([]access.GrantedAction, error) {
	return s.grants(ctx, `
		select p.module_id, p.action
		from permissions p
		join user_permissions up on up.permission_id = p.id
		where up.user_id = $1
	`, userID)
}

func (s *Store) RoleGrants(ctx context.Context, userID, orgID string) ([]access.GrantedAction, error) {
	return s.grants(ctx, `
		select p.module_id, p.action
		from permissions p
		join role_permissions rp on rp.permission_id = p.id
		join user_roles ur on ur.role_id = rp.role_id
		join org_roles r on r.id = ur.role_id
		where ur.user_id = $1 and r.organization_id = $2
	`, userID, orgID)
}

func (s *Store) GroupGrants(ctx context.Context, userID, orgID string) ([]access.GrantedAction, error) {
	return s.grants(ctx, `
		select p.module_id, p.action
		from permissions p
		join role_permissions rp on rp.permission_id = p.id
		join group_roles gr on gr.role_id = rp.role_id
		join org_groups g on g.id = gr.group_id
		join user_groups ug on ug.group_id = gr.group_id
		where ug.user_id = $1 and g.organization_id = $2
	`, userID, orgID)
}

func (s *Store) grants(ctx context.Context, query string, args ...any) ([]access.GrantedAction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []access.GrantedAction
	for rows.Next() {
		var g access.GrantedAction
		if err := rows.Scan(&g.ModuleID, &g.Action); err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

func (s *Store) FeatureModuleNames(ctx context.Context, moduleIDs []string) (map[string]string, error) {
	if len(moduleIDs) == 0 {
		return map[string]string{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, name from feature_modules where id = any($1)
	`, moduleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[string]string, len(moduleIDs))
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

func (s *Store) ListPermissions(ctx context.Context) ([]access.Permission, []access.FeatureModule, error) {
	rows, err := s.db.QueryContext(ctx, `
		select p.id, p.module_id, p.action
		from permissions p
		join feature_modules fm on fm.id = p.module_id
		order by fm.name, p.action
	`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var perms []access.Permission
	for rows.Next() {
		var p access.Permission
		if err := rows.Scan(&p.ID, &p.ModuleID, &p.Action); err != nil {
			return nil, nil, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	moduleRows, err := s.db.QueryContext(ctx, `select id, name from feature_modules order by name`)
	if err != nil {
		return nil, nil, err
	}
	defer moduleRows.Close()

	var modules []access.FeatureModule
	for moduleRows.Next() {
		var m access.FeatureModule
		if err := moduleRows.Scan(&m.ID, &m.Name); err != nil {
			return nil, nil, err
		}
		modules = append(modules, m)
	}
	return perms, modules, moduleRows.Err()
}

// sortColumn maps the already-validated sort field to a column name.
// The core rejects anything outside the allow-list before it gets here;
// the default keeps the query well-formed regardless.
func sortColumn(field string) string {
	switch field {
	case "name":
		return "name"
	case "created_at":
		return "created_at"
	default:
		return "id"
	}
}

func sortDirection(order access.SortOrder) string {
	if order == access.SortDesc {
		return "desc"
	}
	return "asc"
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
