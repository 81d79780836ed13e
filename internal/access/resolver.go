package access

import (
	"context"
	"errors"
)

// Resolver computes effective permissions by aggregating the three grant
// paths: direct user grants, role grants, and group-mediated role grants.
// It holds no state beyond the store handle and is safe for concurrent use.
type Resolver struct {
	store Store
}

// NewResolver constructs a Resolver.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// EffectivePermissions returns the de-duplicated set of granted actions
// for the user in the organization, grouped by feature-module name. The
// role and group paths consider only roles belonging to the organization,
// so grants held in another tenant never leak into the result.
//
// Only staff-tier members have personally resolvable permission sets;
// any other tier, or a user without a membership, resolves to an empty
// map. That is a defined result, not an error.
func (r *Resolver) EffectivePermissions(ctx context.Context, userID, orgID string) (map[string][]string, error) {
	membership, err := r.store.Membership(ctx, userID, orgID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return map[string][]string{}, nil
		}
		return nil, err
	}
	if membership.Tier != TierStaff {
		return map[string][]string{}, nil
	}

	direct, err := r.store.DirectGrants(ctx, userID)
	if err != nil {
		return nil, err
	}
	viaRoles, err := r.store.RoleGrants(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}
	viaGroups, err := r.store.GroupGrants(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}

	// Union across paths: a (module, action) pair appears once no matter
	// how many paths produced it.
	seen := make(map[GrantedAction]struct{})
	var granted []GrantedAction
	for _, path := range [][]GrantedAction{direct, viaRoles, viaGroups} {
		for _, g := range path {
			if _, ok := seen[g]; ok {
				continue
			}
			seen[g] = struct{}{}
			granted = append(granted, g)
		}
	}
	if len(granted) == 0 {
		return map[string][]string{}, nil
	}

	moduleIDs := make([]string, 0, len(granted))
	idSeen := make(map[string]struct{}, len(granted))
	for _, g := range granted {
		if _, ok := idSeen[g.ModuleID]; ok {
			continue
		}
		idSeen[g.ModuleID] = struct{}{}
		moduleIDs = append(moduleIDs, g.ModuleID)
	}
	names, err := r.store.FeatureModuleNames(ctx, moduleIDs)
	if err != nil {
		return nil, err
	}

	result := make(map[string][]string, len(names))
	for _, g := range granted {
		name, ok := names[g.ModuleID]
		if !ok {
			return nil, &NotFoundError{Kind: "feature module", ID: g.ModuleID}
		}
		result[name] = append(result[name], g.Action)
	}
	return result, nil
}
