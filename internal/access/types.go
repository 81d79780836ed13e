package access

import (
	"fmt"
	"strings"
	"time"
)

// Tier is a user's membership level within a single organization.
type Tier string

const (
	TierOwner Tier = "owner"
	TierAdmin Tier = "admin"
	TierStaff Tier = "staff"
)

// ParseTier normalizes and validates a tier value.
func ParseTier(raw string) (Tier, error) {
	switch Tier(strings.TrimSpace(strings.ToLower(raw))) {
	case TierOwner:
		return TierOwner, nil
	case TierAdmin:
		return TierAdmin, nil
	case TierStaff:
		return TierStaff, nil
	default:
		return "", fmt.Errorf("%w: unknown tier %q", ErrInvalidInput, raw)
	}
}

// Actor identifies who is performing an operation. SuperAdmin is a
// process-wide override carried by the authentication layer, distinct
// from any per-organization tier.
type Actor struct {
	UserID     string
	SuperAdmin bool
}

// Organization is a tenant. Groups and roles belong to exactly one
// organization and do not outlive it.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is a person or service account known to the platform.
type User struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	ExternalID string    `json:"external_id,omitempty"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Membership ties a user to an organization with a tier. A user holds at
// most one tier per organization.
type Membership struct {
	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id"`
	Tier           Tier      `json:"tier"`
	CreatedAt      time.Time `json:"created_at"`
}

// Group is an organization-scoped collection of users that can hold roles.
type Group struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Role is an organization-scoped bundle of permissions.
type Role struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// FeatureModule is a global display grouping for permissions.
type FeatureModule struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Permission is a global (module, action) capability.
type Permission struct {
	ID       string `json:"id"`
	ModuleID string `json:"module_id"`
	Action   string `json:"action"`
}

// GrantedAction is a (module, action) pair produced by one of the three
// grant paths during resolution.
type GrantedAction struct {
	ModuleID string
	Action   string
}

// SortOrder is an ascending/descending list direction.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

// ListParams shapes paginated queries. SortBy is validated against a
// per-entity allow-list; free-form field names are rejected.
type ListParams struct {
	Search    string
	Limit     int
	Offset    int
	SortBy    string
	SortOrder SortOrder
}

// listSortFields is the sort allow-list shared by roles and groups.
var listSortFields = map[string]struct{}{
	"id":         {},
	"name":       {},
	"created_at": {},
}

// Normalize fills defaults and validates the sort allow-list.
func (p ListParams) Normalize() (ListParams, error) {
	p.Search = strings.TrimSpace(p.Search)
	if p.Limit <= 0 {
		p.Limit = defaultListLimit
	}
	if p.Limit > maxListLimit {
		p.Limit = maxListLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	p.SortBy = strings.TrimSpace(strings.ToLower(p.SortBy))
	if p.SortBy == "" {
		p.SortBy = "id"
	}
	if _, ok := listSortFields[p.SortBy]; !ok {
		return ListParams{}, fmt.Errorf("%w: unsupported sort field %q", ErrInvalidInput, p.SortBy)
	}
	switch p.SortOrder {
	case "":
		p.SortOrder = SortAsc
	case SortAsc, SortDesc:
	default:
		return ListParams{}, fmt.Errorf("%w: sort order must be asc or desc", ErrInvalidInput)
	}
	return p, nil
}
