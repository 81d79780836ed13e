package access

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizeStructuralOperations(t *testing.T) {
	structural := []Operation{
		OpCreateRole, OpCreateGroup, OpAssignRoleToGroup,
		OpAssignPermissionToRole, OpAssignPermissionToUser,
	}

	for _, op := range structural {
		t.Run(string(op), func(t *testing.T) {
			assert.NoError(t, Authorize(op, Actor{UserID: "u1"}, TierOwner, true))
			assert.NoError(t, Authorize(op, Actor{UserID: "u1"}, TierAdmin, true))
			assert.NoError(t, Authorize(op, Actor{UserID: "u1", SuperAdmin: true}, "", false))

			err := Authorize(op, Actor{UserID: "u1"}, TierStaff, true)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnauthorized)

			err = Authorize(op, Actor{UserID: "u1"}, "", false)
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestAuthorizeDirectAssignmentsRequireStaff(t *testing.T) {
	direct := []Operation{OpAssignRoleToUser, OpAssignUserToGroup}

	for _, op := range direct {
		t.Run(string(op), func(t *testing.T) {
			assert.NoError(t, Authorize(op, Actor{UserID: "u1"}, TierStaff, true))

			for _, tier := range []Tier{TierOwner, TierAdmin} {
				err := Authorize(op, Actor{UserID: "u1"}, tier, true)
				assert.ErrorIs(t, err, ErrUnauthorized, "tier %s must be rejected", tier)
			}

			// The super-admin override does not extend to direct
			// assignments: without a staff membership the call is denied.
			err := Authorize(op, Actor{UserID: "root", SuperAdmin: true}, "", false)
			assert.ErrorIs(t, err, ErrUnauthorized)

			// A super-admin who also happens to hold a staff membership
			// passes on the membership, not the flag.
			assert.NoError(t, Authorize(op, Actor{UserID: "root", SuperAdmin: true}, TierStaff, true))
		})
	}
}

func TestAuthorizeDenialCarriesOperationAndTiers(t *testing.T) {
	err := Authorize(OpCreateRole, Actor{UserID: "u1"}, TierStaff, true)
	require.Error(t, err)

	var denied *UnauthorizedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, OpCreateRole, denied.Op)
	assert.Equal(t, []Tier{TierOwner, TierAdmin}, denied.RequiredTiers)
	assert.Contains(t, denied.Error(), "create_role")

	err = Authorize(OpAssignUserToGroup, Actor{UserID: "u1"}, TierAdmin, true)
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, []Tier{TierStaff}, denied.RequiredTiers)
}

func TestParseTier(t *testing.T) {
	for raw, want := range map[string]Tier{
		"owner": TierOwner,
		"ADMIN": TierAdmin,
		" staff ": TierStaff,
	} {
		got, err := ParseTier(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseTier("superuser")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
