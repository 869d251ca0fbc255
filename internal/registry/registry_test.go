package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hdbridge/hdbridge/types"
)

const admin = types.Identity("admin-1")

func TestGrantRevokeRole(t *testing.T) {
	r := New(admin)

	require.True(t, r.HasRole(admin, types.RoleAdmin))
	require.False(t, r.HasRole("val-1", types.RoleValidator))

	require.NoError(t, r.GrantRole(admin, "val-1", types.RoleValidator))
	assert.True(t, r.HasRole("val-1", types.RoleValidator))

	// idempotent: granting an already-held role is a no-op
	require.NoError(t, r.GrantRole(admin, "val-1", types.RoleValidator))
	assert.True(t, r.HasRole("val-1", types.RoleValidator))

	require.NoError(t, r.RevokeRole(admin, "val-1", types.RoleValidator))
	assert.False(t, r.HasRole("val-1", types.RoleValidator))

	// revoking a role the identity does not hold is a no-op
	require.NoError(t, r.RevokeRole(admin, "val-1", types.RoleValidator))
}

func TestNonAdminCannotGrant(t *testing.T) {
	r := New(admin)

	require.ErrorIs(t, r.GrantRole("mallory", "mallory", types.RoleAdmin), types.ErrUnauthorized)
	require.ErrorIs(t, r.RevokeRole("mallory", admin, types.RoleAdmin), types.ErrUnauthorized)
	require.ErrorIs(t, r.AddAuthorizedSource("mallory", "mallory"), types.ErrUnauthorized)
	require.ErrorIs(t, r.RemoveAuthorizedSource("mallory", "hospital-a"), types.ErrUnauthorized)

	assert.False(t, r.HasRole("mallory", types.RoleAdmin))
}

func TestMultipleRoles(t *testing.T) {
	r := New(admin)

	require.NoError(t, r.GrantRole(admin, "ops-1", types.RoleValidator))
	require.NoError(t, r.GrantRole(admin, "ops-1", types.RoleRelayer))

	assert.True(t, r.HasRole("ops-1", types.RoleValidator))
	assert.True(t, r.HasRole("ops-1", types.RoleRelayer))

	require.NoError(t, r.RevokeRole(admin, "ops-1", types.RoleRelayer))
	assert.True(t, r.HasRole("ops-1", types.RoleValidator))
	assert.False(t, r.HasRole("ops-1", types.RoleRelayer))
}

func TestAuthorizedSources(t *testing.T) {
	r := New(admin)

	assert.False(t, r.IsAuthorizedSource("hospital-a"))
	require.NoError(t, r.AddAuthorizedSource(admin, "hospital-a"))
	assert.True(t, r.IsAuthorizedSource("hospital-a"))

	require.NoError(t, r.RemoveAuthorizedSource(admin, "hospital-a"))
	assert.False(t, r.IsAuthorizedSource("hospital-a"))
}

func TestReputation(t *testing.T) {
	r := New(admin)

	assert.EqualValues(t, 0, r.ValidatorStats("val-1").Reputation)

	r.RecordApprovingVote("val-1")
	r.RecordApprovingVote("val-1")
	r.RecordApprovingVote("val-2")

	assert.EqualValues(t, 2, r.ValidatorStats("val-1").Reputation)
	assert.EqualValues(t, 1, r.ValidatorStats("val-2").Reputation)
}

func TestSnapshotRoundTrip(t *testing.T) {
	r := New(admin)
	require.NoError(t, r.GrantRole(admin, "val-1", types.RoleValidator))
	require.NoError(t, r.AddAuthorizedSource(admin, "hospital-a"))
	r.RecordApprovingVote("val-1")

	snap := r.Snapshot()

	restored := New()
	restored.Restore(snap)

	assert.True(t, restored.HasRole(admin, types.RoleAdmin))
	assert.True(t, restored.HasRole("val-1", types.RoleValidator))
	assert.True(t, restored.IsAuthorizedSource("hospital-a"))
	assert.EqualValues(t, 1, restored.ValidatorStats("val-1").Reputation)
}
