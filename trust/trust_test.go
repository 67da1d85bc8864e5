package trust_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"stroma/identity"
	"stroma/trust"
)

func hashOf(b byte) identity.MemberHash {
	var h identity.MemberHash
	h[31] = b
	return h
}

func TestBootstrapExceptionAllowsFirstThreeMembers(t *testing.T) {
	c := trust.New(trust.DefaultGroupConfig())
	for i := byte(1); i <= 3; i++ {
		result := c.ApplyDelta(trust.TrustDelta{Kind: trust.DeltaAddMember, Subject: hashOf(i)})
		require.True(t, result.Valid(), "member %d should bootstrap in", i)
	}
	require.Len(t, c.MembersSorted(), 3)
}

func TestAddMemberRequiresVouchesPastBootstrap(t *testing.T) {
	c := trust.New(trust.DefaultGroupConfig())
	for i := byte(1); i <= 3; i++ {
		require.True(t, c.ApplyDelta(trust.TrustDelta{Kind: trust.DeltaAddMember, Subject: hashOf(i)}).Valid())
	}

	fourth := hashOf(4)
	result := c.ApplyDelta(trust.TrustDelta{Kind: trust.DeltaAddMember, Subject: fourth})
	require.False(t, result.Valid())
	require.Contains(t, string(result.Reason), "has only 0 valid vouches")

	// A vouch needs both endpoints to be members, so vouches for the
	// not-yet-admitted fourth hash are rejected.
	require.False(t, c.ApplyDelta(trust.TrustDelta{Kind: trust.DeltaAddVouch, Subject: hashOf(1), To: fourth}).Valid())
	require.False(t, c.ApplyDelta(trust.TrustDelta{Kind: trust.DeltaAddVouch, Subject: hashOf(2), To: fourth}).Valid())

	// No vouch was recorded, so re-attempting AddMember still fails.
	result = c.ApplyDelta(trust.TrustDelta{Kind: trust.DeltaAddMember, Subject: fourth})
	require.False(t, result.Valid(), "vouches from non-members are not retained across rejection")
}

func TestTombstonePermanence(t *testing.T) {
	c := trust.New(trust.DefaultGroupConfig())
	a, b, victim := hashOf(1), hashOf(2), hashOf(3)
	for _, h := range []identity.MemberHash{a, b, victim} {
		require.True(t, c.ApplyDelta(trust.TrustDelta{Kind: trust.DeltaAddMember, Subject: h}).Valid())
	}

	require.True(t, c.ApplyDelta(trust.TrustDelta{Kind: trust.DeltaRemoveMember, Subject: victim}).Valid())
	require.True(t, c.IsEjected(victim))
	require.False(t, c.IsMember(victim))

	result := c.ApplyDelta(trust.TrustDelta{Kind: trust.DeltaAddMember, Subject: victim})
	require.False(t, result.Valid())
	require.Equal(t, trust.ReasonTombstoneReentry, result.Reason)

	// A tombstone-reentry attempt is recorded in the audit log.
	require.NotEmpty(t, c.AuditLog)
	last := c.AuditLog[len(c.AuditLog)-1]
	require.Equal(t, "tombstone_reentry_attempt", last.ActionType.String(last.ActionLabel))
}

func TestRemoveMemberCascadesVouchesAndFlags(t *testing.T) {
	c := trust.New(trust.DefaultGroupConfig())
	a, b, victim := hashOf(1), hashOf(2), hashOf(3)
	for _, h := range []identity.MemberHash{a, b, victim} {
		require.True(t, c.ApplyDelta(trust.TrustDelta{Kind: trust.DeltaAddMember, Subject: h}).Valid())
	}
	require.True(t, c.ApplyDelta(trust.TrustDelta{Kind: trust.DeltaAddVouch, Subject: victim, To: a}).Valid())
	require.True(t, c.ApplyDelta(trust.TrustDelta{Kind: trust.DeltaAddFlag, Subject: b, To: victim}).Valid())

	require.True(t, c.ApplyDelta(trust.TrustDelta{Kind: trust.DeltaRemoveMember, Subject: victim}).Valid())

	require.Empty(t, c.VouchesFrom(victim))
	require.Empty(t, c.FlagsFor(victim))
}

func TestMergeIsCommutativeAndIdempotent(t *testing.T) {
	base := func() *trust.Contract { return trust.New(trust.DefaultGroupConfig()) }

	replicaA := base()
	replicaB := base()

	a, b := hashOf(1), hashOf(2)
	require.True(t, replicaA.ApplyDelta(trust.TrustDelta{Kind: trust.DeltaAddMember, Subject: a}).Valid())
	require.True(t, replicaB.ApplyDelta(trust.TrustDelta{Kind: trust.DeltaAddMember, Subject: b}).Valid())

	mergedAB := base()
	mergedAB.Merge(replicaA)
	mergedAB.Merge(replicaB)

	mergedBA := base()
	mergedBA.Merge(replicaB)
	mergedBA.Merge(replicaA)

	require.ElementsMatch(t, mergedAB.MembersSorted(), mergedBA.MembersSorted())

	// Idempotent: merging the same replica again changes nothing.
	before := mergedAB.MembersSorted()
	mergedAB.Merge(replicaA)
	require.ElementsMatch(t, before, mergedAB.MembersSorted())
}

func TestMergeTombstoneWinsOverConcurrentReadd(t *testing.T) {
	replicaA := trust.New(trust.DefaultGroupConfig())
	replicaB := trust.New(trust.DefaultGroupConfig())

	victim := hashOf(9)
	require.True(t, replicaA.ApplyDelta(trust.TrustDelta{Kind: trust.DeltaAddMember, Subject: victim}).Valid())
	require.True(t, replicaA.ApplyDelta(trust.TrustDelta{Kind: trust.DeltaRemoveMember, Subject: victim}).Valid())

	// Replica B never saw the removal and still thinks victim is a member.
	replicaB.Members[victim] = struct{}{}

	replicaA.Merge(replicaB)
	require.False(t, replicaA.IsMember(victim))
	require.True(t, replicaA.IsEjected(victim))
}

func TestValidateStateRejectsAdjacencyToUnknownMember(t *testing.T) {
	c := trust.New(trust.DefaultGroupConfig())
	a := hashOf(1)
	require.True(t, c.ApplyDelta(trust.TrustDelta{Kind: trust.DeltaAddMember, Subject: a}).Valid())

	// Directly corrupt state to simulate a malformed merge input.
	ghost := hashOf(250)
	c.Vouches[a] = map[identity.MemberHash]struct{}{ghost: {}}

	result := c.ValidateState()
	require.False(t, result.Valid())
	require.Equal(t, trust.ReasonAdjacencyUnknownMember, result.Reason)
}

func TestResolveDeltaConflictPicksLexicographicallySmaller(t *testing.T) {
	a := trust.TrustDelta{Kind: trust.DeltaAddMember, Subject: hashOf(1)}
	b := trust.TrustDelta{Kind: trust.DeltaAddMember, Subject: hashOf(2)}

	winner, err := trust.ResolveDeltaConflict(a, b)
	require.NoError(t, err)
	require.Equal(t, a, winner)

	winnerReversed, err := trust.ResolveDeltaConflict(b, a)
	require.NoError(t, err)
	require.Equal(t, a, winnerReversed, "tie-break must be order-independent")
}
