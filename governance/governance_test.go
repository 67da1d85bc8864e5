package governance_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stroma/governance"
	"stroma/identity"
	"stroma/trust"
)

func pepper(b byte) *[32]byte {
	var k [32]byte
	k[31] = b
	return &k
}

func hashOf(b byte) identity.MemberHash {
	var h identity.MemberHash
	h[31] = b
	return h
}

func TestVoterTagIsDeterministicAndPeppered(t *testing.T) {
	p := pepper(1)
	a := governance.ComputeVoterTag(p, "poll-1", "alice")
	b := governance.ComputeVoterTag(p, "poll-1", "alice")
	require.Equal(t, a, b)

	otherPoll := governance.ComputeVoterTag(p, "poll-2", "alice")
	require.NotEqual(t, a, otherPoll)

	otherPepper := governance.ComputeVoterTag(pepper(2), "poll-1", "alice")
	require.NotEqual(t, a, otherPepper)
}

func TestCastVoteDedupesAndAllowsChange(t *testing.T) {
	agg := &governance.PollAggregate{
		OptionCounts:       make([]uint32, 2),
		Voters:             map[governance.VoterTag]int{},
		TotalMembersAtOpen: 4,
	}
	tag := governance.ComputeVoterTag(pepper(1), "poll-1", "alice")

	require.NoError(t, agg.CastVote(tag, 0))
	require.EqualValues(t, 1, agg.OptionCounts[0])
	require.EqualValues(t, 0, agg.OptionCounts[1])

	// Same voter recasting the same vote is a no-op.
	require.NoError(t, agg.CastVote(tag, 0))
	require.EqualValues(t, 1, agg.OptionCounts[0])

	// Changing a vote moves the count, not adds to it.
	require.NoError(t, agg.CastVote(tag, 1))
	require.EqualValues(t, 0, agg.OptionCounts[0])
	require.EqualValues(t, 1, agg.OptionCounts[1])

	require.Equal(t, 0.25, agg.Participation())

	require.ErrorIs(t, agg.CastVote(tag, 7), governance.ErrInvalidOption)
}

func TestEvaluateOutcomeRequiresQuorumThenThreshold(t *testing.T) {
	agg := &governance.PollAggregate{
		OptionCounts:       []uint32{1, 0},
		Voters:             map[governance.VoterTag]int{governance.ComputeVoterTag(pepper(1), "poll-1", "alice"): 0},
		TotalMembersAtOpen: 10,
	}
	outcome := governance.EvaluateOutcome(agg, 0.5, 0.5)
	require.Equal(t, governance.OutcomeFailed, outcome.Status)
	require.Equal(t, "quorum not met", outcome.Reason)

	agg.TotalMembersAtOpen = 2
	outcome = governance.EvaluateOutcome(agg, 0.5, 0.5)
	require.Equal(t, governance.OutcomePassed, outcome.Status)

	agg.OptionCounts = []uint32{0, 1}
	outcome = governance.EvaluateOutcome(agg, 0.5, 0.5)
	require.Equal(t, governance.OutcomeFailed, outcome.Status)
	require.Equal(t, "threshold not met", outcome.Reason)
}

func TestOpenProposalAllocatesUniquePollID(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p1, agg1 := governance.OpenProposal(trust.ProposalConfigChange, "min_vouches", "3", time.Hour, 0.6, 0.5, 5, now)
	p2, _ := governance.OpenProposal(trust.ProposalConfigChange, "min_vouches", "3", time.Hour, 0.6, 0.5, 5, now)

	require.NotEmpty(t, p1.PollID)
	require.NotEqual(t, p1.PollID, p2.PollID)
	require.EqualValues(t, 5, agg1.TotalMembersAtOpen)
	require.Equal(t, now.Add(time.Hour), governance.Deadline(p1))
}

func TestParseTimeoutBounds(t *testing.T) {
	d, err := governance.ParseTimeout("", 2*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 2*time.Hour, d)

	d, err = governance.ParseTimeout("24h", time.Hour)
	require.NoError(t, err)
	require.Equal(t, 24*time.Hour, d)

	_, err = governance.ParseTimeout("0h", time.Hour)
	require.ErrorIs(t, err, governance.ErrInvalidTimeout)

	_, err = governance.ParseTimeout("169h", time.Hour)
	require.ErrorIs(t, err, governance.ErrInvalidTimeout)

	_, err = governance.ParseTimeout("banana", time.Hour)
	require.ErrorIs(t, err, governance.ErrInvalidTimeout)

	d, err = governance.ParseTimeout("2d", time.Hour)
	require.NoError(t, err)
	require.Equal(t, 48*time.Hour, d)

	d, err = governance.ParseTimeout("7 days", time.Hour)
	require.NoError(t, err)
	require.Equal(t, 168*time.Hour, d)

	_, err = governance.ParseTimeout("8d", time.Hour)
	require.ErrorIs(t, err, governance.ErrInvalidTimeout)
}

func TestRateLimiterProgressiveCooldown(t *testing.T) {
	rl := governance.NewRateLimiter(time.Minute)
	actor := hashOf(1)
	now := time.Unix(1_700_000_000, 0)

	require.NoError(t, rl.Allow(actor, "propose", now))

	// The 2nd use requires base*2^1 = 2 minutes after the 1st; attempting
	// at +30s is rejected.
	err := rl.Allow(actor, "propose", now.Add(30*time.Second))
	require.Error(t, err)
	var limited *governance.ErrRateLimited
	require.ErrorAs(t, err, &limited)
	require.Equal(t, 90*time.Second, limited.Remaining)

	// Past the 2nd use's cooldown it's allowed, and the next cooldown
	// doubles again (base*2^2 = 4 minutes).
	require.NoError(t, rl.Allow(actor, "propose", now.Add(2*time.Minute)))
	err = rl.Allow(actor, "propose", now.Add(2*time.Minute+90*time.Second))
	require.Error(t, err)

	require.NoError(t, rl.Allow(actor, "propose", now.Add(2*time.Minute+4*time.Minute)))

	// A different action kind for the same actor is independent.
	require.NoError(t, rl.Allow(actor, "vote", now.Add(31*time.Second)))
}

func TestRateLimiterDecaysAfterQuiescence(t *testing.T) {
	rl := governance.NewRateLimiter(time.Minute)
	actor := hashOf(2)
	now := time.Unix(1_700_000_000, 0)

	require.NoError(t, rl.Allow(actor, "propose", now))
	rl.Decay(now.Add(governance.DecayWindow + time.Second))

	// After decay the counter is gone, so an immediate reuse succeeds.
	require.NoError(t, rl.Allow(actor, "propose", now.Add(governance.DecayWindow+2*time.Second)))
}
