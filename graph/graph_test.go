package graph_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"stroma/graph"
	"stroma/identity"
)

func hashOf(b byte) identity.MemberHash {
	var h identity.MemberHash
	h[31] = b
	return h
}

func TestDetectClustersSingleComponent(t *testing.T) {
	members := []identity.MemberHash{hashOf(1), hashOf(2), hashOf(3), hashOf(4), hashOf(5)}
	edges := map[identity.MemberHash][]identity.MemberHash{
		hashOf(1): {hashOf(2), hashOf(3)},
		hashOf(2): {hashOf(3), hashOf(4)},
		hashOf(3): {hashOf(4), hashOf(5)},
	}
	result := graph.DetectClusters(members, func(h identity.MemberHash) []identity.MemberHash { return edges[h] })
	require.Equal(t, 1, result.Count())
	require.False(t, result.NeedsAnnouncement())
}

func TestDetectClustersSplitsAtTwoComponents(t *testing.T) {
	members := []identity.MemberHash{hashOf(1), hashOf(2), hashOf(3), hashOf(4)}
	edges := map[identity.MemberHash][]identity.MemberHash{
		hashOf(1): {hashOf(2)},
		hashOf(3): {hashOf(4)},
	}
	result := graph.DetectClusters(members, func(h identity.MemberHash) []identity.MemberHash { return edges[h] })
	require.Equal(t, 2, result.Count())
	require.True(t, result.NeedsAnnouncement())
}

func TestComputeDVRSkipsOverlappingVouchers(t *testing.T) {
	members := []identity.MemberHash{hashOf(1), hashOf(2), hashOf(3), hashOf(4), hashOf(5), hashOf(6), hashOf(7), hashOf(8)}
	standing := map[identity.MemberHash]int64{
		hashOf(1): 5, hashOf(2): 4, hashOf(3): 3, hashOf(4): 2,
	}
	vouchers := map[identity.MemberHash][]identity.MemberHash{
		hashOf(1): {hashOf(5), hashOf(6)},
		hashOf(2): {hashOf(5), hashOf(7)}, // overlaps with 1 at hashOf(5)
		hashOf(3): {hashOf(8)},
	}
	result := graph.ComputeDVR(members,
		func(h identity.MemberHash) int64 { return standing[h] },
		func(h identity.MemberHash) []identity.MemberHash { return vouchers[h] },
		1,
	)
	require.Contains(t, result.DistinctValidators, hashOf(1))
	require.NotContains(t, result.DistinctValidators, hashOf(2), "overlapping voucher set must be skipped")
	require.Contains(t, result.DistinctValidators, hashOf(3))
}

func TestComputeSocialAnchorsMatchAcrossGroupsWithSameTopN(t *testing.T) {
	groupA := []identity.MemberHash{hashOf(1), hashOf(2), hashOf(3)}
	groupB := []identity.MemberHash{hashOf(1), hashOf(2), hashOf(3), hashOf(9)}

	counts := map[identity.MemberHash]int{
		hashOf(1): 10, hashOf(2): 8, hashOf(3): 5, hashOf(9): 1,
	}
	countFn := func(h identity.MemberHash) int { return counts[h] }

	anchorsA := graph.ComputeSocialAnchors(groupA, countFn)
	anchorsB := graph.ComputeSocialAnchors(groupB, countFn)

	require.Len(t, anchorsA, 1) // only bucket 3 fits
	require.True(t, len(anchorsB) >= 1)
	require.Equal(t, anchorsA[0].Hash, anchorsB[0].Hash, "same top-3 validators must hash equal")
}

func TestSuggestIntroductionsSkipsAlreadyConnectedPairs(t *testing.T) {
	members := []identity.MemberHash{hashOf(1), hashOf(2), hashOf(3)}
	vouches := map[identity.MemberHash][]identity.MemberHash{
		hashOf(1): {hashOf(2)},
	}
	intros := graph.SuggestIntroductions(members,
		func(h identity.MemberHash) []identity.MemberHash { return nil },
		func(h identity.MemberHash) []identity.MemberHash { return vouches[h] },
	)
	for _, intro := range intros {
		require.False(t, intro.A == hashOf(1) && intro.B == hashOf(2))
		require.False(t, intro.A == hashOf(2) && intro.B == hashOf(1))
	}
}
