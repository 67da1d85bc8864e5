package graph

import (
	"sort"

	"stroma/identity"
)

// IntroPriority ranks a suggested introduction. 0 is most valuable.
type IntroPriority int

const (
	PriorityDVROptimal     IntroPriority = 0
	PriorityMSTFallback    IntroPriority = 1
	PriorityClusterBridge  IntroPriority = 2
)

// Introduction is one suggested vouch pair (A, B), ranked by Priority.
type Introduction struct {
	A        identity.MemberHash
	B        identity.MemberHash
	Priority IntroPriority
}

// SuggestIntroductions ranks candidate introduction pairs among members not
// already connected by a vouch edge (in either direction):
//
//   - priority 0 (DVR-optimal): both endpoints are in the same cluster and
//     their voucher sets are disjoint, so introducing them grows the
//     distinct-validator accumulation without forcing either out of future
//     DVR selection; same-cluster pairs whose voucher sets overlap are not
//     suggested;
//   - priority 1 (MST fallback): the pair spans two different clusters and
//     no existing vouch connects those two clusters;
//   - priority 2: the pair spans two clusters that an existing vouch
//     already connects.
//
// Every unconnected cross-cluster pair is listed; no single cheapest bridge
// per cluster pair is chosen. The result is ordered by priority, then A,
// then B.
func SuggestIntroductions(
	members []identity.MemberHash,
	vouchersFor func(identity.MemberHash) []identity.MemberHash,
	vouchesOf func(identity.MemberHash) []identity.MemberHash,
) []Introduction {
	clusters := DetectClusters(members, vouchesOf)

	voucherSets := make(map[identity.MemberHash]map[identity.MemberHash]struct{}, len(members))
	for _, m := range members {
		set := map[identity.MemberHash]struct{}{}
		for _, v := range vouchersFor(m) {
			set[v] = struct{}{}
		}
		voucherSets[m] = set
	}

	connected := make(map[[2]identity.MemberHash]struct{})
	for _, m := range members {
		for _, v := range vouchesOf(m) {
			connected[pairKey(m, v)] = struct{}{}
		}
	}

	crossClusterWeight := map[[2]ClusterID]int{}
	for _, m := range members {
		for _, v := range vouchesOf(m) {
			cm, cv := clusters.MemberClusters[m], clusters.MemberClusters[v]
			if cm == cv {
				continue
			}
			crossClusterWeight[clusterPairKey(cm, cv)]++
		}
	}

	var out []Introduction
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			a, b := members[i], members[j]
			if _, ok := connected[pairKey(a, b)]; ok {
				continue
			}

			sameCluster := clusters.MemberClusters[a] == clusters.MemberClusters[b]
			if sameCluster && !overlaps(voucherSets[a], voucherSets[b]) {
				out = append(out, Introduction{A: a, B: b, Priority: PriorityDVROptimal})
				continue
			}
			if !sameCluster {
				weight := crossClusterWeight[clusterPairKey(clusters.MemberClusters[a], clusters.MemberClusters[b])]
				priority := PriorityMSTFallback
				if weight > 0 {
					priority = PriorityClusterBridge
				}
				out = append(out, Introduction{A: a, B: b, Priority: priority})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		if out[i].A != out[j].A {
			return lessHash(out[i].A, out[j].A)
		}
		return lessHash(out[i].B, out[j].B)
	})
	return out
}

func pairKey(a, b identity.MemberHash) [2]identity.MemberHash {
	if lessHash(a, b) {
		return [2]identity.MemberHash{a, b}
	}
	return [2]identity.MemberHash{b, a}
}

func clusterPairKey(a, b ClusterID) [2]ClusterID {
	if a < b {
		return [2]ClusterID{a, b}
	}
	return [2]ClusterID{b, a}
}
