// Package graph provides read-only analytics over a trust contract's
// member and vouch data: distinct-validator ratio, cluster detection,
// strategic introduction suggestions, and federation social anchors.
package graph

import (
	"sort"

	"stroma/identity"
)

// ClusterID identifies one connected component.
type ClusterID int

// ClusterResult is the outcome of connected-component detection over the
// undirected union of vouch edges.
type ClusterResult struct {
	Clusters       map[ClusterID][]identity.MemberHash
	MemberClusters map[identity.MemberHash]ClusterID
}

// Count returns the number of clusters detected.
func (r ClusterResult) Count() int { return len(r.Clusters) }

// NeedsAnnouncement reports whether the one-shot cluster-formation
// announcement (GAP-11) should fire: the network has split into two or
// more clusters.
func (r ClusterResult) NeedsAnnouncement() bool { return r.Count() >= 2 }

// DetectClusters finds connected components over the vouch graph via DFS.
// This is a plain connected-components pass, not a bridge-removal
// (Tarjan) refinement; components of size >= 2 are clusters, and every
// isolated member is its own trivial one-member cluster.
// TODO: separate tight sub-clusters within a component via bridge removal
// once a concrete case requires finer granularity than connectivity alone.
func DetectClusters(members []identity.MemberHash, vouchesOf func(identity.MemberHash) []identity.MemberHash) ClusterResult {
	if len(members) == 0 {
		return ClusterResult{Clusters: map[ClusterID][]identity.MemberHash{}, MemberClusters: map[identity.MemberHash]ClusterID{}}
	}

	adjacency := buildUndirectedGraph(members, vouchesOf)

	visited := make(map[identity.MemberHash]bool, len(members))
	clusters := map[ClusterID][]identity.MemberHash{}
	memberClusters := map[identity.MemberHash]ClusterID{}

	sorted := append([]identity.MemberHash(nil), members...)
	sortHashes(sorted)

	var nextID ClusterID
	for _, m := range sorted {
		if visited[m] {
			continue
		}
		component := dfsComponent(m, adjacency, visited)
		sortHashes(component)
		clusters[nextID] = component
		for _, c := range component {
			memberClusters[c] = nextID
		}
		nextID++
	}

	return ClusterResult{Clusters: clusters, MemberClusters: memberClusters}
}

func buildUndirectedGraph(members []identity.MemberHash, vouchesOf func(identity.MemberHash) []identity.MemberHash) map[identity.MemberHash]map[identity.MemberHash]struct{} {
	graph := make(map[identity.MemberHash]map[identity.MemberHash]struct{}, len(members))
	for _, m := range members {
		graph[m] = map[identity.MemberHash]struct{}{}
	}
	for _, voucher := range members {
		for _, vouchee := range vouchesOf(voucher) {
			if graph[voucher] == nil {
				graph[voucher] = map[identity.MemberHash]struct{}{}
			}
			if graph[vouchee] == nil {
				graph[vouchee] = map[identity.MemberHash]struct{}{}
			}
			graph[voucher][vouchee] = struct{}{}
			graph[vouchee][voucher] = struct{}{}
		}
	}
	return graph
}

func dfsComponent(start identity.MemberHash, graph map[identity.MemberHash]map[identity.MemberHash]struct{}, visited map[identity.MemberHash]bool) []identity.MemberHash {
	var component []identity.MemberHash
	stack := []identity.MemberHash{start}
	for len(stack) > 0 {
		u := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[u] {
			continue
		}
		visited[u] = true
		component = append(component, u)
		for v := range graph[u] {
			if !visited[v] {
				stack = append(stack, v)
			}
		}
	}
	return component
}

func sortHashes(hashes []identity.MemberHash) {
	sort.Slice(hashes, func(i, j int) bool {
		return lessHash(hashes[i], hashes[j])
	})
}

func lessHash(a, b identity.MemberHash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
