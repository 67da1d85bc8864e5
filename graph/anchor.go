package graph

import (
	"crypto/sha256"
	"fmt"
	"sort"

	"stroma/identity"
)

// FibonacciBuckets are the fixed validator-count buckets social anchors are
// computed at (spec §4.6). Fixed counts, not percentiles, so two groups of
// different sizes still produce a matching hash whenever they share the
// same top-N validators.
var FibonacciBuckets = []int{3, 5, 8, 13, 21, 34, 55, 89, 144, 233, 377, 610, 987}

// SocialAnchor is the hash of a sorted top-N validator set.
type SocialAnchor [32]byte

// DiscoveryURI renders the anchor per spec §6's wire format.
func (a SocialAnchor) DiscoveryURI() string {
	return fmt.Sprintf("overlay-scheme://stroma/discovery/%x", a[:])
}

// Anchor pairs a Fibonacci bucket size with its computed social anchor.
type Anchor struct {
	BucketSize int
	Hash       SocialAnchor
}

// ComputeSocialAnchors ranks members by effective vouch count descending
// (MemberHash tie-break), then computes one anchor per Fibonacci bucket the
// group is large enough to fill.
func ComputeSocialAnchors(members []identity.MemberHash, effectiveVouchCount func(identity.MemberHash) int) []Anchor {
	ranked := append([]identity.MemberHash(nil), members...)
	sort.Slice(ranked, func(i, j int) bool {
		ci, cj := effectiveVouchCount(ranked[i]), effectiveVouchCount(ranked[j])
		if ci != cj {
			return ci > cj
		}
		return lessHash(ranked[i], ranked[j])
	})

	var anchors []Anchor
	for _, bucket := range FibonacciBuckets {
		if len(ranked) < bucket {
			break
		}
		anchors = append(anchors, Anchor{
			BucketSize: bucket,
			Hash:       hashTopN(ranked[:bucket]),
		})
	}
	return anchors
}

func hashTopN(top []identity.MemberHash) SocialAnchor {
	sorted := append([]identity.MemberHash(nil), top...)
	sortHashes(sorted)

	h := sha256.New()
	for _, m := range sorted {
		h.Write(m[:])
	}
	var out SocialAnchor
	copy(out[:], h.Sum(nil))
	return out
}

// DescribeAnchors renders each computed anchor's discovery URI alongside its
// bucket size, for the federation display surface (supplemented per the
// original social-anchor design's `DiscoveryUri` formatting, which the
// distilled spec omits).
func DescribeAnchors(anchors []Anchor) []string {
	out := make([]string, len(anchors))
	for i, a := range anchors {
		out[i] = fmt.Sprintf("bucket=%d %s", a.BucketSize, a.Hash.DiscoveryURI())
	}
	return out
}
