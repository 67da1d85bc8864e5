// Package proof implements the STARK-style vouch claim: a structural and
// algebraic proof that effective_vouches, regular_flags, and standing were
// computed honestly from a member's voucher and flagger sets. The claim
// carries those sets, and verification checks its arithmetic against them.
package proof

import (
	"sort"

	"stroma/identity"
)

// standingOffset biases the signed `standing` value into an unsigned
// column per spec §4.5's trace encoding.
const standingOffset = int64(1) << 31

// MaxProofSize bounds the serialized proof blob (spec §4.5 performance
// contract).
const MaxProofSize = 100 * 1024

// VouchClaim is the public statement a VouchProof attests to.
type VouchClaim struct {
	Subject          identity.MemberHash
	Vouchers         []identity.MemberHash
	Flaggers         []identity.MemberHash
	EffectiveVouches uint64
	RegularFlags     uint64
	Standing         int64
}

// NewClaim computes the derived counts from voucher/flagger sets and
// returns the claim. Inputs need not be pre-sorted or deduplicated.
func NewClaim(subject identity.MemberHash, vouchers, flaggers []identity.MemberHash) VouchClaim {
	voucherSet := toSet(vouchers)
	flaggerSet := toSet(flaggers)

	intersection := 0
	for h := range voucherSet {
		if _, ok := flaggerSet[h]; ok {
			intersection++
		}
	}
	effective := len(voucherSet) - intersection
	regular := len(flaggerSet) - intersection

	return VouchClaim{
		Subject:          subject,
		Vouchers:         sortedKeys(voucherSet),
		Flaggers:         sortedKeys(flaggerSet),
		EffectiveVouches: uint64(effective),
		RegularFlags:     uint64(regular),
		Standing:         int64(effective) - int64(regular),
	}
}

// VerifyConsistency checks that the claim's three derived counts are
// internally consistent with its voucher/flagger sets, independent of any
// proof. A tampered claim fails here before any proof check runs.
func (c VouchClaim) VerifyConsistency() bool {
	voucherSet := toSet(c.Vouchers)
	flaggerSet := toSet(c.Flaggers)
	intersection := 0
	for h := range voucherSet {
		if _, ok := flaggerSet[h]; ok {
			intersection++
		}
	}
	effective := len(voucherSet) - intersection
	regular := len(flaggerSet) - intersection
	if uint64(effective) != c.EffectiveVouches {
		return false
	}
	if uint64(regular) != c.RegularFlags {
		return false
	}
	if int64(effective)-int64(regular) != c.Standing {
		return false
	}
	return true
}

// VouchProof pairs a claim with an opaque proof blob.
type VouchProof struct {
	Claim VouchClaim
	Blob  []byte
}

func toSet(hashes []identity.MemberHash) map[identity.MemberHash]struct{} {
	set := make(map[identity.MemberHash]struct{}, len(hashes))
	for _, h := range hashes {
		set[h] = struct{}{}
	}
	return set
}

func sortedKeys(set map[identity.MemberHash]struct{}) []identity.MemberHash {
	out := make([]identity.MemberHash, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		return lessHash(out[i], out[j])
	})
	return out
}

func lessHash(a, b identity.MemberHash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
