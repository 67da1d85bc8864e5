package graph

import (
	"sort"

	"stroma/identity"
)

// HealthBucket classifies a DVR value per spec §4.6.
type HealthBucket int

const (
	HealthUnhealthy HealthBucket = iota
	HealthDeveloping
	HealthHealthy
)

func (b HealthBucket) String() string {
	switch b {
	case HealthUnhealthy:
		return "unhealthy"
	case HealthDeveloping:
		return "developing"
	case HealthHealthy:
		return "healthy"
	default:
		return "unknown"
	}
}

// candidate pairs a member with its standing for DVR ranking.
type candidate struct {
	hash     identity.MemberHash
	standing int64
	vouchers map[identity.MemberHash]struct{}
}

// DVRResult is the outcome of distinct-validator-ratio computation.
type DVRResult struct {
	DistinctValidators []identity.MemberHash
	Ratio              float64
	Bucket             HealthBucket
}

// ComputeDVR selects distinct validators greedily by descending standing,
// skipping any candidate whose voucher set overlaps the accumulated union
// of already-chosen validators' vouchers, then divides by floor(|members|/4).
func ComputeDVR(
	members []identity.MemberHash,
	standingOf func(identity.MemberHash) int64,
	vouchersFor func(identity.MemberHash) []identity.MemberHash,
	standingThreshold int64,
) DVRResult {
	var candidates []candidate
	for _, m := range members {
		standing := standingOf(m)
		if standing < standingThreshold {
			continue
		}
		voucherSet := make(map[identity.MemberHash]struct{})
		for _, v := range vouchersFor(m) {
			voucherSet[v] = struct{}{}
		}
		candidates = append(candidates, candidate{hash: m, standing: standing, vouchers: voucherSet})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].standing != candidates[j].standing {
			return candidates[i].standing > candidates[j].standing
		}
		return lessHash(candidates[i].hash, candidates[j].hash)
	})

	accumulated := map[identity.MemberHash]struct{}{}
	var distinct []identity.MemberHash
	for _, c := range candidates {
		if overlaps(c.vouchers, accumulated) {
			continue
		}
		distinct = append(distinct, c.hash)
		for v := range c.vouchers {
			accumulated[v] = struct{}{}
		}
	}
	sortHashes(distinct)

	denom := len(members) / 4
	var ratio float64
	if denom > 0 {
		ratio = float64(len(distinct)) / float64(denom)
	}

	return DVRResult{
		DistinctValidators: distinct,
		Ratio:              ratio,
		Bucket:             bucketFor(ratio),
	}
}

func bucketFor(ratio float64) HealthBucket {
	switch {
	case ratio < 0.33:
		return HealthUnhealthy
	case ratio < 0.66:
		return HealthDeveloping
	default:
		return HealthHealthy
	}
}

func overlaps(a, b map[identity.MemberHash]struct{}) bool {
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	for h := range small {
		if _, ok := large[h]; ok {
			return true
		}
	}
	return false
}
