package proof

import "stroma/identity"

// traceWidth is the fixed column count of the execution trace (spec §4.5).
const traceWidth = 8

// minTraceLen is the floor on trace length even for small vouch sets.
const minTraceLen = 8

// Row is one row of the execution trace. Columns 0-2 are cumulative
// voucher/flagger/intersection counts; columns 3-5 are the derived
// effective_vouches, regular_flags, and offset-encoded standing.
type Row [traceWidth]uint64

// Trace is the full execution trace built for a claim.
type Trace struct {
	Rows []Row
}

// BuildTrace walks the sorted union of vouchers and flaggers one member per
// row, accumulating the three running counts and their derived columns.
// Once the union is exhausted, remaining rows up to the next power-of-two
// length hold their values steady (a valid 0-increment transition),
// matching the "columns 0-2 increment by 0 or 1" rule.
func BuildTrace(claim VouchClaim) Trace {
	voucherSet := toSet(claim.Vouchers)
	flaggerSet := toSet(claim.Flaggers)
	union := unionSorted(claim.Vouchers, claim.Flaggers)

	length := nextPow2(maxInt(len(union), minTraceLen))
	rows := make([]Row, length)
	// Row 0 is all zeros by construction (the zero value of Row).

	var cumV, cumF, cumI uint64
	for k := 1; k < length; k++ {
		if k-1 < len(union) {
			member := union[k-1]
			_, isV := voucherSet[member]
			_, isF := flaggerSet[member]
			if isV {
				cumV++
			}
			if isF {
				cumF++
			}
			if isV && isF {
				cumI++
			}
		}
		effective := cumV - cumI
		regular := cumF - cumI
		standing := int64(effective) - int64(regular) + standingOffset

		rows[k] = Row{cumV, cumF, cumI, effective, regular, uint64(standing), 0, 0}
	}
	return Trace{Rows: rows}
}

// unionSorted returns the sorted, deduplicated union of a and b.
func unionSorted(a, b []identity.MemberHash) []identity.MemberHash {
	set := make(map[identity.MemberHash]struct{}, len(a)+len(b))
	for _, h := range a {
		set[h] = struct{}{}
	}
	for _, h := range b {
		set[h] = struct{}{}
	}
	return sortedKeys(set)
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
