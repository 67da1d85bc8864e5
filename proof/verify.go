package proof

import (
	"encoding/binary"
	"fmt"
)

// ErrInconsistentClaim is returned when the claim's own arithmetic does not
// add up, independent of any proof.
var ErrInconsistentClaim = fmt.Errorf("proof: claim arithmetic is inconsistent")

// ErrMalformedProof is returned when the proof blob's structure does not
// match the trace it claims to commit to.
var ErrMalformedProof = fmt.Errorf("proof: malformed proof blob")

// ErrPublicInputMismatch is returned when the proof's embedded public
// inputs disagree with the claim being checked.
var ErrPublicInputMismatch = fmt.Errorf("proof: public inputs do not match claim")

// Verify performs structural and algebraic verification of a VouchProof
// against the claim it accompanies:
//
//  1. the trace length recorded in the proof is a power of two;
//  2. the serialized proof length matches that trace length;
//  3. the claim's own arithmetic is self-consistent;
//  4. each public input encoded in the proof matches the claim.
//
// This is deliberately not a full polynomial-commitment (FRI) soundness
// check: a forged proof for a tampered claim is still caught because step 3
// fails first, but Verify does not rebuild the trace or check the committed
// rows against it; the rows are only counted, through the blob length.
// TODO: extend with a FRI-based low-degree test over the committed rows if
// the verifier ever needs soundness against a prover that skips step 3.
func Verify(p VouchProof) error {
	if !p.Claim.VerifyConsistency() {
		return ErrInconsistentClaim
	}

	blob := p.Blob
	if len(blob) < 8 {
		return ErrMalformedProof
	}
	traceLen := binary.LittleEndian.Uint64(blob[:8])
	if traceLen == 0 || traceLen&(traceLen-1) != 0 {
		return fmt.Errorf("%w: trace length %d is not a power of two", ErrMalformedProof, traceLen)
	}

	expectedLen := 8 + int(traceLen)*32 + 8 + 8 + 8
	if len(blob) != expectedLen {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedProof, expectedLen, len(blob))
	}

	offset := 8 + int(traceLen)*32
	effectiveVouches := binary.LittleEndian.Uint64(blob[offset : offset+8])
	regularFlags := binary.LittleEndian.Uint64(blob[offset+8 : offset+16])
	standing := int64(binary.LittleEndian.Uint64(blob[offset+16 : offset+24]))

	if effectiveVouches != p.Claim.EffectiveVouches {
		return fmt.Errorf("%w: effective_vouches", ErrPublicInputMismatch)
	}
	if regularFlags != p.Claim.RegularFlags {
		return fmt.Errorf("%w: regular_flags", ErrPublicInputMismatch)
	}
	if standing != p.Claim.Standing {
		return fmt.Errorf("%w: standing", ErrPublicInputMismatch)
	}

	return nil
}
