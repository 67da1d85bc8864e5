package proof

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Prove builds the execution trace for claim, commits to each row, and
// serializes the wire-format proof (spec §6 "STARK proof"). The prover does
// not perform FRI/polynomial-commitment work: this is a structural and
// algebraic proof, not a full cryptographic soundness proof (see Verify).
func Prove(claim VouchClaim) (VouchProof, error) {
	if !claim.VerifyConsistency() {
		return VouchProof{}, fmt.Errorf("proof: claim is not internally consistent")
	}

	trace := BuildTrace(claim)
	commitments := make([][32]byte, len(trace.Rows))
	for i, row := range trace.Rows {
		commitments[i] = commitRow(row)
	}

	blob, err := encodeProof(commitments, claim)
	if err != nil {
		return VouchProof{}, err
	}
	if len(blob) > MaxProofSize {
		return VouchProof{}, fmt.Errorf("proof: serialized proof %d bytes exceeds %d byte limit", len(blob), MaxProofSize)
	}

	return VouchProof{Claim: claim, Blob: blob}, nil
}

func commitRow(row Row) [32]byte {
	var buf [traceWidth * 8]byte
	for i, col := range row {
		binary.LittleEndian.PutUint64(buf[i*8:(i+1)*8], col)
	}
	return sha256.Sum256(buf[:])
}

func encodeProof(commitments [][32]byte, claim VouchClaim) ([]byte, error) {
	buf := make([]byte, 0, 8+len(commitments)*32+8+8+8)

	var traceLen [8]byte
	binary.LittleEndian.PutUint64(traceLen[:], uint64(len(commitments)))
	buf = append(buf, traceLen[:]...)

	for _, c := range commitments {
		buf = append(buf, c[:]...)
	}

	var ev, rf [8]byte
	binary.LittleEndian.PutUint64(ev[:], claim.EffectiveVouches)
	binary.LittleEndian.PutUint64(rf[:], claim.RegularFlags)
	buf = append(buf, ev[:]...)
	buf = append(buf, rf[:]...)

	var standing [8]byte
	binary.LittleEndian.PutUint64(standing[:], uint64(claim.Standing))
	buf = append(buf, standing[:]...)

	return buf, nil
}
