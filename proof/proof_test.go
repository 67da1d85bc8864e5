package proof_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"stroma/identity"
	"stroma/proof"
)

func hashOf(b byte) identity.MemberHash {
	var h identity.MemberHash
	h[31] = b
	return h
}

func TestProveAndVerifyRoundTrip(t *testing.T) {
	subject := hashOf(1)
	vouchers := []identity.MemberHash{hashOf(2), hashOf(3), hashOf(4)}
	flaggers := []identity.MemberHash{hashOf(4), hashOf(5)}

	claim := proof.NewClaim(subject, vouchers, flaggers)
	require.Equal(t, uint64(2), claim.EffectiveVouches)
	require.Equal(t, uint64(1), claim.RegularFlags)
	require.Equal(t, int64(1), claim.Standing)

	p, err := proof.Prove(claim)
	require.NoError(t, err)
	require.LessOrEqual(t, len(p.Blob), proof.MaxProofSize)

	require.NoError(t, proof.Verify(p))
}

func TestVerifyRejectsTamperedClaim(t *testing.T) {
	subject := hashOf(1)
	vouchers := []identity.MemberHash{hashOf(2), hashOf(3)}
	claim := proof.NewClaim(subject, vouchers, nil)

	p, err := proof.Prove(claim)
	require.NoError(t, err)

	tampered := p
	tampered.Claim.EffectiveVouches = 999

	err = proof.Verify(tampered)
	require.ErrorIs(t, err, proof.ErrInconsistentClaim)
}

func TestVerifyRejectsPublicInputMismatch(t *testing.T) {
	claimA := proof.NewClaim(hashOf(1), []identity.MemberHash{hashOf(2), hashOf(3)}, nil)
	claimB := proof.NewClaim(hashOf(1), []identity.MemberHash{hashOf(2)}, nil)

	p, err := proof.Prove(claimA)
	require.NoError(t, err)

	// Swap in a proof blob built for a different (but self-consistent) claim.
	pB, err := proof.Prove(claimB)
	require.NoError(t, err)

	mixed := proof.VouchProof{Claim: claimA, Blob: pB.Blob}
	err = proof.Verify(mixed)
	require.Error(t, err)
	_ = p
}

func TestBuildTraceRowZeroIsAllZero(t *testing.T) {
	claim := proof.NewClaim(hashOf(1), []identity.MemberHash{hashOf(2)}, []identity.MemberHash{hashOf(3)})
	trace := proof.BuildTrace(claim)
	require.NotEmpty(t, trace.Rows)
	for _, col := range trace.Rows[0] {
		require.Equal(t, uint64(0), col)
	}
	// Trace length must be a power of two.
	n := len(trace.Rows)
	require.Zero(t, n&(n-1))
}
