package persistence_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stroma/identity"
	"stroma/keyring"
	"stroma/persistence"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func testKeyring(t *testing.T) *keyring.Keyring {
	t.Helper()
	kr, err := keyring.FromMnemonic(testMnemonic)
	require.NoError(t, err)
	return kr
}

func botID(t *testing.T, b byte) identity.BotID {
	t.Helper()
	bytes := make([]byte, 20)
	bytes[19] = b
	id, err := identity.NewBotID(bytes)
	require.NoError(t, err)
	return id
}

func TestEncryptChunkReassembleRoundTrip(t *testing.T) {
	kr := testKeyring(t)
	owner := botID(t, 1)
	state := make([]byte, 200*1024) // spans multiple 64 KiB chunks
	for i := range state {
		state[i] = byte(i % 251)
	}

	chunks, err := persistence.EncryptAndChunk(kr, owner, state)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks {
		ok, err := persistence.VerifyChunkSignature(kr, c)
		require.NoError(t, err)
		require.True(t, ok)
	}

	plaintext, err := persistence.Reassemble(kr, chunks)
	require.NoError(t, err)
	require.Equal(t, state, plaintext)
}

func TestRendezvousHoldersDeterministicAndExcludeOwner(t *testing.T) {
	owner := botID(t, 1)
	candidates := []identity.BotID{botID(t, 2), botID(t, 3), botID(t, 4), owner}

	holdersA, err := persistence.ComputeChunkHolders(owner, 0, candidates, 1, 2)
	require.NoError(t, err)
	holdersB, err := persistence.ComputeChunkHolders(owner, 0, candidates, 1, 2)
	require.NoError(t, err)

	require.Equal(t, holdersA, holdersB)
	for _, h := range holdersA {
		require.NotEqual(t, owner.String(), h.String())
	}
}

func TestFairnessChallengeRoundTrip(t *testing.T) {
	data := make([]byte, 1024)
	for i := range data {
		data[i] = byte(i)
	}

	now := time.Now()
	challenge, err := persistence.NewChallenge(persistence.OwnerID{1}, 0, len(data), now)
	require.NoError(t, err)

	response, err := persistence.Respond(challenge, data)
	require.NoError(t, err)

	require.NoError(t, persistence.Verify(challenge, response, data, now, now.Add(10*time.Minute)))
	require.ErrorIs(t, persistence.Verify(challenge, response, data, now, now.Add(2*time.Hour)), persistence.ErrChallengeExpired)
}

func TestAttestationRoundTrip(t *testing.T) {
	holderKey, err := identity.GenerateIdentityKey()
	require.NoError(t, err)
	owner := botID(t, 7)

	var chunkHash [32]byte
	chunkHash[0] = 0xAB

	attestation, err := persistence.Attest(holderKey, owner, chunkHash, time.Now())
	require.NoError(t, err)

	ok, err := persistence.VerifyAttestation(attestation)
	require.NoError(t, err)
	require.True(t, ok)
}
