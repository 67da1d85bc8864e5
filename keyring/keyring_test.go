package keyring_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"stroma/keyring"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestFromMnemonicRejectsInvalidMnemonic(t *testing.T) {
	_, err := keyring.FromMnemonic("not a real bip39 mnemonic at all")
	require.ErrorIs(t, err, keyring.ErrInvalidMnemonic)
}

func TestFromMnemonicIsDeterministic(t *testing.T) {
	a, err := keyring.FromMnemonic(testMnemonic)
	require.NoError(t, err)
	b, err := keyring.FromMnemonic(testMnemonic)
	require.NoError(t, err)

	require.Equal(t, *a.IdentityMaskingKey(), *b.IdentityMaskingKey())
	require.Equal(t, *a.VoterPepper(), *b.VoterPepper())
	require.Equal(t, *a.ChunkEncryptionKey(), *b.ChunkEncryptionKey())
	require.Equal(t, *a.ChunkSigningKey(), *b.ChunkSigningKey())
	require.Equal(t, *a.StateEncryptionKey(), *b.StateEncryptionKey())
	require.Equal(t, *a.StateSigningKey(), *b.StateSigningKey())
}

func TestSubkeysAreDistinctFromEachOther(t *testing.T) {
	kr, err := keyring.FromMnemonic(testMnemonic)
	require.NoError(t, err)

	subkeys := [][32]byte{
		*kr.IdentityMaskingKey(),
		*kr.VoterPepper(),
		*kr.ChunkEncryptionKey(),
		*kr.ChunkSigningKey(),
		*kr.StateEncryptionKey(),
		*kr.StateSigningKey(),
	}
	for i := range subkeys {
		for j := i + 1; j < len(subkeys); j++ {
			require.NotEqual(t, subkeys[i], subkeys[j])
		}
	}
}

func TestDifferentMnemonicsYieldDifferentSubkeys(t *testing.T) {
	a, err := keyring.FromMnemonic(testMnemonic)
	require.NoError(t, err)
	other := "legal winner thank year wave sausage worth useful legal winner thank yellow"
	b, err := keyring.FromMnemonic(other)
	require.NoError(t, err)

	require.NotEqual(t, *a.IdentityMaskingKey(), *b.IdentityMaskingKey())
}

func TestCloseZeroesSubkeysAndIsIdempotent(t *testing.T) {
	kr, err := keyring.FromMnemonic(testMnemonic)
	require.NoError(t, err)

	kr.Close()
	var zero [32]byte
	require.Equal(t, zero, *kr.IdentityMaskingKey())
	require.Equal(t, zero, *kr.VoterPepper())

	require.NotPanics(t, func() { kr.Close() })
}

func TestEpochStartsAtOne(t *testing.T) {
	kr, err := keyring.FromMnemonic(testMnemonic)
	require.NoError(t, err)
	require.Equal(t, uint64(1), kr.Epoch())
}
