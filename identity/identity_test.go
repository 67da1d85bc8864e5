package identity_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"stroma/identity"
)

func TestMaskIsDeterministicPerKey(t *testing.T) {
	var key [32]byte
	copy(key[:], []byte("masking-key-fixture-32-bytes!!"))

	a, err := identity.Mask(&key, "alice")
	require.NoError(t, err)
	b, err := identity.Mask(&key, "alice")
	require.NoError(t, err)
	require.Equal(t, a, b)

	c, err := identity.Mask(&key, "bob")
	require.NoError(t, err)
	require.NotEqual(t, a, c)
}

func TestMaskDiffersAcrossKeys(t *testing.T) {
	var keyA, keyB [32]byte
	copy(keyA[:], []byte("key-a-fixture-32-bytes-long!!!!"))
	copy(keyB[:], []byte("key-b-fixture-32-bytes-long!!!!"))

	a, err := identity.Mask(&keyA, "alice")
	require.NoError(t, err)
	b, err := identity.Mask(&keyB, "alice")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestMemberHashIsZeroDetection(t *testing.T) {
	var h identity.MemberHash
	require.True(t, h.IsZero())

	var key [32]byte
	copy(key[:], []byte("masking-key-fixture-32-bytes!!"))
	masked, err := identity.Mask(&key, "alice")
	require.NoError(t, err)
	require.False(t, masked.IsZero())
}

func TestBotIDRoundTripsThroughBech32(t *testing.T) {
	key, err := identity.GenerateIdentityKey()
	require.NoError(t, err)

	id := key.BotID()
	encoded := id.String()
	require.Contains(t, encoded, "stroma1")

	decoded, err := identity.DecodeBotID(encoded)
	require.NoError(t, err)
	require.Equal(t, id.Bytes(), decoded.Bytes())
}

func TestDecodeBotIDRejectsWrongPrefix(t *testing.T) {
	_, err := identity.DecodeBotID("bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq")
	require.Error(t, err)
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	key, err := identity.GenerateIdentityKey()
	require.NoError(t, err)

	var digest [32]byte
	copy(digest[:], []byte("a chunk commitment digest!!!!!!"))

	sig, err := key.Sign(digest)
	require.NoError(t, err)

	ok, err := identity.Verify(digest, sig, key.BotID())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	key, err := identity.GenerateIdentityKey()
	require.NoError(t, err)
	other, err := identity.GenerateIdentityKey()
	require.NoError(t, err)

	var digest [32]byte
	copy(digest[:], []byte("a chunk commitment digest!!!!!!"))

	sig, err := key.Sign(digest)
	require.NoError(t, err)

	ok, err := identity.Verify(digest, sig, other.BotID())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIdentityKeyBytesRoundTrip(t *testing.T) {
	key, err := identity.GenerateIdentityKey()
	require.NoError(t, err)

	restored, err := identity.IdentityKeyFromBytes(key.Bytes())
	require.NoError(t, err)
	require.Equal(t, key.BotID().String(), restored.BotID().String())
}

func TestSaveAndLoadIdentityKeystoreRoundTrip(t *testing.T) {
	key, err := identity.GenerateIdentityKey()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "identity.json")
	require.NoError(t, identity.SaveIdentityKeystore(path, key, "correct horse battery staple"))

	loaded, err := identity.LoadIdentityKeystore(path, "correct horse battery staple")
	require.NoError(t, err)
	require.Equal(t, key.BotID().String(), loaded.BotID().String())
}

func TestLoadIdentityKeystoreRejectsWrongPassphrase(t *testing.T) {
	key, err := identity.GenerateIdentityKey()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "identity.json")
	require.NoError(t, identity.SaveIdentityKeystore(path, key, "correct horse battery staple"))

	_, err = identity.LoadIdentityKeystore(path, "wrong passphrase")
	require.Error(t, err)
}
