package identity

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// botIDPrefix is the human-readable prefix for a bech32-encoded BotID. A
// BotID is a network identifier surfaced on federation/discovery surfaces;
// it is never a MemberHash and never derived from a member's cleartext.
const botIDPrefix = "stroma"

// BotID is the bech32-encoded public identifier of a bot process, derived
// from its secp256k1 identity key. Distinct from MemberHash: a BotID names
// a bot, a MemberHash names a chat member as seen by one bot.
type BotID struct {
	bytes []byte
}

// NewBotID wraps a 20-byte address payload.
func NewBotID(b []byte) (BotID, error) {
	if len(b) != 20 {
		return BotID{}, fmt.Errorf("identity: bot id must be 20 bytes, got %d", len(b))
	}
	cloned := append([]byte(nil), b...)
	return BotID{bytes: cloned}, nil
}

// String renders the bot id as bech32, e.g. "stroma1...".
func (id BotID) String() string {
	conv, err := bech32.ConvertBits(id.bytes, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(botIDPrefix, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Bytes returns a defensive copy of the underlying 20 bytes.
func (id BotID) Bytes() []byte {
	return append([]byte(nil), id.bytes...)
}

// DecodeBotID parses a bech32-encoded BotID string.
func DecodeBotID(s string) (BotID, error) {
	prefix, decoded, err := bech32.Decode(s)
	if err != nil {
		return BotID{}, fmt.Errorf("identity: invalid bech32 bot id: %w", err)
	}
	if prefix != botIDPrefix {
		return BotID{}, fmt.Errorf("identity: unexpected bot id prefix %q", prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return BotID{}, fmt.Errorf("identity: error converting bits: %w", err)
	}
	return NewBotID(conv)
}

// IdentityKey is the secp256k1 keypair a bot uses to sign chunk
// attestations and to derive its own BotID. It is separate from the
// keyring's symmetric subkeys.
type IdentityKey struct {
	private *ecdsa.PrivateKey
}

// GenerateIdentityKey creates a fresh secp256k1 identity key. cmd/stromabotd
// calls it only when no identity keystore exists yet and saves the result
// with SaveIdentityKeystore, so later restarts reuse the same key.
func GenerateIdentityKey() (*IdentityKey, error) {
	key, err := ecdsa.GenerateKey(ethcrypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &IdentityKey{private: key}, nil
}

// IdentityKeyFromBytes restores an identity key from its raw scalar bytes.
func IdentityKeyFromBytes(b []byte) (*IdentityKey, error) {
	key, err := ethcrypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &IdentityKey{private: key}, nil
}

// Bytes returns the raw private scalar.
func (k *IdentityKey) Bytes() []byte {
	return ethcrypto.FromECDSA(k.private)
}

// BotID derives this key's public BotID.
func (k *IdentityKey) BotID() BotID {
	addrBytes := ethcrypto.PubkeyToAddress(k.private.PublicKey).Bytes()
	id, err := NewBotID(addrBytes)
	if err != nil {
		// PubkeyToAddress always yields 20 bytes.
		panic(err)
	}
	return id
}

// Sign produces a secp256k1 signature (r||s||v, 65 bytes) over a 32-byte
// digest, used to sign chunk attestations.
func (k *IdentityKey) Sign(digest [32]byte) ([]byte, error) {
	return ethcrypto.Sign(digest[:], k.private)
}

// Verify checks a signature against a 32-byte digest and the expected
// signer BotID, recovering the public key and comparing its derived
// address.
func Verify(digest [32]byte, signature []byte, signer BotID) (bool, error) {
	pub, err := ethcrypto.SigToPub(digest[:], signature)
	if err != nil {
		return false, fmt.Errorf("identity: recover pubkey: %w", err)
	}
	addrBytes := ethcrypto.PubkeyToAddress(*pub).Bytes()
	recovered, err := NewBotID(addrBytes)
	if err != nil {
		return false, err
	}
	return recovered.String() == signer.String(), nil
}
