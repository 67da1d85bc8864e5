// Package keyring derives the purpose-separated key hierarchy every other
// component in the trust mesh builds on, rooted in a single 24-word
// mnemonic held by the bot operator.
package keyring

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/hkdf"
)

// masterSalt is the HKDF extraction salt for the root key. The "-v1" suffix
// reserves rotation under a future v2 salt without touching this constant.
const masterSalt = "stroma-master-v1"

const (
	purposeIdentityMasking = "identity-masking"
	purposeVoterDedup      = "voter-dedup"
	purposeChunkEncryption = "chunk-encryption"
	purposeChunkSigning    = "chunk-signing"
	purposeStateEncryption = "state-encryption"
	purposeStateSigning    = "state-signing"
)

// ErrInvalidMnemonic is returned when the supplied mnemonic has unknown
// words or fails its BIP-39 checksum.
var ErrInvalidMnemonic = errors.New("keyring: invalid mnemonic")

// ErrDerivationFailed is returned when HKDF expansion fails. This should be
// unreachable for a fixed 32-byte output length.
var ErrDerivationFailed = errors.New("keyring: key derivation failed")

const subkeySize = 32

// Keyring holds the six 32-byte subkeys derived from the operator's
// mnemonic. It is effectively process-global in spirit but is expressed as
// a single owned value passed by reference, not ambient module state, so a
// new process can host a new keyring without teardown ambiguity.
type Keyring struct {
	epoch uint64

	identityMaskingKey [subkeySize]byte
	voterPepper        [subkeySize]byte
	chunkEncryptionKey [subkeySize]byte
	chunkSigningKey    [subkeySize]byte
	stateEncryptionKey [subkeySize]byte
	stateSigningKey    [subkeySize]byte

	closed bool
}

// FromMnemonic parses and validates a BIP-39 mnemonic (word list and
// checksum; any standard BIP-39 length is accepted, not only 24 words), stretches it
// to a 64-byte seed via the standard PBKDF2 form (2048 rounds, empty
// passphrase, HMAC-SHA512), and derives all six purpose-separated subkeys
// via HKDF-SHA256 under the versioned master salt.
func FromMnemonic(mnemonic string) (*Keyring, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("%w: unknown words or bad checksum", ErrInvalidMnemonic)
	}
	seed := bip39.NewSeed(mnemonic, "")
	defer zero(seed)

	kr := &Keyring{epoch: 1}
	keys := []struct {
		info string
		dst  []byte
	}{
		{purposeIdentityMasking, kr.identityMaskingKey[:]},
		{purposeVoterDedup, kr.voterPepper[:]},
		{purposeChunkEncryption, kr.chunkEncryptionKey[:]},
		{purposeChunkSigning, kr.chunkSigningKey[:]},
		{purposeStateEncryption, kr.stateEncryptionKey[:]},
		{purposeStateSigning, kr.stateSigningKey[:]},
	}
	for _, k := range keys {
		if err := expandPurpose(seed, k.info, k.dst); err != nil {
			return nil, err
		}
	}
	return kr, nil
}

// expandPurpose runs a fresh HKDF-SHA256(salt=masterSalt, seed) expansion
// for a single info string. Each subkey gets its own Reader so subkey
// derivation order never matters.
func expandPurpose(seed []byte, info string, dst []byte) error {
	reader := hkdf.New(sha256.New, seed, []byte(masterSalt), []byte(info))
	if _, err := io.ReadFull(reader, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrDerivationFailed, err)
	}
	return nil
}

// Epoch returns the key-derivation generation, 1 for the initial derivation.
// A future rotation increments this and switches to "-v2" domain strings.
func (k *Keyring) Epoch() uint64 {
	if k == nil {
		return 0
	}
	return k.epoch
}

// IdentityMaskingKey returns the key used to derive the HMAC key for
// identity.Mask. Returned by reference; callers must not retain it beyond
// the keyring's lifetime.
func (k *Keyring) IdentityMaskingKey() *[32]byte { return &k.identityMaskingKey }

// VoterPepper returns the key used for VoterTag HMAC deduplication.
func (k *Keyring) VoterPepper() *[32]byte { return &k.voterPepper }

// ChunkEncryptionKey returns the root key for per-chunk AES-256-GCM.
func (k *Keyring) ChunkEncryptionKey() *[32]byte { return &k.chunkEncryptionKey }

// ChunkSigningKey returns the root key for per-chunk HMAC signatures.
func (k *Keyring) ChunkSigningKey() *[32]byte { return &k.chunkSigningKey }

// StateEncryptionKey returns the root key reserved for whole-state snapshot
// encryption (carried forward from the original key hierarchy; unused by
// the chunked persistence path described in spec.md §4.7).
func (k *Keyring) StateEncryptionKey() *[32]byte { return &k.stateEncryptionKey }

// StateSigningKey returns the root key reserved for whole-state snapshot
// signing.
func (k *Keyring) StateSigningKey() *[32]byte { return &k.stateSigningKey }

// Close zeroes all subkey material. The runtime must call this exactly once
// on process shutdown (spec.md §5 Cancellation). Safe to call multiple
// times.
func (k *Keyring) Close() {
	if k == nil || k.closed {
		return
	}
	zero(k.identityMaskingKey[:])
	zero(k.voterPepper[:])
	zero(k.chunkEncryptionKey[:])
	zero(k.chunkSigningKey[:])
	zero(k.stateEncryptionKey[:])
	zero(k.stateSigningKey[:])
	k.closed = true
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
