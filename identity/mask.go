// Package identity turns cleartext member identifiers into the opaque
// MemberHash form used everywhere else in the trust mesh, and renders the
// bot's own network identifier for federation display.
package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// maskInfo is the HKDF info string for deriving the per-call HMAC key from
// the keyring's identity-masking subkey.
const maskInfo = "hmac-sha256-key"

// maskSalt binds the derived HMAC key to this masking context, separate
// from any other consumer of the identity-masking subkey.
const maskSalt = "stroma-identity-masking-v1"

// MemberHashSize is the fixed width of a MemberHash.
const MemberHashSize = 32

// MemberHash is a 32-byte opaque identifier. It never carries cleartext and
// is safe to log, persist, and transmit.
type MemberHash [MemberHashSize]byte

// IsZero reports whether h is the all-zeros hash, which is never a valid
// member identifier.
func (h MemberHash) IsZero() bool {
	return h == MemberHash{}
}

// Mask derives an HMAC key from maskingKey via HKDF-SHA256 and computes
// MemberHash = HMAC-SHA256(derivedKey, cleartext). The caller is expected to
// zeroize cleartext after this call returns; Mask itself never retains it.
func Mask(maskingKey *[32]byte, cleartext string) (MemberHash, error) {
	derived, err := deriveHMACKey(maskingKey)
	if err != nil {
		return MemberHash{}, err
	}
	defer zero(derived[:])

	mac := hmac.New(sha256.New, derived[:])
	mac.Write([]byte(cleartext))

	var out MemberHash
	mac.Sum(out[:0])
	return out, nil
}

func deriveHMACKey(maskingKey *[32]byte) (*[32]byte, error) {
	reader := hkdf.New(sha256.New, maskingKey[:], []byte(maskSalt), []byte(maskInfo))
	var derived [32]byte
	if _, err := io.ReadFull(reader, derived[:]); err != nil {
		return nil, err
	}
	return &derived, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
