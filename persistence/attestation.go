package persistence

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	"stroma/identity"
)

// ChunkAttestation is a holder's signed proof that it has committed a
// specific chunk to storage (spec §4.7.3 "Distribution").
type ChunkAttestation struct {
	Sender    identity.BotID
	Receiver  identity.BotID
	ChunkHash [32]byte
	Timestamp int64
	Signature []byte
}

// attestationDigest builds the signed digest for an attestation.
func attestationDigest(sender, receiver identity.BotID, chunkHash [32]byte, timestamp int64) [32]byte {
	h := sha256.New()
	h.Write(sender.Bytes())
	h.Write(receiver.Bytes())
	h.Write(chunkHash[:])
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], uint64(timestamp))
	h.Write(ts[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Attest produces a signed attestation that receiver (the signer) has
// committed the given chunk on behalf of sender (the owner).
func Attest(holderKey *identity.IdentityKey, sender identity.BotID, chunkHash [32]byte, now time.Time) (ChunkAttestation, error) {
	receiver := holderKey.BotID()
	timestamp := now.Unix()
	digest := attestationDigest(sender, receiver, chunkHash, timestamp)
	sig, err := holderKey.Sign(digest)
	if err != nil {
		return ChunkAttestation{}, fmt.Errorf("persistence: sign attestation: %w", err)
	}
	return ChunkAttestation{
		Sender:    sender,
		Receiver:  receiver,
		ChunkHash: chunkHash,
		Timestamp: timestamp,
		Signature: sig,
	}, nil
}

// VerifyAttestation recovers the signer from the attestation's signature
// and checks it matches Receiver.
func VerifyAttestation(a ChunkAttestation) (bool, error) {
	digest := attestationDigest(a.Sender, a.Receiver, a.ChunkHash, a.Timestamp)
	return identity.Verify(digest, a.Signature, a.Receiver)
}

// ChunkHash computes the content hash of a chunk's ciphertext, used as the
// ChunkAttestation's ChunkHash field.
func ChunkHash(c Chunk) [32]byte {
	return sha256.Sum256(c.Data)
}
