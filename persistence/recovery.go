package persistence

import (
	"errors"
	"fmt"
	"time"

	"stroma/identity"
	"stroma/keyring"
)

// ErrChunkFetchFailed is returned when every holder for a chunk is
// unreachable.
var ErrChunkFetchFailed = errors.New("persistence: chunk fetch failed on all holders")

// ErrSignatureVerificationFailed is returned when a fetched chunk's HMAC
// signature does not verify.
var ErrSignatureVerificationFailed = errors.New("persistence: chunk signature verification failed")

// ErrDecryptionFailed is returned when the reassembled ciphertext does not
// decrypt under the reconstructed key.
var ErrDecryptionFailed = errors.New("persistence: decryption failed")

// MissingChunksError reports a count mismatch between the expected and
// actually-recovered chunk set.
type MissingChunksError struct {
	Expected int
	Actual   int
}

func (e *MissingChunksError) Error() string {
	return fmt.Sprintf("persistence: missing chunks: expected %d, got %d", e.Expected, e.Actual)
}

// ChunkFetcher retrieves a single remote chunk from a specific holder.
type ChunkFetcher interface {
	FetchChunk(holder identity.BotID, owner OwnerID, index uint32) (Chunk, error)
}

// RecoveryStats summarizes a recovery pass for operator visibility.
type RecoveryStats struct {
	ChunksRecovered     int
	FailedFetchAttempts int
	ChunksWithFallback  int
	RecoveryTimeMS      int64
}

// Recover fetches every chunk index in [0, numChunks) for owner, trying the
// primary holder first and falling back to the secondary on failure,
// verifies each signature, reassembles in index order, and decrypts.
func Recover(
	kr *keyring.Keyring,
	fetcher ChunkFetcher,
	owner identity.BotID,
	numChunks uint32,
	holdersByIndex [][]identity.BotID,
	started time.Time,
) ([]byte, RecoveryStats, error) {
	ownerID := OwnerIDFromBotID(owner)
	stats := RecoveryStats{}

	chunks := make([]Chunk, 0, numChunks)
	for index := uint32(0); index < numChunks; index++ {
		holders := holdersByIndex[index]
		if len(holders) == 0 {
			return nil, stats, fmt.Errorf("%w: no holders known for chunk %d", ErrChunkFetchFailed, index)
		}

		var chunk Chunk
		var err error
		fetched := false
		for i, holder := range holders {
			chunk, err = fetcher.FetchChunk(holder, ownerID, index)
			if err == nil {
				if i > 0 {
					stats.ChunksWithFallback++
				}
				fetched = true
				break
			}
			stats.FailedFetchAttempts++
		}
		if !fetched {
			return nil, stats, fmt.Errorf("%w: chunk %d", ErrChunkFetchFailed, index)
		}

		ok, verr := VerifyChunkSignature(kr, chunk)
		if verr != nil {
			return nil, stats, verr
		}
		if !ok {
			return nil, stats, fmt.Errorf("%w: chunk %d", ErrSignatureVerificationFailed, index)
		}

		chunks = append(chunks, chunk)
		stats.ChunksRecovered++
	}

	if len(chunks) != int(numChunks) {
		return nil, stats, &MissingChunksError{Expected: int(numChunks), Actual: len(chunks)}
	}

	plaintext, err := Reassemble(kr, chunks)
	if err != nil {
		return nil, stats, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	stats.RecoveryTimeMS = time.Since(started).Milliseconds()
	return plaintext, stats, nil
}
