// Package persistence implements the reciprocal persistence engine:
// encrypt-chunk-distribute-recover with rendezvous-hashed holder
// selection, epochs, and challenge-response fairness verification.
package persistence

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"

	"stroma/identity"
)

// DefaultReplicas is the default number of replica holders per chunk.
const DefaultReplicas = 2

// ComputeRendezvousScore computes score = SHA256(owner || le(index) ||
// candidate || le(epoch)), the ranking key for holder selection.
func ComputeRendezvousScore(owner identity.BotID, chunkIndex uint32, candidate identity.BotID, epoch uint64) [32]byte {
	h := sha256.New()
	h.Write(owner.Bytes())
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], chunkIndex)
	h.Write(idx[:])
	h.Write(candidate.Bytes())
	var ep [8]byte
	binary.LittleEndian.PutUint64(ep[:], epoch)
	h.Write(ep[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ComputeChunkHolders selects the top numReplicas candidates (excluding the
// owner) by descending rendezvous score. Deterministic, uniform, stable,
// and unbiased per spec §4.7.2.
func ComputeChunkHolders(owner identity.BotID, chunkIndex uint32, registeredBots []identity.BotID, epoch uint64, numReplicas int) ([]identity.BotID, error) {
	type scored struct {
		bot   identity.BotID
		score [32]byte
	}

	var candidates []scored
	for _, bot := range registeredBots {
		if bot.String() == owner.String() {
			continue
		}
		candidates = append(candidates, scored{bot: bot, score: ComputeRendezvousScore(owner, chunkIndex, bot, epoch)})
	}
	if len(candidates) < numReplicas {
		return nil, fmt.Errorf("persistence: need %d replica holders, have %d excluding owner", numReplicas, len(candidates))
	}

	sort.Slice(candidates, func(i, j int) bool {
		cmp := compareBytes(candidates[i].score[:], candidates[j].score[:])
		if cmp != 0 {
			return cmp > 0
		}
		return candidates[i].bot.String() < candidates[j].bot.String()
	})

	out := make([]identity.BotID, numReplicas)
	for i := 0; i < numReplicas; i++ {
		out[i] = candidates[i].bot
	}
	return out, nil
}

// ComputeAllChunkHolders computes holders for every chunk index in
// [0, numChunks).
func ComputeAllChunkHolders(owner identity.BotID, numChunks uint32, registeredBots []identity.BotID, epoch uint64, numReplicas int) ([][]identity.BotID, error) {
	out := make([][]identity.BotID, numChunks)
	for i := uint32(0); i < numChunks; i++ {
		holders, err := ComputeChunkHolders(owner, i, registeredBots, epoch, numReplicas)
		if err != nil {
			return nil, err
		}
		out[i] = holders
	}
	return out, nil
}

// NextEpoch increments the epoch whenever the registered-bot count changes
// by more than 10% since the last epoch, forcing gradual redistribution.
func NextEpoch(currentEpoch uint64, previousBotCount, currentBotCount int) uint64 {
	if previousBotCount == 0 {
		return currentEpoch
	}
	delta := currentBotCount - previousBotCount
	if delta < 0 {
		delta = -delta
	}
	if float64(delta)/float64(previousBotCount) > 0.10 {
		return currentEpoch + 1
	}
	return currentEpoch
}

func compareBytes(a, b []byte) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
