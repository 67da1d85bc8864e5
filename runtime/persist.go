package runtime

import (
	"context"
	"fmt"
	"time"

	"stroma/codec"
	"stroma/identity"
	"stroma/observability/metrics"
	"stroma/persistence"
	"stroma/trust"
)

// persistJobName identifies the worker-pool job that drives the
// encrypt-chunk-distribute pipeline, reported to metrics via
// handleJobResult.
const persistJobName = "persist_state"

// recoverJobName identifies the cold-start recovery job.
const recoverJobName = "recover_state"

// persistResult is what a persist job reports back over pool.Results();
// handleJobResult only records metrics from it, never touches the
// contract.
type persistResult struct {
	chunksStored int
	holdersUsed  int
}

// recoverResult carries the recovered, decoded contract back to the event
// loop so only Run's own goroutine ever assigns r.Contract.
type recoverResult struct {
	contract *trust.Contract
}

// triggerPersist snapshots the contract synchronously (cheap CBOR encode,
// safe on the event-loop goroutine) and offloads the expensive
// encrypt-chunk-distribute pipeline to the worker pool (spec.md §5
// "Long-running computations"), per spec §2 data-flow (d): persistence
// runs opportunistically after state changes.
func (r *Replica) triggerPersist(ctx context.Context) {
	if r.pool == nil || r.Registry == nil || r.IdentityKey == nil {
		return
	}
	snapshot, err := r.Contract.Encode()
	if err != nil {
		return
	}
	owner := r.IdentityKey.BotID()

	r.pool.Submit(Job{
		Name: persistJobName,
		Run: func(jobCtx context.Context) (any, error) {
			return r.runPersist(jobCtx, owner, snapshot)
		},
	})
}

func (r *Replica) runPersist(ctx context.Context, owner identity.BotID, snapshot []byte) (persistResult, error) {
	chunks, err := persistence.EncryptAndChunk(r.Keyring, owner, snapshot)
	if err != nil {
		return persistResult{}, fmt.Errorf("runtime: encrypt and chunk: %w", err)
	}

	ownerID := persistence.OwnerIDFromBotID(owner)
	for _, chunk := range chunks {
		encoded, err := codec.Encode("persistence.Chunk", chunk)
		if err != nil {
			return persistResult{}, fmt.Errorf("runtime: encode chunk %d: %w", chunk.Index, err)
		}
		if err := r.Storage.StoreLocal(ctx, ownerID, chunk.Index, encoded); err != nil {
			return persistResult{}, fmt.Errorf("runtime: store local chunk %d: %w", chunk.Index, err)
		}
	}

	registeredBots, err := r.Registry.RegisteredBots(ctx)
	if err != nil {
		return persistResult{}, fmt.Errorf("runtime: list registered bots: %w", err)
	}

	result := persistResult{chunksStored: len(chunks)}

	others := 0
	for _, bot := range registeredBots {
		if bot.String() != owner.String() {
			others++
		}
	}
	if others >= persistence.DefaultReplicas {
		epoch, err := r.Registry.Epoch(ctx)
		if err != nil {
			return persistResult{}, fmt.Errorf("runtime: read epoch: %w", err)
		}
		holdersByIndex, err := persistence.ComputeAllChunkHolders(owner, uint32(len(chunks)), registeredBots, epoch, persistence.DefaultReplicas)
		if err != nil {
			return persistResult{}, fmt.Errorf("runtime: compute chunk holders: %w", err)
		}
		for _, chunk := range chunks {
			encoded, err := codec.Encode("persistence.Chunk", chunk)
			if err != nil {
				return persistResult{}, fmt.Errorf("runtime: encode chunk %d: %w", chunk.Index, err)
			}
			for _, holder := range holdersByIndex[chunk.Index] {
				holderID := persistence.OwnerIDFromBotID(holder)
				if _, err := r.Storage.StoreRemote(ctx, holderID, ownerID, chunk.Index, encoded); err != nil {
					metrics.Registry().RecordPersistenceFailure("store_remote", err.Error())
					continue
				}
				result.holdersUsed++
			}
		}
	}

	if err := r.Registry.RegisterSelf(ctx, owner, uint32(len(chunks))); err != nil {
		return persistResult{}, fmt.Errorf("runtime: register self: %w", err)
	}

	return result, nil
}

// recoverState reconstructs this bot's contract from its persisted chunks
// on cold start (spec.md §4.7 "Recovery"). Called once, before Run enters
// its select loop, and only when Contract is still empty. Returns a
// recoverResult through the worker pool so the assignment to Contract
// happens on the event loop's own goroutine, consistent with Contract's
// single-writer rule.
func (r *Replica) recoverState(ctx context.Context) {
	if r.pool == nil || r.Registry == nil || r.IdentityKey == nil {
		return
	}
	owner := r.IdentityKey.BotID()

	r.pool.Submit(Job{
		Name: recoverJobName,
		Run: func(jobCtx context.Context) (any, error) {
			return r.runRecover(jobCtx, owner)
		},
	})
}

func (r *Replica) runRecover(ctx context.Context, owner identity.BotID) (recoverResult, error) {
	numChunks, found, err := r.Registry.SelfChunkCount(ctx, owner)
	if err != nil {
		return recoverResult{}, fmt.Errorf("runtime: read self chunk count: %w", err)
	}
	if !found || numChunks == 0 {
		return recoverResult{}, nil
	}

	registeredBots, err := r.Registry.RegisteredBots(ctx)
	if err != nil {
		return recoverResult{}, fmt.Errorf("runtime: list registered bots: %w", err)
	}
	others := 0
	for _, bot := range registeredBots {
		if bot.String() != owner.String() {
			others++
		}
	}
	if others < persistence.DefaultReplicas {
		return recoverResult{}, fmt.Errorf("runtime: not enough registered bots to recompute chunk holders")
	}
	epoch, err := r.Registry.Epoch(ctx)
	if err != nil {
		return recoverResult{}, fmt.Errorf("runtime: read epoch: %w", err)
	}
	holdersByIndex, err := persistence.ComputeAllChunkHolders(owner, numChunks, registeredBots, epoch, persistence.DefaultReplicas)
	if err != nil {
		return recoverResult{}, fmt.Errorf("runtime: compute chunk holders: %w", err)
	}

	fetcher := &storageChunkFetcher{ctx: ctx, storage: r.Storage}
	plaintext, _, err := persistence.Recover(r.Keyring, fetcher, owner, numChunks, holdersByIndex, time.Now())
	if err != nil {
		return recoverResult{}, fmt.Errorf("runtime: recover: %w", err)
	}

	contract, err := trust.DecodeContract(plaintext)
	if err != nil {
		return recoverResult{}, fmt.Errorf("runtime: decode recovered contract: %w", err)
	}
	return recoverResult{contract: contract}, nil
}

// storageChunkFetcher adapts the consumed StorageClient interface to
// persistence.ChunkFetcher, reading only from the remote holder (spec.md
// §4.7's recovery path never reads from the local cache, since a cold start
// by definition has no local cache to read).
type storageChunkFetcher struct {
	ctx     context.Context
	storage StorageClient
}

func (f *storageChunkFetcher) FetchChunk(holder identity.BotID, owner persistence.OwnerID, index uint32) (persistence.Chunk, error) {
	holderID := persistence.OwnerIDFromBotID(holder)
	raw, err := f.storage.RetrieveRemote(f.ctx, holderID, owner, index)
	if err != nil {
		return persistence.Chunk{}, err
	}
	var chunk persistence.Chunk
	if err := codec.Decode("persistence.Chunk", raw, &chunk); err != nil {
		return persistence.Chunk{}, err
	}
	return chunk, nil
}
