package main

import (
	"context"
	"fmt"
	"sync"

	"stroma/codec"
	"stroma/persistence"
	"stroma/persistence/localstore"
	"stroma/runtime"
)

// decodeChunk/encodeChunk translate between the storage-out interface's
// opaque []byte blob (the chunk's canonical CBOR encoding, per
// runtime/persist.go) and the persistence.Chunk struct localstore.Store
// persists.
func decodeChunk(owner [32]byte, index uint32, blob []byte) (persistence.Chunk, error) {
	var chunk persistence.Chunk
	if err := codec.Decode("persistence.Chunk", blob, &chunk); err != nil {
		return persistence.Chunk{}, err
	}
	if chunk.Owner != persistence.OwnerID(owner) || chunk.Index != index {
		return persistence.Chunk{}, fmt.Errorf("cmd/stromabotd: chunk owner/index mismatch")
	}
	return chunk, nil
}

func encodeChunk(chunk persistence.Chunk) ([]byte, error) {
	return codec.Encode("persistence.Chunk", chunk)
}

// diskStorage implements runtime.StorageClient: local chunk storage goes
// through a real LevelDB-backed localstore.Store (SPEC_FULL §2 L2.5), while
// remote holder storage is an in-memory map simulating the other bots'
// stores for a single-box deployment, since this repo ships no network
// transport for the storage-out interface.
type diskStorage struct {
	local *localstore.Store

	mu     sync.Mutex
	remote map[string][]byte
}

func newDiskStorage(path string) (*diskStorage, error) {
	store, err := localstore.Open(path)
	if err != nil {
		return nil, err
	}
	return &diskStorage{local: store, remote: map[string][]byte{}}, nil
}

func (s *diskStorage) StoreLocal(ctx context.Context, owner [32]byte, index uint32, chunk []byte) error {
	decoded, err := decodeChunk(owner, index, chunk)
	if err != nil {
		return err
	}
	return s.local.StoreChunk(decoded)
}

func (s *diskStorage) RetrieveLocal(ctx context.Context, owner [32]byte, index uint32) ([]byte, error) {
	chunk, err := s.local.RetrieveChunk(owner, index)
	if err != nil {
		return nil, err
	}
	return encodeChunk(chunk)
}

func (s *diskStorage) DeleteLocal(ctx context.Context, owner [32]byte, index uint32) error {
	return s.local.DeleteChunk(owner, index)
}

func (s *diskStorage) remoteKey(holder, owner [32]byte, index uint32) string {
	return runtime.ChunkContractAddr(owner, index, holder, 0)
}

func (s *diskStorage) StoreRemote(ctx context.Context, holder, owner [32]byte, index uint32, chunk []byte) (runtime.Attestation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remote[s.remoteKey(holder, owner, index)] = append([]byte(nil), chunk...)
	return runtime.Attestation{ChunkContractAddr: runtime.ChunkContractAddr(owner, index, holder, 0)}, nil
}

func (s *diskStorage) RetrieveRemote(ctx context.Context, holder, owner [32]byte, index uint32) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote[s.remoteKey(holder, owner, index)], nil
}

func (s *diskStorage) DeleteRemote(ctx context.Context, holder, owner [32]byte, index uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.remote, s.remoteKey(holder, owner, index))
	return nil
}

func (s *diskStorage) Close() error {
	return s.local.Close()
}
