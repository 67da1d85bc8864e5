// Package localstore is a reference implementation of the storage-out
// interface's store_local/retrieve_local operations, keyed by owner and
// chunk index.
package localstore

import (
	"encoding/binary"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"

	"stroma/persistence"
)

// Store is a LevelDB-backed chunk store for a single bot's own chunks.
type Store struct {
	db *leveldb.DB
}

// Open creates or opens a LevelDB database at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("localstore: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// StoreChunk persists a chunk under its (owner, index) key.
func (s *Store) StoreChunk(c persistence.Chunk) error {
	value, err := encodeChunk(c)
	if err != nil {
		return err
	}
	return s.db.Put(chunkKey(c.Owner, c.Index), value, nil)
}

// RetrieveChunk fetches the chunk previously stored for (owner, index).
func (s *Store) RetrieveChunk(owner persistence.OwnerID, index uint32) (persistence.Chunk, error) {
	value, err := s.db.Get(chunkKey(owner, index), nil)
	if err != nil {
		return persistence.Chunk{}, fmt.Errorf("localstore: get chunk %d: %w", index, err)
	}
	return decodeChunk(value)
}

// DeleteChunk removes a chunk. Per spec §6 this defaults to a no-op for
// holders that choose not to support eviction; the local owner store does
// support it since it is the only writer of its own chunks.
func (s *Store) DeleteChunk(owner persistence.OwnerID, index uint32) error {
	return s.db.Delete(chunkKey(owner, index), nil)
}

// Close releases the underlying LevelDB handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func chunkKey(owner persistence.OwnerID, index uint32) []byte {
	key := make([]byte, 32+4)
	copy(key, owner[:])
	binary.BigEndian.PutUint32(key[32:], index)
	return key
}

// encodeChunk/decodeChunk use a flat fixed-layout encoding (not the shared
// CBOR codec) since chunk values are never cross-replica wire payloads —
// they are this bot's own local cache, read back only by itself.
func encodeChunk(c persistence.Chunk) ([]byte, error) {
	buf := make([]byte, 0, 32+4+4+len(c.Data)+32+12)
	buf = append(buf, c.Owner[:]...)
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], c.Index)
	buf = append(buf, idx[:]...)
	var dlen [4]byte
	binary.BigEndian.PutUint32(dlen[:], uint32(len(c.Data)))
	buf = append(buf, dlen[:]...)
	buf = append(buf, c.Data...)
	buf = append(buf, c.Signature[:]...)
	buf = append(buf, c.Nonce[:]...)
	return buf, nil
}

func decodeChunk(buf []byte) (persistence.Chunk, error) {
	if len(buf) < 32+4+4 {
		return persistence.Chunk{}, fmt.Errorf("localstore: truncated chunk record")
	}
	var c persistence.Chunk
	copy(c.Owner[:], buf[:32])
	c.Index = binary.BigEndian.Uint32(buf[32:36])
	dataLen := binary.BigEndian.Uint32(buf[36:40])
	offset := 40
	if len(buf) < offset+int(dataLen)+32+12 {
		return persistence.Chunk{}, fmt.Errorf("localstore: truncated chunk payload")
	}
	c.Data = append([]byte(nil), buf[offset:offset+int(dataLen)]...)
	offset += int(dataLen)
	copy(c.Signature[:], buf[offset:offset+32])
	offset += 32
	copy(c.Nonce[:], buf[offset:offset+12])
	return c, nil
}
