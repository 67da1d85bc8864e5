package runtime

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// chunkContractAddr implements spec.md §6's storage-out addressing rule.
func chunkContractAddr(owner [32]byte, index uint32, holder [32]byte, epoch uint64) string {
	h := sha256.New()
	h.Write(owner[:])
	var idxBuf [4]byte
	binary.LittleEndian.PutUint32(idxBuf[:], index)
	h.Write(idxBuf[:])
	h.Write(holder[:])
	var epochBuf [8]byte
	binary.LittleEndian.PutUint64(epochBuf[:], epoch)
	h.Write(epochBuf[:])
	return "chunk-contract-" + hex.EncodeToString(h.Sum(nil))
}
