package codec

import (
	"bytes"
	"encoding/binary"

	"lukechampine.com/blake3"
)

// ContentHash returns the canonical content address for an already-encoded
// CBOR value. Used to derive contract_id.
func ContentHash(encoded []byte) [32]byte {
	return blake3.Sum256(encoded)
}

// WriteDelimited appends a length-prefixed byte string to buf: a 4-byte
// big-endian length followed by the bytes, a stable, unambiguous framing
// for variable-length fields that are hashed together.
func WriteDelimited(buf *bytes.Buffer, data []byte) {
	var length uint32
	if data != nil {
		length = uint32(len(data))
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], length)
	buf.Write(lenBuf[:])
	if length > 0 {
		buf.Write(data)
	}
}
