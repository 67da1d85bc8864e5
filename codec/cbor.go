// Package codec provides the deterministic CBOR wire format shared by every
// replicated and persisted value in the trust mesh.
package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// SchemaVersion is the current schema discriminator, carried by encoded
// values in their schema_version field. The canonical encoding orders map
// keys by length and then bytewise, so schema_version is not necessarily
// the first field encoded or decoded.
const SchemaVersion uint32 = 1

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	opts := cbor.CanonicalEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: invalid canonical encoding options: %v", err))
	}
	encMode = mode

	dopts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}
	dmode, err := dopts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: invalid decoding options: %v", err))
	}
	decMode = dmode
}

// EncodeError wraps a failure to serialize a value. It is always recoverable:
// callers report the failure and move on.
type EncodeError struct {
	Target string
	Err    error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("codec: encode %s: %v", e.Target, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// DecodeError wraps a failure to deserialize a value.
type DecodeError struct {
	Target string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("codec: decode %s: %v", e.Target, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode serializes v into its canonical (deterministic) CBOR encoding. Two
// encodings of equal values are always byte-identical, which is required for
// content addressing (codec.ContentHash) and proof soundness.
func Encode(target string, v interface{}) ([]byte, error) {
	out, err := encMode.Marshal(v)
	if err != nil {
		return nil, &EncodeError{Target: target, Err: err}
	}
	return out, nil
}

// Decode deserializes data into v. The caller should report a corrupted
// stream or fall back to a cached value on error; Decode never panics.
func Decode(target string, data []byte, v interface{}) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return &DecodeError{Target: target, Err: err}
	}
	return nil
}
