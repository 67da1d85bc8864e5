package codec_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"stroma/codec"
)

type fixture struct {
	B uint32
	A string
	C []byte
}

// fixtureReordered declares fixture's fields in a different order.
type fixtureReordered struct {
	A string
	C []byte
	B uint32
}

func TestEncodeIsDeterministicAcrossFieldOrder(t *testing.T) {
	v := fixture{A: "alice", B: 7, C: []byte{1, 2, 3}}
	first, err := codec.Encode("fixture", v)
	require.NoError(t, err)
	second, err := codec.Encode("fixture", v)
	require.NoError(t, err)
	require.Equal(t, first, second)

	reordered, err := codec.Encode("fixture", fixtureReordered{A: "alice", B: 7, C: []byte{1, 2, 3}})
	require.NoError(t, err)
	require.Equal(t, first, reordered)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	v := fixture{A: "bob", B: 42, C: []byte("chunk")}
	encoded, err := codec.Encode("fixture", v)
	require.NoError(t, err)

	var decoded fixture
	require.NoError(t, codec.Decode("fixture", encoded, &decoded))
	require.Equal(t, v, decoded)
}

func TestDecodeRejectsDuplicateMapKeys(t *testing.T) {
	// 0xA2 01 01 01 02 : map(2){1:1, 1:2} — duplicate key 1, forbidden under
	// the decoder's DupMapKeyEnforcedAPF option.
	malformed := []byte{0xA2, 0x01, 0x01, 0x01, 0x02}
	var out map[int]int
	err := codec.Decode("dup-map", malformed, &out)
	require.Error(t, err)
}

func TestDecodeRejectsIndefiniteLength(t *testing.T) {
	// 0x5F is the start of an indefinite-length byte string, forbidden under
	// IndefLengthForbidden.
	malformed := []byte{0x5F, 0x41, 0xFF, 0xFF}
	var out []byte
	err := codec.Decode("indef-length", malformed, &out)
	require.Error(t, err)
}

func TestContentHashIsDeterministicAndSensitiveToInput(t *testing.T) {
	a := codec.ContentHash([]byte("alpha"))
	b := codec.ContentHash([]byte("alpha"))
	require.Equal(t, a, b)

	c := codec.ContentHash([]byte("beta"))
	require.NotEqual(t, a, c)
}

func TestWriteDelimitedFramesLength(t *testing.T) {
	var buf bytes.Buffer
	codec.WriteDelimited(&buf, []byte("abc"))
	codec.WriteDelimited(&buf, nil)

	// "abc" -> 4-byte big-endian length (3) + 3 bytes; nil -> 4-byte length (0).
	require.Equal(t, []byte{0, 0, 0, 3, 'a', 'b', 'c', 0, 0, 0, 0}, buf.Bytes())
}
