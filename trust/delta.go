package trust

import (
	"bytes"

	"stroma/codec"
	"stroma/identity"
)

// DeltaKind tags the variant carried by a TrustDelta.
type DeltaKind int

const (
	DeltaAddMember DeltaKind = iota
	DeltaRemoveMember
	DeltaAddVouch
	DeltaRemoveVouch
	DeltaAddFlag
	DeltaRemoveFlag
)

// TrustDelta is the tagged-union mutation applied to a TrustContract. Only
// the fields relevant to Kind are populated; Subject/To follow the natural
// "subject first" reading per variant:
//   - AddMember/RemoveMember: Subject is the member hash, To is unused.
//   - AddVouch/RemoveVouch/AddFlag/RemoveFlag: Subject is the source
//     (voucher/flagger), To is the target (vouchee/flagged).
type TrustDelta struct {
	SchemaVersion uint32              `cbor:"schema_version"`
	Kind          DeltaKind           `cbor:"kind"`
	Subject       identity.MemberHash `cbor:"subject"`
	To            identity.MemberHash `cbor:"to"`
}

// Encode produces the canonical CBOR encoding used both for wire transport
// and for the lexicographic tie-break comparison in ResolveDeltaConflict.
func (d TrustDelta) Encode() ([]byte, error) {
	return codec.Encode("trust.TrustDelta", d)
}

// DecodeDelta parses a canonical CBOR-encoded delta.
func DecodeDelta(data []byte) (TrustDelta, error) {
	var d TrustDelta
	if err := codec.Decode("trust.TrustDelta", data, &d); err != nil {
		return TrustDelta{}, err
	}
	return d, nil
}

// compareEncoded returns -1, 0, or 1 per bytes.Compare, used for the
// tie-break rule on conflicting deltas sharing a config_timestamp.
func compareEncoded(a, b []byte) int {
	return bytes.Compare(a, b)
}
