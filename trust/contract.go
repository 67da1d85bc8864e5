package trust

import (
	"fmt"

	"stroma/codec"
	"stroma/identity"
)

// InvalidReason is a canonical, operator-facing explanation attached to a
// rejected delta or an invalid post-merge state.
type InvalidReason string

const (
	ReasonNone                   InvalidReason = ""
	ReasonInsufficientVouches    InvalidReason = "insufficient vouches"
	ReasonAlreadyEjected         InvalidReason = "member is ejected"
	ReasonAlreadyMember          InvalidReason = "member already present"
	ReasonUnknownMember          InvalidReason = "endpoint not a member"
	ReasonMembersEjectedOverlap  InvalidReason = "members and ejected overlap"
	ReasonAdjacencyUnknownMember InvalidReason = "adjacency references unknown member"
	ReasonZeroHash               InvalidReason = "member hash is all-zero"
	ReasonBadSchema              InvalidReason = "schema_version must be > 0"
	ReasonBadThreshold           InvalidReason = "config threshold out of [0,1]"
	ReasonTombstoneReentry       InvalidReason = "tombstoned member cannot re-enter"
)

// ValidationResult is the outcome of validate_state / validate_delta: either
// Valid, or Invalid carrying the canonical reason.
type ValidationResult struct {
	Reason InvalidReason
}

// Valid reports whether the result represents a valid state or delta.
func (r ValidationResult) Valid() bool { return r.Reason == ReasonNone }

func valid() ValidationResult                       { return ValidationResult{} }
func invalid(reason InvalidReason) ValidationResult { return ValidationResult{Reason: reason} }

// reasonInsufficientVouches builds the count-bearing rejection reason for a
// member whose active-voucher count falls short of MinVouches, mirroring
// the original contract's "Member {} has only {} valid vouches" message so
// the operator sees the actual shortfall rather than a static label.
func reasonInsufficientVouches(h identity.MemberHash, have int) InvalidReason {
	return InvalidReason(fmt.Sprintf("%s: member %x has only %d valid vouches", ReasonInsufficientVouches, h, have))
}

// Error implements error so a ValidationResult can be returned/wrapped
// directly by callers that prefer the error idiom.
func (r ValidationResult) Error() string {
	if r.Valid() {
		return ""
	}
	return string(r.Reason)
}

// FederationContract is one externally observable social anchor emitted by
// this bot, per spec §4.6's social-anchor mechanism.
type FederationContract struct {
	AnchorHash [32]byte `cbor:"anchor_hash"`
	BucketSize int      `cbor:"bucket_size"`
	CreatedAt  int64    `cbor:"created_at"`
}

// Contract is the authoritative replicated trust state for one group. All
// mutation goes through ApplyDelta; Merge combines state received from
// another replica.
type Contract struct {
	SchemaVersion         uint32                   `cbor:"schema_version"`
	Members               memberSet                `cbor:"members"`
	Ejected               memberSet                `cbor:"ejected"`
	Vouches               adjacency                `cbor:"vouches"`
	Flags                 adjacency                `cbor:"flags"`
	Config                GroupConfig              `cbor:"config"`
	ConfigTimestamp       uint64                   `cbor:"config_timestamp"`
	FederationContracts   []FederationContract     `cbor:"federation_contracts"`
	Gap11AnnouncementSent bool                     `cbor:"gap11_announcement_sent"`
	ActiveProposals       map[string]PollProposal  `cbor:"active_proposals"`
	AuditLog              []AuditEntry             `cbor:"audit_log"`
}

// New constructs an empty contract with the given initial config.
func New(cfg GroupConfig) *Contract {
	return &Contract{
		SchemaVersion:       Schema,
		Members:             memberSet{},
		Ejected:             memberSet{},
		Vouches:             adjacency{},
		Flags:               adjacency{},
		Config:              cfg,
		ConfigTimestamp:     0,
		FederationContracts: nil,
		ActiveProposals:     map[string]PollProposal{},
		AuditLog:            nil,
	}
}

// MembersSorted returns the current member set sorted ascending.
func (c *Contract) MembersSorted() []identity.MemberHash {
	return c.Members.sorted()
}

// IsMember reports whether h is an active member.
func (c *Contract) IsMember(h identity.MemberHash) bool {
	return c.Members.has(h)
}

// IsEjected reports whether h is tombstoned.
func (c *Contract) IsEjected(h identity.MemberHash) bool {
	return c.Ejected.has(h)
}

// VouchesFor returns the sorted set of members who vouch for h.
func (c *Contract) VouchesFor(h identity.MemberHash) []identity.MemberHash {
	var out []identity.MemberHash
	for voucher, vouchees := range c.Vouches {
		if vouchees.has(h) {
			out = append(out, voucher)
		}
	}
	sortHashes(out)
	return out
}

// FlagsFor returns the sorted set of members who flagged h.
func (c *Contract) FlagsFor(h identity.MemberHash) []identity.MemberHash {
	var out []identity.MemberHash
	for flagger, flagged := range c.Flags {
		if flagged.has(h) {
			out = append(out, flagger)
		}
	}
	sortHashes(out)
	return out
}

// VouchesFrom returns who h vouches for.
func (c *Contract) VouchesFrom(h identity.MemberHash) []identity.MemberHash {
	return c.Vouches.get(h)
}

// FlagsFrom returns who h has flagged.
func (c *Contract) FlagsFrom(h identity.MemberHash) []identity.MemberHash {
	return c.Flags.get(h)
}

func sortHashes(hashes []identity.MemberHash) {
	for i := 1; i < len(hashes); i++ {
		for j := i; j > 0 && lessHash(hashes[j], hashes[j-1]); j-- {
			hashes[j], hashes[j-1] = hashes[j-1], hashes[j]
		}
	}
}

func (c *Contract) appendAudit(entry AuditEntry) {
	c.AuditLog = append(c.AuditLog, entry)
}

// RecordShutdown appends the process-shutdown audit entry (spec.md §5
// "Cancellation"): open proposals are being terminated as a side effect of
// the bot process stopping, not of any member action.
func (c *Contract) RecordShutdown(now int64) {
	c.appendAudit(AuditEntry{
		Timestamp:   now,
		ActionType:  ActionOther,
		ActionLabel: "bot_shutdown",
		Details:     "open proposals terminated: bot shutdown",
	})
}

// activeVoucherCount returns the number of h's vouchers that are
// themselves active members (used by both delta and state validation).
func (c *Contract) activeVoucherCount(h identity.MemberHash) int {
	count := 0
	for _, voucher := range c.VouchesFor(h) {
		if c.Members.has(voucher) {
			count++
		}
	}
	return count
}

// Encode serializes the contract to its canonical CBOR wire form, the
// payload carried by ContractState.Bytes over the state-overlay interface.
func (c *Contract) Encode() ([]byte, error) {
	return codec.Encode("trust.Contract", c)
}

// DecodeContract deserializes a contract snapshot received from the
// state-overlay interface.
func DecodeContract(data []byte) (*Contract, error) {
	var c Contract
	if err := codec.Decode("trust.Contract", data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Contract) String() string {
	return fmt.Sprintf("Contract{members=%d ejected=%d proposals=%d}",
		len(c.Members), len(c.Ejected), len(c.ActiveProposals))
}
