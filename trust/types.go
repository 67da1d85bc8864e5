// Package trust implements the replicated CRDT trust state: membership,
// vouches, flags, group config, and the append-only audit log, along with
// the merge and validation operations every replica runs independently.
package trust

import (
	"sort"

	"stroma/identity"
)

// Schema is the current schema_version for every encoded TrustContract.
const Schema uint32 = 1

// bootstrapThreshold is the member count below which AddMember's vouch
// requirement is waived (spec §4.4 "bootstrap exception").
const bootstrapThreshold = 3

// GroupConfig carries the governance parameters mutated only by successful
// proposals.
type GroupConfig struct {
	SchemaVersion          uint32                   `cbor:"schema_version"`
	MinVouches             uint32                   `cbor:"min_vouches"`
	MaxFlags               uint32                   `cbor:"max_flags"`
	OpenMembership         bool                     `cbor:"open_membership"`
	Operators              map[identity.MemberHash]struct{} `cbor:"operators"`
	DefaultPollTimeoutSecs uint64                   `cbor:"default_poll_timeout_secs"`
	ConfigChangeThreshold  float64                  `cbor:"config_change_threshold"`
	MinQuorum              float64                  `cbor:"min_quorum"`
	HealthCheckSecs        uint64                   `cbor:"health_check_secs"`
}

// DefaultGroupConfig returns sane defaults for a freshly bootstrapped group.
func DefaultGroupConfig() GroupConfig {
	return GroupConfig{
		SchemaVersion:          Schema,
		MinVouches:             2,
		MaxFlags:               3,
		OpenMembership:         false,
		Operators:              map[identity.MemberHash]struct{}{},
		DefaultPollTimeoutSecs: 24 * 3600,
		ConfigChangeThreshold:  0.66,
		MinQuorum:              0.33,
		HealthCheckSecs:        300,
	}
}

// ActionType enumerates the audit log's action categories.
type ActionType int

const (
	ActionConfig ActionType = iota
	ActionRestart
	ActionManual
	ActionBootstrap
	ActionOther
)

// String renders the action type, using Label for ActionOther.
func (a ActionType) String(label string) string {
	switch a {
	case ActionConfig:
		return "config"
	case ActionRestart:
		return "restart"
	case ActionManual:
		return "manual"
	case ActionBootstrap:
		return "bootstrap"
	case ActionOther:
		if label != "" {
			return label
		}
		return "other"
	default:
		return "unknown"
	}
}

// AuditEntry is one immutable, append-only record of an operator-visible
// action. Details must never contain secret material or cleartext
// identifiers.
type AuditEntry struct {
	Timestamp  int64             `cbor:"timestamp"`
	Actor      identity.MemberHash `cbor:"actor"`
	ActionType ActionType        `cbor:"action_type"`
	ActionLabel string           `cbor:"action_label"`
	Details    string            `cbor:"details"`
}

// PollProposalType distinguishes config mutations from app-level changes.
type PollProposalType int

const (
	ProposalConfigChange PollProposalType = iota
	ProposalAppChange
)

// PollProposal is open governance state tracked inside the contract.
type PollProposal struct {
	ProposalType PollProposalType `cbor:"proposal_type"`
	Key          string           `cbor:"key"`
	Value        string           `cbor:"value"`
	PollID       string           `cbor:"poll_id"`
	TimeoutSecs  uint64           `cbor:"timeout_secs"`
	Threshold    float64          `cbor:"threshold"`
	Quorum       float64          `cbor:"quorum"`
	OpenedAt     int64            `cbor:"opened_at"`
}

// memberSet is a set of MemberHash. sorted() yields its members in
// ascending order and the canonical encoding sorts map keys, so ordered
// iteration and serialization are deterministic.
type memberSet map[identity.MemberHash]struct{}

func (s memberSet) has(h identity.MemberHash) bool {
	_, ok := s[h]
	return ok
}

func (s memberSet) sorted() []identity.MemberHash {
	out := make([]identity.MemberHash, 0, len(s))
	for h := range s {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		return lessHash(out[i], out[j])
	})
	return out
}

func lessHash(a, b identity.MemberHash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// adjacency is a directed edge map: source hash -> set of target hashes.
type adjacency map[identity.MemberHash]memberSet

func (a adjacency) add(from, to identity.MemberHash) {
	set, ok := a[from]
	if !ok {
		set = memberSet{}
		a[from] = set
	}
	set[to] = struct{}{}
}

func (a adjacency) remove(from, to identity.MemberHash) {
	set, ok := a[from]
	if !ok {
		return
	}
	delete(set, to)
	if len(set) == 0 {
		delete(a, from)
	}
}

func (a adjacency) removeAllFrom(from identity.MemberHash) {
	delete(a, from)
}

func (a adjacency) removeAllTo(to identity.MemberHash) {
	for from, set := range a {
		delete(set, to)
		if len(set) == 0 {
			delete(a, from)
		}
	}
}

func (a adjacency) get(from identity.MemberHash) []identity.MemberHash {
	set, ok := a[from]
	if !ok {
		return nil
	}
	return set.sorted()
}
