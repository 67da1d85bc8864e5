// Package governance implements the proposal lifecycle, single-vote-per-
// member poll aggregation with HMAC deduplication, deterministic outcome
// evaluation, and the progressive per-actor rate limiter.
package governance

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"stroma/identity"
	"stroma/trust"
)

// ErrInvalidTimeout is returned when a /propose command's --timeout value
// is outside [1, 168] hours.
var ErrInvalidTimeout = fmt.Errorf("governance: timeout must be between 1 and 168 hours")

// OpenProposal allocates a poll_id, builds the replicated PollProposal
// record, and returns both it and a freshly initialized vote aggregate
// sized to the current member count. The runtime is responsible for
// inserting the proposal into the contract's ActiveProposals and emitting
// the outbound group poll via the chat-out interface.
func OpenProposal(
	kind trust.PollProposalType,
	key, value string,
	timeout time.Duration,
	threshold, quorum float64,
	totalMembers int,
	now time.Time,
) (trust.PollProposal, *PollAggregate) {
	proposal := trust.PollProposal{
		ProposalType: kind,
		Key:          key,
		Value:        value,
		PollID:       uuid.NewString(),
		TimeoutSecs:  uint64(timeout.Seconds()),
		Threshold:    threshold,
		Quorum:       quorum,
		OpenedAt:     now.Unix(),
	}
	aggregate := &PollAggregate{
		OptionCounts:       make([]uint32, 2), // [approvals, rejections]
		Voters:             map[VoterTag]int{},
		TotalMembersAtOpen: uint32(totalMembers),
	}
	return proposal, aggregate
}

// Deadline returns the wall-clock time a proposal's aggregation closes.
func Deadline(p trust.PollProposal) time.Time {
	return time.Unix(p.OpenedAt, 0).Add(time.Duration(p.TimeoutSecs) * time.Second)
}

// ExecuteConfigChange applies a passed config-change proposal atomically:
// it is the caller's responsibility to have already constructed and
// validated the corresponding delta; ExecuteConfigChange only stamps the
// config timestamp and appends the audit entry (spec §4.8 "Execution").
func ExecuteConfigChange(c *trust.Contract, actor identity.MemberHash, key, oldValue, newValue string, now time.Time) {
	c.ConfigTimestamp = uint64(now.Unix())
	c.AuditLog = append(c.AuditLog, trust.AuditEntry{
		Timestamp:   now.Unix(),
		Actor:       actor,
		ActionType:  trust.ActionConfig,
		ActionLabel: "config_change",
		Details:     fmt.Sprintf("%s: %s -> %s", key, oldValue, newValue),
	})
}
