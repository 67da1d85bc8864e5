package governance

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
)

// ErrInvalidOption is returned when CastVote is given an out-of-range
// option index.
var ErrInvalidOption = errors.New("governance: vote option out of range")

// VoterTag is the HMAC-deduplicated identity of a voter within one poll.
// At no point is the cleartext voter identity persisted — only this tag
// (spec §4.8 GAP-02 invariant).
type VoterTag [32]byte

// ComputeVoterTag derives VoterTag = HMAC-SHA256(voterPepper, pollID ||
// cleartextVoterID). The caller is expected to discard cleartextVoterID
// immediately after this call.
func ComputeVoterTag(voterPepper *[32]byte, pollID, cleartextVoterID string) VoterTag {
	mac := hmac.New(sha256.New, voterPepper[:])
	mac.Write([]byte(pollID))
	mac.Write([]byte(cleartextVoterID))
	var out VoterTag
	mac.Sum(out[:0])
	return out
}

// PollAggregate is the in-memory (non-replicated) vote tally for one open
// proposal. Option 0 is approval, option 1 is rejection.
type PollAggregate struct {
	OptionCounts       []uint32
	Voters             map[VoterTag]int
	TotalMembersAtOpen uint32
}

// CastVote records a vote for option, deduplicating by VoterTag. If the
// tag was already present, the prior option's count is decremented and the
// new option's count incremented (a vote change); otherwise it is a fresh
// vote.
func (a *PollAggregate) CastVote(tag VoterTag, option int) error {
	if option < 0 || option >= len(a.OptionCounts) {
		return ErrInvalidOption
	}
	if prior, ok := a.Voters[tag]; ok {
		if prior == option {
			return nil
		}
		a.OptionCounts[prior]--
	}
	a.OptionCounts[option]++
	a.Voters[tag] = option
	return nil
}

// Participation returns |voters| / total_members_at_open.
func (a *PollAggregate) Participation() float64 {
	if a.TotalMembersAtOpen == 0 {
		return 0
	}
	return float64(len(a.Voters)) / float64(a.TotalMembersAtOpen)
}
