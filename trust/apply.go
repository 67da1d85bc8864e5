package trust

import "time"

// nowFunc is overridable for deterministic tests, mirroring the
// SetNowFunc injection idiom used by the governance engine.
var nowFunc = time.Now

// SetNowFunc overrides the clock used for audit timestamps. Intended for
// tests; production callers leave the default.
func SetNowFunc(f func() time.Time) {
	if f == nil {
		nowFunc = time.Now
		return
	}
	nowFunc = f
}

// ApplyDelta validates and applies a single delta to the contract. It is
// the only entry point that mutates Members/Ejected/Vouches/Flags.
func (c *Contract) ApplyDelta(d TrustDelta) ValidationResult {
	result := c.ValidateDelta(d)
	if !result.Valid() {
		if result.Reason == ReasonTombstoneReentry {
			c.appendAudit(AuditEntry{
				Timestamp:   nowFunc().Unix(),
				Actor:       d.Subject,
				ActionType:  ActionOther,
				ActionLabel: "tombstone_reentry_attempt",
				Details:     "rejected re-admission of an ejected member",
			})
		}
		return result
	}

	switch d.Kind {
	case DeltaAddMember:
		c.Members[d.Subject] = struct{}{}

	case DeltaRemoveMember:
		delete(c.Members, d.Subject)
		c.Ejected[d.Subject] = struct{}{}
		// Cascade: drop the member's outbound and inbound vouches/flags.
		c.Vouches.removeAllFrom(d.Subject)
		c.Vouches.removeAllTo(d.Subject)
		c.Flags.removeAllFrom(d.Subject)
		c.Flags.removeAllTo(d.Subject)

	case DeltaAddVouch:
		c.Vouches.add(d.Subject, d.To)

	case DeltaRemoveVouch:
		c.Vouches.remove(d.Subject, d.To)

	case DeltaAddFlag:
		c.Flags.add(d.Subject, d.To)

	case DeltaRemoveFlag:
		c.Flags.remove(d.Subject, d.To)
	}

	return valid()
}
