package trust

// ValidateDelta runs delta pre-validation (spec §4.4 "Delta validation
// (pre-apply)"). It must be called, and must return Valid, before ApplyDelta
// mutates state.
func (c *Contract) ValidateDelta(d TrustDelta) ValidationResult {
	if d.Subject.IsZero() {
		return invalid(ReasonZeroHash)
	}
	switch d.Kind {
	case DeltaAddMember:
		if c.Ejected.has(d.Subject) {
			return invalid(ReasonTombstoneReentry)
		}
		if c.Members.has(d.Subject) {
			return invalid(ReasonAlreadyMember)
		}
		if len(c.Members) < bootstrapThreshold {
			return valid()
		}
		if have := c.activeVoucherCount(d.Subject); uint32(have) < c.Config.MinVouches {
			return invalid(reasonInsufficientVouches(d.Subject, have))
		}
		return valid()

	case DeltaRemoveMember:
		// Tombstones grow monotonically; removal is unconditional.
		return valid()

	case DeltaAddVouch, DeltaRemoveVouch, DeltaAddFlag, DeltaRemoveFlag:
		if d.To.IsZero() {
			return invalid(ReasonZeroHash)
		}
		if !c.Members.has(d.Subject) || !c.Members.has(d.To) {
			return invalid(ReasonUnknownMember)
		}
		return valid()

	default:
		return invalid(ReasonUnknownMember)
	}
}

// ValidateState runs post-merge state validation (spec §4.4 "State
// validation (post-merge)").
func (c *Contract) ValidateState() ValidationResult {
	if c.SchemaVersion == 0 {
		return invalid(ReasonBadSchema)
	}
	if c.Config.ConfigChangeThreshold < 0 || c.Config.ConfigChangeThreshold > 1 {
		return invalid(ReasonBadThreshold)
	}
	if c.Config.MinQuorum < 0 || c.Config.MinQuorum > 1 {
		return invalid(ReasonBadThreshold)
	}
	for h := range c.Members {
		if h.IsZero() {
			return invalid(ReasonZeroHash)
		}
		if c.Ejected.has(h) {
			return invalid(ReasonMembersEjectedOverlap)
		}
		if have := c.activeVoucherCount(h); uint32(have) < c.Config.MinVouches && len(c.Members) >= bootstrapThreshold {
			return invalid(reasonInsufficientVouches(h, have))
		}
	}
	for from, tos := range c.Vouches {
		if !c.Members.has(from) {
			return invalid(ReasonAdjacencyUnknownMember)
		}
		for to := range tos {
			if !c.Members.has(to) {
				return invalid(ReasonAdjacencyUnknownMember)
			}
		}
	}
	for from, tos := range c.Flags {
		if !c.Members.has(from) {
			return invalid(ReasonAdjacencyUnknownMember)
		}
		for to := range tos {
			if !c.Members.has(to) {
				return invalid(ReasonAdjacencyUnknownMember)
			}
		}
	}
	return valid()
}
