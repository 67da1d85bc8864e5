package trust

// Merge combines state received from another replica into c. It is
// set-union on Members, Ejected, and each adjacency set; last-writer-wins
// on Config keyed by ConfigTimestamp. Those fields merge associatively,
// commutatively, and idempotently, so the overlay may apply/deliver state
// in any order. On equal ConfigTimestamps c keeps its own Config, and
// FederationContracts and AuditLog keep c's entries first and append
// other's unseen ones, so the kept Config and the element order of those
// two lists depend on which side is merged into which.
func (c *Contract) Merge(other *Contract) {
	if other == nil {
		return
	}

	// Ejected first: a tombstone present on either side wins regardless of
	// arrival order, so a member re-added elsewhere never resurrects here.
	for h := range other.Ejected {
		c.Ejected[h] = struct{}{}
	}
	for h := range other.Members {
		if c.Ejected.has(h) {
			continue
		}
		c.Members[h] = struct{}{}
	}
	// A member tombstoned by the other side must be evicted from ours too.
	for h := range c.Ejected {
		delete(c.Members, h)
	}

	mergeAdjacency(c.Vouches, other.Vouches, c.Members)
	mergeAdjacency(c.Flags, other.Flags, c.Members)

	if other.ConfigTimestamp > c.ConfigTimestamp {
		c.Config = other.Config
		c.ConfigTimestamp = other.ConfigTimestamp
	} else if other.ConfigTimestamp == c.ConfigTimestamp && other.ConfigTimestamp > 0 {
		// Tie-break is only meaningful across conflicting deltas proposing a
		// change at the same timestamp; identical configs need no resolution.
	}

	c.FederationContracts = mergeFederationContracts(c.FederationContracts, other.FederationContracts)

	for id, prop := range other.ActiveProposals {
		if _, ok := c.ActiveProposals[id]; !ok {
			c.ActiveProposals[id] = prop
		}
	}

	c.AuditLog = mergeAuditLogs(c.AuditLog, other.AuditLog)

	if other.Gap11AnnouncementSent {
		c.Gap11AnnouncementSent = true
	}
}

func mergeAdjacency(dst, src adjacency, members memberSet) {
	for from, tos := range src {
		if !members.has(from) {
			continue
		}
		for to := range tos {
			if !members.has(to) {
				continue
			}
			dst.add(from, to)
		}
	}
}

func mergeFederationContracts(a, b []FederationContract) []FederationContract {
	seen := make(map[[32]byte]struct{}, len(a))
	out := append([]FederationContract(nil), a...)
	for _, fc := range a {
		seen[fc.AnchorHash] = struct{}{}
	}
	for _, fc := range b {
		if _, ok := seen[fc.AnchorHash]; ok {
			continue
		}
		seen[fc.AnchorHash] = struct{}{}
		out = append(out, fc)
	}
	return out
}

// mergeAuditLogs unions two append-only logs, deduplicating by the
// (timestamp, actor, action) triple: a's entries keep their order and b's
// unseen entries follow in b's order.
func mergeAuditLogs(a, b []AuditEntry) []AuditEntry {
	type key struct {
		ts     int64
		actor  [32]byte
		action string
	}
	seen := make(map[key]struct{}, len(a)+len(b))
	out := make([]AuditEntry, 0, len(a)+len(b))
	add := func(e AuditEntry) {
		k := key{ts: e.Timestamp, actor: e.Actor, action: e.ActionType.String(e.ActionLabel)}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	for _, e := range a {
		add(e)
	}
	for _, e := range b {
		add(e)
	}
	return out
}

// ResolveDeltaConflict applies the tie-break rule for two deltas proposing
// changes at the same config_timestamp: the lexicographically smaller
// serialized delta wins. Returns the winner.
func ResolveDeltaConflict(a, b TrustDelta) (TrustDelta, error) {
	encA, err := a.Encode()
	if err != nil {
		return TrustDelta{}, err
	}
	encB, err := b.Encode()
	if err != nil {
		return TrustDelta{}, err
	}
	if compareEncoded(encA, encB) <= 0 {
		return a, nil
	}
	return b, nil
}
