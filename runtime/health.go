package runtime

import (
	"time"

	"stroma/governance"
	"stroma/graph"
	"stroma/identity"
	"stroma/observability/metrics"
	"stroma/trust"
)

// HealthSignal is a one-shot notable event the health monitor can raise,
// named after the spec's own GAP identifiers.
type HealthSignal struct {
	Name    string // "GAP-11" (cluster formation) or "GAP-01" (audit flush)
	Message string
}

// RunHealthCheck recomputes DVR and cluster count, publishes them to the
// metrics registry, decays the rate limiter, and returns any signals the
// replica event loop should act on (spec.md §4.8 "Health monitor"), plus
// the audit log length as of this check so the caller can detect growth on
// the next tick without the monitor itself keeping mutable state. now is
// injected so callers can drive this deterministically in tests.
func RunHealthCheck(c *trust.Contract, limiter *governance.RateLimiter, lastFlushedAuditLen int, now time.Time) ([]HealthSignal, int) {
	members := c.MembersSorted()

	dvr := graph.ComputeDVR(
		members,
		func(h identity.MemberHash) int64 { return int64(len(c.VouchesFor(h)) - len(c.FlagsFor(h))) },
		c.VouchesFor,
		0,
	)
	metrics.Registry().SetDVR(dvr.Ratio)

	clusters := graph.DetectClusters(members, c.VouchesFrom)
	metrics.Registry().SetClusterCount(clusters.Count())

	limiter.Decay(now)

	var signals []HealthSignal
	if clusters.NeedsAnnouncement() && !c.Gap11AnnouncementSent {
		c.Gap11AnnouncementSent = true
		signals = append(signals, HealthSignal{
			Name:    "GAP-11",
			Message: "trust mesh has split into multiple clusters; introductions recommended",
		})
	}
	if len(c.AuditLog) > lastFlushedAuditLen {
		signals = append(signals, HealthSignal{
			Name:    "GAP-01",
			Message: "audit log has pending entries to flush",
		})
	}
	return signals, len(c.AuditLog)
}
