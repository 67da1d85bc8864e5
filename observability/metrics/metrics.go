// Package metrics exposes the Prometheus collectors for trust-mesh health
// and governance activity (SPEC_FULL §4.9).
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type registry struct {
	dvr                prometheus.Gauge
	clusterCount       prometheus.Gauge
	proposalsOpened    *prometheus.CounterVec
	votesCast          *prometheus.CounterVec
	persistenceSuccess *prometheus.CounterVec
	persistenceFailure *prometheus.CounterVec
	rateLimitTrips     *prometheus.CounterVec
}

var (
	once     sync.Once
	instance *registry
)

// Registry returns the lazily-initialised, process-wide metrics registry,
// mirroring the teacher's CounterVec/sync.Once lazy-registration idiom.
func Registry() *registry {
	once.Do(func() {
		instance = &registry{
			dvr: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "stroma",
				Subsystem: "trust",
				Name:      "distinct_validator_ratio",
				Help:      "Current distinct-validator ratio for this bot's group.",
			}),
			clusterCount: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "stroma",
				Subsystem: "graph",
				Name:      "cluster_count",
				Help:      "Number of connected trust clusters currently detected.",
			}),
			proposalsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stroma",
				Subsystem: "governance",
				Name:      "proposals_opened_total",
				Help:      "Total governance proposals opened, segmented by type.",
			}, []string{"proposal_type"}),
			votesCast: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stroma",
				Subsystem: "governance",
				Name:      "votes_cast_total",
				Help:      "Total votes cast, segmented by option.",
			}, []string{"option"}),
			persistenceSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stroma",
				Subsystem: "persistence",
				Name:      "operations_success_total",
				Help:      "Successful persistence operations, segmented by kind.",
			}, []string{"operation"}),
			persistenceFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stroma",
				Subsystem: "persistence",
				Name:      "operations_failure_total",
				Help:      "Failed persistence operations, segmented by kind and reason.",
			}, []string{"operation", "reason"}),
			rateLimitTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stroma",
				Subsystem: "governance",
				Name:      "rate_limit_trips_total",
				Help:      "Count of actions rejected by the progressive per-actor cooldown.",
			}, []string{"action"}),
		}
		prometheus.MustRegister(
			instance.dvr,
			instance.clusterCount,
			instance.proposalsOpened,
			instance.votesCast,
			instance.persistenceSuccess,
			instance.persistenceFailure,
			instance.rateLimitTrips,
		)
	})
	return instance
}

// SetDVR records the current distinct-validator ratio.
func (r *registry) SetDVR(v float64) {
	if r == nil {
		return
	}
	r.dvr.Set(v)
}

// SetClusterCount records the current number of connected trust clusters.
func (r *registry) SetClusterCount(n int) {
	if r == nil {
		return
	}
	r.clusterCount.Set(float64(n))
}

// RecordProposalOpened increments the opened-proposal counter for kind.
func (r *registry) RecordProposalOpened(kind string) {
	if r == nil {
		return
	}
	r.proposalsOpened.WithLabelValues(kind).Inc()
}

// RecordVote increments the vote counter for the chosen option label
// ("approve" or "reject").
func (r *registry) RecordVote(option string) {
	if r == nil {
		return
	}
	r.votesCast.WithLabelValues(option).Inc()
}

// RecordPersistenceSuccess increments the success counter for operation.
func (r *registry) RecordPersistenceSuccess(operation string) {
	if r == nil {
		return
	}
	r.persistenceSuccess.WithLabelValues(operation).Inc()
}

// RecordPersistenceFailure increments the failure counter for operation,
// segmented by reason.
func (r *registry) RecordPersistenceFailure(operation, reason string) {
	if r == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	r.persistenceFailure.WithLabelValues(operation, reason).Inc()
}

// RecordRateLimitTrip increments the rate-limit trip counter for action.
func (r *registry) RecordRateLimitTrip(action string) {
	if r == nil {
		return
	}
	r.rateLimitTrips.WithLabelValues(action).Inc()
}
