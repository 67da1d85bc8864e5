package governance

// OutcomeStatus is the terminal state of an evaluated proposal.
type OutcomeStatus int

const (
	OutcomePassed OutcomeStatus = iota
	OutcomeFailed
)

// Outcome is the result of evaluating a poll at expiry or termination.
type Outcome struct {
	Status OutcomeStatus
	Reason string
}

// EvaluateOutcome applies spec §4.8's deterministic evaluation: quorum
// first, then approval ratio against threshold.
func EvaluateOutcome(a *PollAggregate, quorum, threshold float64) Outcome {
	if a.Participation() < quorum {
		return Outcome{Status: OutcomeFailed, Reason: "quorum not met"}
	}

	approvals := float64(a.OptionCounts[0])
	rejections := float64(a.OptionCounts[1])
	total := approvals + rejections
	var approvalRatio float64
	if total > 0 {
		approvalRatio = approvals / total
	}

	if approvalRatio >= threshold {
		return Outcome{Status: OutcomePassed}
	}
	return Outcome{Status: OutcomeFailed, Reason: "threshold not met"}
}

// ShutdownOutcome is the forced outcome for any proposal still open when
// the runtime shuts down (spec §5 Cancellation).
func ShutdownOutcome() Outcome {
	return Outcome{Status: OutcomeFailed, Reason: "bot shutdown"}
}
