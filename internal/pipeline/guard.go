package pipeline

import "github.com/hochfrequenz/snapraid-orch/internal/domain"

// ThresholdDisabled turns the delete threshold guard off
const ThresholdDisabled = -1

// CheckThreshold decides whether sync may run given the number of removed
// files reported by diff. Values below -1 never disable the guard; they
// block every sync.
func CheckThreshold(diff domain.DiffResult, threshold int) domain.GuardDecision {
	decision := domain.GuardDecision{
		Removed:   diff.Removed,
		Threshold: threshold,
	}
	if threshold == ThresholdDisabled {
		decision.Allowed = true
		return decision
	}
	decision.Allowed = diff.Removed <= threshold
	return decision
}
