package domain

import (
	"fmt"
	"strings"
	"time"
)

// RunConfig holds the settings for a single maintenance run
type RunConfig struct {
	Executable      string
	ConfigPath      string
	DeleteThreshold int // -1 disables the guard
	Touch           bool
	SkipUnchanged   bool
	Scrub           ScrubConfig
	StepTimeout     time.Duration // zero means no limit
}

// ScrubConfig controls whether and how scrub runs
type ScrubConfig struct {
	Enabled   bool
	Plan      ScrubPlan
	OlderThan int // days, only used with percentage plans
}

// RunReport aggregates everything that happened during one run
type RunReport struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Steps      []StepOutcome
	Phases     []Phase
	Diff       *DiffResult
	Guard      *GuardDecision
	Status     RunStatus
	Summary    string
}

// NewRunReport creates an empty report in the START phase
func NewRunReport(id string, started time.Time) *RunReport {
	return &RunReport{
		ID:        id,
		StartedAt: started,
		Phases:    []Phase{PhaseStart},
		Status:    RunSuccess,
	}
}

// Record appends a step outcome
func (r *RunReport) Record(o StepOutcome) {
	if r.Finalized() {
		return
	}
	r.Steps = append(r.Steps, o)
}

// Enter appends a state machine transition
func (r *RunReport) Enter(p Phase) {
	if r.Finalized() {
		return
	}
	r.Phases = append(r.Phases, p)
}

// Degrade lowers the overall status if s is worse than the current one
func (r *RunReport) Degrade(s RunStatus) {
	if r.Finalized() {
		return
	}
	r.Status = Worse(r.Status, s)
}

// Finalized returns true once Finalize has been called
func (r *RunReport) Finalized() bool {
	return r.FinishedAt != nil
}

// Finalize closes the report and builds the summary. It returns false if
// the report was already finalized.
func (r *RunReport) Finalize(finished time.Time) bool {
	if r.Finalized() {
		return false
	}
	r.Phases = append(r.Phases, PhaseFinished)
	r.FinishedAt = &finished
	r.Summary = r.buildSummary()
	return true
}

// Duration returns the wall-clock time of the run
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Step returns the outcome recorded for the given step, if any
func (r *RunReport) Step(name StepName) (StepOutcome, bool) {
	for _, s := range r.Steps {
		if s.Step == name {
			return s, true
		}
	}
	return StepOutcome{}, false
}

// Headline returns the one-line message for the overall status
func (r *RunReport) Headline() string {
	switch r.Status {
	case RunSuccess:
		return "SnapRAID job completed successfully"
	case RunWarning:
		return "SnapRAID job completed with warnings"
	case RunAborted:
		return "SnapRAID job aborted"
	default:
		return "Error during SnapRAID job"
	}
}

func (r *RunReport) buildSummary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]\n", r.Headline(), r.Status)
	if r.Diff != nil {
		fmt.Fprintf(&b, "Diff: %s\n", r.Diff)
	}
	if r.Guard != nil && !r.Guard.Allowed {
		fmt.Fprintf(&b, "Deleted files (%d) exceed delete threshold of %d\n", r.Guard.Removed, r.Guard.Threshold)
	}
	for _, s := range r.Steps {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	fmt.Fprintf(&b, "Finished in %s", r.Duration().Round(time.Second))
	return b.String()
}
