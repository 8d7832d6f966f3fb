package domain

import (
	"fmt"
	"time"
)

// Invocation describes one call of the parity tool
type Invocation struct {
	Step StepName
	// Args are the subcommand-specific flags, appended after the subcommand
	Args []string
	// AllowCodes lists nonzero exit codes that still count as ok
	AllowCodes []int
}

// StepOutcome is the immutable result of one attempted step
type StepOutcome struct {
	Step      StepName
	Args      []string
	Status    ExitStatus
	ExitCode  int
	Output    string
	Err       string
	StartedAt time.Time
	Duration  time.Duration
}

// String renders a one-line description used in summaries
func (o StepOutcome) String() string {
	switch o.Status {
	case ExitOK:
		return fmt.Sprintf("%s: ok (%s)", o.Step, o.Duration.Round(time.Millisecond))
	case ExitNonzero:
		return fmt.Sprintf("%s: exited with code %d (%s)", o.Step, o.ExitCode, o.Duration.Round(time.Millisecond))
	default:
		return fmt.Sprintf("%s: failed to run: %s", o.Step, o.Err)
	}
}

// DiffResult holds the change counters reported by a diff run
type DiffResult struct {
	Added   int
	Removed int
	Updated int
	Moved   int
	Copied  int
	Raw     string
}

// Changes returns the total number of changed files
func (d DiffResult) Changes() int {
	return d.Added + d.Removed + d.Updated + d.Moved + d.Copied
}

// String returns the counters in a human readable form
func (d DiffResult) String() string {
	return fmt.Sprintf("%d added, %d removed, %d updated, %d moved, %d copied",
		d.Added, d.Removed, d.Updated, d.Moved, d.Copied)
}

// GuardDecision records the outcome of the delete threshold check
type GuardDecision struct {
	Removed   int
	Threshold int
	Allowed   bool
}
