package domain

// StepName identifies one parity tool subcommand driven by the orchestrator
type StepName string

const (
	StepDiff  StepName = "diff"
	StepTouch StepName = "touch"
	StepSync  StepName = "sync"
	StepScrub StepName = "scrub"
)

// ExitStatus is the tagged result of a single command invocation
type ExitStatus string

const (
	ExitOK           ExitStatus = "ok"
	ExitNonzero      ExitStatus = "nonzero"
	ExitProcessError ExitStatus = "process-error"
)

// RunStatus represents the overall outcome of a maintenance run
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunWarning RunStatus = "warning"
	RunAborted RunStatus = "aborted"
	RunError   RunStatus = "error"
)

// Severity orders run statuses; a higher value is worse.
func (s RunStatus) Severity() int {
	switch s {
	case RunWarning:
		return 1
	case RunAborted:
		return 2
	case RunError:
		return 3
	default:
		return 0
	}
}

// Failed reports whether the status should be treated as a failed run
func (s RunStatus) Failed() bool {
	return s == RunError || s == RunAborted
}

// Worse returns whichever of a and b has the higher severity
func Worse(a, b RunStatus) RunStatus {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// ParseRunStatus validates a status name from configuration
func ParseRunStatus(s string) (RunStatus, bool) {
	switch st := RunStatus(s); st {
	case RunSuccess, RunWarning, RunAborted, RunError:
		return st, true
	}
	return "", false
}

// Phase is a state of the run state machine
type Phase string

const (
	PhaseStart      Phase = "START"
	PhaseDiffDone   Phase = "DIFF_DONE"
	PhaseGuardCheck Phase = "GUARD_CHECKED"
	PhaseAborted    Phase = "ABORTED"
	PhaseTouchDone  Phase = "TOUCH_DONE_OR_SKIPPED"
	PhaseSyncDone   Phase = "SYNC_DONE"
	PhaseScrubDone  Phase = "SCRUB_DONE_OR_SKIPPED"
	PhaseFinished   Phase = "FINISHED"
)
