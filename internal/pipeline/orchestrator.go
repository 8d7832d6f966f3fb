// Package pipeline sequences the maintenance steps of a run: diff, the
// delete threshold guard, touch, sync and scrub.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hochfrequenz/snapraid-orch/internal/domain"
	"github.com/hochfrequenz/snapraid-orch/internal/snapraid"
)

// diffChangesFound is the exit code diff uses to signal that differences exist
const diffChangesFound = 2

var separator = strings.Repeat("*", 60)

// Reporter receives the finalized report of every run
type Reporter interface {
	Report(ctx context.Context, report *domain.RunReport)
}

// ReporterFunc adapts a function to the Reporter interface
type ReporterFunc func(ctx context.Context, report *domain.RunReport)

func (f ReporterFunc) Report(ctx context.Context, report *domain.RunReport) { f(ctx, report) }

// Orchestrator runs the maintenance state machine
type Orchestrator struct {
	runner    snapraid.Runner
	reporters []Reporter
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// New creates an Orchestrator. Reporters are called in order once per run.
func New(runner snapraid.Runner, logger *slog.Logger, reporters ...Reporter) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		runner:    runner,
		reporters: reporters,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Run executes one maintenance run and returns its finalized report. The
// report is always produced and always handed to the reporters, including
// on abort and fatal errors.
func (o *Orchestrator) Run(ctx context.Context, cfg domain.RunConfig) *domain.RunReport {
	report := domain.NewRunReport(o.newID(), o.now())

	o.logger.Info(strings.Repeat("=", 60))
	o.logger.Info("Run started", "run_id", report.ID)
	o.logger.Info(strings.Repeat("=", 60))

	o.execute(ctx, cfg, report)
	o.finish(ctx, report)

	return report
}

func (o *Orchestrator) execute(ctx context.Context, cfg domain.RunConfig, report *domain.RunReport) {
	if p, ok := o.runner.(snapraid.Preflighter); ok {
		if err := p.Preflight(); err != nil {
			o.logger.Error(err.Error())
			report.Record(domain.StepOutcome{
				Step:      domain.StepDiff,
				Status:    domain.ExitProcessError,
				ExitCode:  -1,
				Err:       err.Error(),
				StartedAt: o.now(),
			})
			report.Degrade(domain.RunError)
			return
		}
	}

	// START -> DIFF_DONE
	diff := o.step(ctx, cfg, report, domain.Invocation{
		Step:       domain.StepDiff,
		AllowCodes: []int{diffChangesFound},
	})
	if diff.Status != domain.ExitOK {
		report.Degrade(domain.RunError)
		return
	}
	result := snapraid.Classify(diff.Output)
	report.Diff = &result
	report.Enter(domain.PhaseDiffDone)
	o.logger.Info("Diff results: " + result.String())

	// DIFF_DONE -> GUARD_CHECKED
	decision := CheckThreshold(result, cfg.DeleteThreshold)
	report.Guard = &decision
	report.Enter(domain.PhaseGuardCheck)
	if !decision.Allowed {
		o.logger.Error("Deleted files exceed delete threshold, aborting",
			"removed", decision.Removed, "threshold", decision.Threshold)
		o.logger.Error("Run again with --ignore-deletethreshold to sync anyways")
		report.Enter(domain.PhaseAborted)
		report.Degrade(domain.RunAborted)
		return
	}

	// GUARD_CHECKED -> TOUCH_DONE_OR_SKIPPED
	if cfg.Touch {
		touch := o.step(ctx, cfg, report, domain.Invocation{Step: domain.StepTouch})
		if touch.Status != domain.ExitOK {
			o.logger.Warn("touch failed, continuing with sync", "error", touch.Err)
			report.Degrade(domain.RunWarning)
		}
	}
	report.Enter(domain.PhaseTouchDone)

	// -> SYNC_DONE
	if cfg.SkipUnchanged && result.Changes() == 0 {
		o.logger.Info("No changes detected, no sync required")
	} else {
		sync := o.step(ctx, cfg, report, domain.Invocation{Step: domain.StepSync})
		if sync.Status != domain.ExitOK {
			o.logger.Error("sync failed, skipping scrub", "error", sync.Err)
			report.Degrade(domain.RunError)
			return
		}
	}
	report.Enter(domain.PhaseSyncDone)

	// -> SCRUB_DONE_OR_SKIPPED
	if inv, ok := PlanScrub(cfg); ok {
		scrub := o.step(ctx, cfg, report, inv)
		switch scrub.Status {
		case domain.ExitNonzero:
			o.logger.Warn("scrub reported errors", "exit_code", scrub.ExitCode)
			report.Degrade(domain.RunWarning)
		case domain.ExitProcessError:
			o.logger.Error("scrub could not run", "error", scrub.Err)
			report.Degrade(domain.RunError)
		}
	}
	report.Enter(domain.PhaseScrubDone)

	o.logger.Info("All done")
}

// step runs one invocation, bounded by the configured step timeout, and
// records its outcome
func (o *Orchestrator) step(ctx context.Context, cfg domain.RunConfig, report *domain.RunReport, inv domain.Invocation) domain.StepOutcome {
	if cfg.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.StepTimeout)
		defer cancel()
	}

	o.logger.Info("Running " + string(inv.Step) + "...")
	outcome := o.runner.Run(ctx, inv)
	report.Record(outcome)
	if outcome.Status == domain.ExitProcessError {
		o.logger.Error(outcome.Err, "step", inv.Step)
	}
	o.logger.Info(separator)

	return outcome
}

func (o *Orchestrator) finish(ctx context.Context, report *domain.RunReport) {
	if !report.Finalize(o.now()) {
		return
	}

	switch report.Status {
	case domain.RunSuccess:
		o.logger.Info("Run finished successfully", "run_id", report.ID)
	case domain.RunWarning:
		o.logger.Warn("Run finished with warnings", "run_id", report.ID)
	default:
		o.logger.Error("Run failed", "run_id", report.ID, "status", report.Status)
	}

	// reporters run even when the run itself was cancelled
	ctx = context.WithoutCancel(ctx)
	for _, r := range o.reporters {
		r.Report(ctx, report)
	}
}
