package pipeline

import (
	"strconv"

	"github.com/hochfrequenz/snapraid-orch/internal/domain"
)

// PlanScrub returns the scrub invocation for this run, or false if scrub
// is disabled. Percentage plans carry the minimum block age; keyword plans
// do not.
func PlanScrub(cfg domain.RunConfig) (domain.Invocation, bool) {
	if !cfg.Scrub.Enabled {
		return domain.Invocation{}, false
	}

	args := []string{"--plan", cfg.Scrub.Plan.String()}
	if !cfg.Scrub.Plan.IsKeyword() {
		args = append(args, "--older-than", strconv.Itoa(cfg.Scrub.OlderThan))
	}

	return domain.Invocation{Step: domain.StepScrub, Args: args}, true
}
