package history

import (
	"time"

	"github.com/hochfrequenz/snapraid-orch/internal/domain"
)

// Stats holds aggregated figures over a set of runs
type Stats struct {
	Total        int
	ByStatus     map[domain.RunStatus]int
	AvgDuration  time.Duration
	TotalRemoved int
	LastSuccess  *time.Time
}

// Summarize aggregates runs. Runs that never finished do not count towards
// the average duration.
func Summarize(runs []*domain.RunReport) Stats {
	stats := Stats{ByStatus: make(map[domain.RunStatus]int)}
	var totalDuration time.Duration
	var finished int

	for _, r := range runs {
		stats.Total++
		stats.ByStatus[r.Status]++
		if r.Diff != nil {
			stats.TotalRemoved += r.Diff.Removed
		}
		if r.FinishedAt != nil {
			finished++
			totalDuration += r.Duration()
		}
		if r.Status == domain.RunSuccess && (stats.LastSuccess == nil || r.StartedAt.After(*stats.LastSuccess)) {
			t := r.StartedAt
			stats.LastSuccess = &t
		}
	}

	if finished > 0 {
		stats.AvgDuration = totalDuration / time.Duration(finished)
	}
	return stats
}
