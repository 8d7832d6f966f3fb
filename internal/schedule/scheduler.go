// Package schedule triggers maintenance runs from a cron expression.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseCron parses a standard 5-field cron expression or a descriptor such as @daily
func ParseCron(expr string) (cron.Schedule, error) {
	return parser.Parse(expr)
}

// Scheduler decides when the next run is due. Runs never overlap: Start
// executes each run synchronously inside its loop.
type Scheduler struct {
	expr    string
	sched   cron.Schedule
	lastRun time.Time
	running bool
	mu      sync.RWMutex

	now  func() time.Time
	tick time.Duration
}

// New creates a scheduler for the given cron expression. The first run is
// the first scheduled time after now.
func New(expr string) (*Scheduler, error) {
	sched, err := ParseCron(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return &Scheduler{
		expr:    expr,
		sched:   sched,
		lastRun: time.Now(),
		now:     time.Now,
		tick:    time.Minute,
	}, nil
}

// SetCron replaces the schedule, keeping the time of the last run
func (s *Scheduler) SetCron(expr string) error {
	sched, err := ParseCron(expr)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expr = expr
	s.sched = sched
	return nil
}

// Cron returns the active cron expression
func (s *Scheduler) Cron() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expr
}

// NextRun returns the next scheduled run time
func (s *Scheduler) NextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sched.Next(s.lastRun)
}

// ShouldRun returns true if a run is due and none is in progress
func (s *Scheduler) ShouldRun() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.running {
		return false
	}
	next := s.sched.Next(s.lastRun)
	return !s.now().Before(next)
}

// MarkRunning marks a run as in progress
func (s *Scheduler) MarkRunning() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
}

// MarkComplete marks the current run as finished
func (s *Scheduler) MarkComplete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.lastRun = s.now()
}

// Start checks the schedule on every tick and calls run when a run is due.
// It returns when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context, run func(context.Context)) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !s.ShouldRun() {
				continue
			}
			s.MarkRunning()
			run(ctx)
			s.MarkComplete()
		}
	}
}
