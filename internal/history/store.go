// Package history keeps a SQLite record of finished maintenance runs.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hochfrequenz/snapraid-orch/internal/domain"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed run persistence
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases consistent
	db.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	// Run migrations
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, logger: slog.Default()}, nil
}

// WithLogger sets the logger used by Report
func (s *Store) WithLogger(logger *slog.Logger) *Store {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Report saves a finalized run. Failures are logged and never propagated,
// so a broken history database cannot change the outcome of a run.
func (s *Store) Report(ctx context.Context, report *domain.RunReport) {
	if err := s.Save(ctx, report); err != nil {
		s.logger.Error("Failed to save run history", "run_id", report.ID, "error", err)
	}
}

// Save inserts a run and its steps
func (s *Store) Save(ctx context.Context, report *domain.RunReport) error {
	var diffJSON sql.NullString
	if report.Diff != nil {
		data, err := json.Marshal(diffCounters{
			Added:   report.Diff.Added,
			Removed: report.Diff.Removed,
			Updated: report.Diff.Updated,
			Moved:   report.Diff.Moved,
			Copied:  report.Diff.Copied,
		})
		if err != nil {
			return err
		}
		diffJSON = sql.NullString{String: string(data), Valid: true}
	}

	var guardRemoved, guardThreshold sql.NullInt64
	var guardAllowed sql.NullBool
	if report.Guard != nil {
		guardRemoved = sql.NullInt64{Int64: int64(report.Guard.Removed), Valid: true}
		guardThreshold = sql.NullInt64{Int64: int64(report.Guard.Threshold), Valid: true}
		guardAllowed = sql.NullBool{Bool: report.Guard.Allowed, Valid: true}
	}

	var finished sql.NullTime
	if report.FinishedAt != nil {
		finished = sql.NullTime{Time: *report.FinishedAt, Valid: true}
	}

	phases := make([]string, len(report.Phases))
	for i, p := range report.Phases {
		phases[i] = string(p)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, status, started_at, finished_at, phases, diff, guard_removed, guard_threshold, guard_allowed, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID,
		string(report.Status),
		report.StartedAt,
		finished,
		strings.Join(phases, ","),
		diffJSON,
		guardRemoved,
		guardThreshold,
		guardAllowed,
		report.Summary,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	for i, step := range report.Steps {
		argsJSON, err := json.Marshal(step.Args)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO steps (run_id, seq, step, args, status, exit_code, error, started_at, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			report.ID,
			i,
			string(step.Step),
			string(argsJSON),
			string(step.Status),
			step.ExitCode,
			step.Err,
			step.StartedAt,
			step.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("inserting step %s: %w", step.Step, err)
		}
	}

	return tx.Commit()
}

// ListOptions specifies filters for listing runs
type ListOptions struct {
	Limit  int
	Status domain.RunStatus
}

// ListRuns returns stored runs, newest first, with their steps
func (s *Store) ListRuns(ctx context.Context, opts ListOptions) ([]*domain.RunReport, error) {
	query := `SELECT id, status, started_at, finished_at, phases, diff, guard_removed, guard_threshold, guard_allowed, summary FROM runs WHERE 1=1`
	var args []interface{}

	if opts.Status != "" {
		query += " AND status = ?"
		args = append(args, string(opts.Status))
	}

	query += " ORDER BY started_at DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var runs []*domain.RunReport
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, run := range runs {
		steps, err := s.listSteps(ctx, run.ID)
		if err != nil {
			return nil, err
		}
		run.Steps = steps
	}
	return runs, nil
}

// GetRun retrieves a run by ID
func (s *Store) GetRun(ctx context.Context, id string) (*domain.RunReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, started_at, finished_at, phases, diff, guard_removed, guard_threshold, guard_allowed, summary
		FROM runs WHERE id = ?
	`, id)
	if err != nil {
		return nil, err
	}

	if !rows.Next() {
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, sql.ErrNoRows
	}
	run, err := scanRun(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	run.Steps, err = s.listSteps(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (s *Store) listSteps(ctx context.Context, runID string) ([]domain.StepOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT step, args, status, exit_code, error, started_at, duration_ms
		FROM steps WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []domain.StepOutcome
	for rows.Next() {
		var o domain.StepOutcome
		var step, status string
		var argsJSON, errText sql.NullString
		var started sql.NullTime
		var durationMS int64

		if err := rows.Scan(&step, &argsJSON, &status, &o.ExitCode, &errText, &started, &durationMS); err != nil {
			return nil, err
		}

		o.Step = domain.StepName(step)
		o.Status = domain.ExitStatus(status)
		o.Err = errText.String
		o.StartedAt = started.Time
		o.Duration = time.Duration(durationMS) * time.Millisecond
		if argsJSON.Valid && argsJSON.String != "null" {
			if err := json.Unmarshal([]byte(argsJSON.String), &o.Args); err != nil {
				return nil, err
			}
		}
		steps = append(steps, o)
	}
	return steps, rows.Err()
}

type diffCounters struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Updated int `json:"updated"`
	Moved   int `json:"moved"`
	Copied  int `json:"copied"`
}

func scanRun(rows *sql.Rows) (*domain.RunReport, error) {
	var run domain.RunReport
	var status, phases string
	var finished sql.NullTime
	var diffJSON, summary sql.NullString
	var guardRemoved, guardThreshold sql.NullInt64
	var guardAllowed sql.NullBool

	err := rows.Scan(&run.ID, &status, &run.StartedAt, &finished, &phases, &diffJSON,
		&guardRemoved, &guardThreshold, &guardAllowed, &summary)
	if err != nil {
		return nil, err
	}

	run.Status = domain.RunStatus(status)
	run.Summary = summary.String
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	if phases != "" {
		for _, p := range strings.Split(phases, ",") {
			run.Phases = append(run.Phases, domain.Phase(p))
		}
	}
	if diffJSON.Valid {
		var c diffCounters
		if err := json.Unmarshal([]byte(diffJSON.String), &c); err != nil {
			return nil, err
		}
		run.Diff = &domain.DiffResult{
			Added:   c.Added,
			Removed: c.Removed,
			Updated: c.Updated,
			Moved:   c.Moved,
			Copied:  c.Copied,
		}
	}
	if guardAllowed.Valid {
		run.Guard = &domain.GuardDecision{
			Removed:   int(guardRemoved.Int64),
			Threshold: int(guardThreshold.Int64),
			Allowed:   guardAllowed.Bool,
		}
	}
	return &run, nil
}
