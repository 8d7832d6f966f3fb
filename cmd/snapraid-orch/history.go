package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hochfrequenz/snapraid-orch/internal/domain"
	"github.com/hochfrequenz/snapraid-orch/internal/history"
)

var (
	historyLimit  int
	historyStatus string
)

func init() {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List past runs",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to show")
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "filter by status")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.History.DatabasePath == "" {
		return configError(errors.New("run history is disabled: set history.database_path"))
	}

	opts := history.ListOptions{Limit: historyLimit}
	if historyStatus != "" {
		st, ok := domain.ParseRunStatus(historyStatus)
		if !ok {
			return fmt.Errorf("unknown status %q", historyStatus)
		}
		opts.Status = st
	}

	store, err := history.New(cfg.History.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(context.Background(), opts)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tSTATUS\tDURATION\tCHANGES\tREMOVED\tID")
	for _, r := range runs {
		changes, removed := "-", "-"
		if r.Diff != nil {
			changes = humanize.Comma(int64(r.Diff.Changes()))
			removed = humanize.Comma(int64(r.Diff.Removed))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			humanize.Time(r.StartedAt),
			r.Status,
			r.Duration().Round(time.Second),
			changes,
			removed,
			r.ID,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	stats := history.Summarize(runs)
	fmt.Printf("\n%d runs | %d success | %d warning | %d aborted | %d error | avg %s\n",
		stats.Total,
		stats.ByStatus[domain.RunSuccess],
		stats.ByStatus[domain.RunWarning],
		stats.ByStatus[domain.RunAborted],
		stats.ByStatus[domain.RunError],
		stats.AvgDuration.Round(time.Second),
	)
	if stats.LastSuccess != nil {
		fmt.Printf("Last successful run: %s\n", humanize.Time(*stats.LastSuccess))
	}
	return nil
}
