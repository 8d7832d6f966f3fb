package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hochfrequenz/snapraid-orch/internal/config"
	"github.com/hochfrequenz/snapraid-orch/internal/logging"
	"github.com/hochfrequenz/snapraid-orch/internal/schedule"
)

func init() {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run maintenance on the configured cron schedule",
		Args:  cobra.NoArgs,
		RunE:  runDaemon,
	}
	rootCmd.AddCommand(daemonCmd)
}

// daemonState holds the configuration shared by the scheduler loop and the
// config watcher. The log sinks are opened once and shared by every run:
// a rotating log file must have exactly one writer.
type daemonState struct {
	path   string
	sched  *schedule.Scheduler
	logs   *logging.Logs
	logger *slog.Logger

	mu  sync.Mutex
	cfg *config.Config
}

func (d *daemonState) current() *config.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// reload re-reads the config file. An invalid file keeps the previous
// configuration active.
func (d *daemonState) reload() {
	cfg, err := config.Load(d.path)
	if err != nil {
		d.logger.Error("Config reload failed, keeping previous configuration", "error", err)
		return
	}
	if err := d.sched.SetCron(cfg.Schedule.Cron); err != nil {
		d.logger.Error("Config reload failed, keeping previous configuration", "error", err)
		return
	}

	d.mu.Lock()
	if cfg.Logging != d.cfg.Logging {
		d.logger.Warn("Logging settings changed, they take effect after a restart")
	}
	d.cfg = cfg
	d.mu.Unlock()

	d.logger.Info("Configuration reloaded", "cron", cfg.Schedule.Cron, "next_run", d.sched.NextRun())
}

func (d *daemonState) run(ctx context.Context) {
	if _, err := runOnce(ctx, d.current(), d.logs, config.Overrides{}); err != nil {
		d.logger.Error("Run not started", "error", err)
	}
	d.logger.Info("Waiting for next run", "next_run", d.sched.NextRun())
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logs, err := newLogs(cfg)
	if err != nil {
		return err
	}
	defer logs.Close()

	if cfg.Schedule.Cron == "" {
		return configError(errors.New("schedule.cron is required in daemon mode"))
	}
	sched, err := schedule.New(cfg.Schedule.Cron)
	if err != nil {
		return configError(err)
	}

	state := &daemonState{
		path:   resolveConfigPath(),
		sched:  sched,
		logs:   logs,
		logger: logs.Logger,
		cfg:    cfg,
	}

	ctx, stop := signalContext()
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	watcher, err := schedule.NewWatcher(state.path, state.reload, logs.Logger)
	if err != nil {
		logs.Logger.Warn("Config watcher disabled", "error", err)
	} else {
		g.Go(func() error { return watcher.Run(ctx) })
	}

	logs.Logger.Info("Daemon started", "cron", cfg.Schedule.Cron, "next_run", sched.NextRun())
	g.Go(func() error {
		err := sched.Start(ctx, state.run)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	err = g.Wait()
	logs.Logger.Info("Daemon stopped")
	return err
}
