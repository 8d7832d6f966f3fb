package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hochfrequenz/snapraid-orch/internal/config"
	"github.com/hochfrequenz/snapraid-orch/internal/domain"
	"github.com/hochfrequenz/snapraid-orch/internal/history"
	"github.com/hochfrequenz/snapraid-orch/internal/logging"
	"github.com/hochfrequenz/snapraid-orch/internal/notify"
	"github.com/hochfrequenz/snapraid-orch/internal/pipeline"
	"github.com/hochfrequenz/snapraid-orch/internal/schedule"
	"github.com/hochfrequenz/snapraid-orch/internal/snapraid"
)

var (
	noScrub               bool
	ignoreDeleteThreshold bool
)

func init() {
	// run command
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run diff, sync and scrub once",
		Args:  cobra.NoArgs,
		RunE:  runRun,
	}
	runCmd.Flags().BoolVar(&noScrub, "no-scrub", false, "do not scrub (overrides config)")
	runCmd.Flags().BoolVar(&ignoreDeleteThreshold, "ignore-deletethreshold", false, "sync even if the delete threshold is exceeded")
	rootCmd.AddCommand(runCmd)

	// check-config command
	checkCmd := &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration file",
		Args:  cobra.NoArgs,
		RunE:  runCheckConfig,
	}
	rootCmd.AddCommand(checkCmd)
}

func resolveConfigPath() string {
	if configPath == "" {
		return config.DefaultConfigPath()
	}
	return configPath
}

// loadConfig reads the config file. Only the implicit default location may
// be missing; an explicit --config must exist.
func loadConfig() (*config.Config, error) {
	load := config.Load
	if configPath == "" {
		load = config.LoadOrDefault
	}
	cfg, err := load(resolveConfigPath())
	if err != nil {
		return nil, configError(err)
	}
	return cfg, nil
}

func newLogs(cfg *config.Config) (*logging.Logs, error) {
	logs, err := logging.New(logging.Options{
		Console:    os.Stdout,
		Level:      cfg.LogLevel(),
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		return nil, configError(err)
	}
	return logs, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logs, err := newLogs(cfg)
	if err != nil {
		return err
	}
	defer logs.Close()

	ctx, stop := signalContext()
	defer stop()

	report, err := runOnce(ctx, cfg, logs, config.Overrides{
		NoScrub:               noScrub,
		IgnoreDeleteThreshold: ignoreDeleteThreshold,
	})
	if err != nil {
		return err
	}

	fmt.Println(report.Summary)
	if report.Status.Failed() {
		return &exitError{code: 1}
	}
	return nil
}

// runOnce wires the runner, the notification adapter and the history store
// for a single run and executes it
func runOnce(ctx context.Context, cfg *config.Config, logs *logging.Logs, o config.Overrides) (*domain.RunReport, error) {
	rc, err := cfg.RunConfig(o)
	if err != nil {
		return nil, configError(err)
	}

	notifier, err := notify.FromURLs(cfg.Notifications.URLs)
	if err != nil {
		return nil, configError(err)
	}

	logger := logs.Logger
	adapter := notify.NewAdapter(notifier, notify.Options{
		SendOn:    cfg.Notifications.SendOn,
		AttachLog: cfg.Notifications.AttachLog,
		Short:     cfg.Notifications.Short,
	}, logger)

	if cfg.Notifications.AttachLog && notifier.Len() > 0 {
		runLog, err := logging.NewRunLog("", cfg.Notifications.Short)
		if err != nil {
			logger.Warn("Log attachment disabled", "error", err)
		} else {
			defer runLog.Remove()
			logger = runLog.Attach(logger)
			adapter = adapter.WithAttachment(runLog.Path()).WithLogger(logger)
		}
	}

	var reporters []pipeline.Reporter
	if notifier.Len() > 0 {
		reporters = append(reporters, adapter)
	}

	if path := cfg.History.DatabasePath; path != "" {
		store, err := history.New(path)
		if err != nil {
			logger.Warn("Run history disabled", "path", path, "error", err)
		} else {
			defer store.Close()
			reporters = append(reporters, store.WithLogger(logger))
		}
	}

	runner := snapraid.NewExecRunner(rc.Executable, rc.ConfigPath, logger)
	return pipeline.New(runner, logger, reporters...).Run(ctx, rc), nil
}

func runCheckConfig(cmd *cobra.Command, args []string) error {
	path := resolveConfigPath()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := cfg.RunConfig(config.Overrides{}); err != nil {
		return configError(err)
	}
	notifier, err := notify.FromURLs(cfg.Notifications.URLs)
	if err != nil {
		return configError(err)
	}

	if _, err := os.Stat(path); err != nil {
		fmt.Printf("Config file %s not found, using defaults\n", path)
	} else {
		fmt.Printf("Config file %s is valid\n", path)
	}
	fmt.Printf("  snapraid:         %s --conf %s\n", cfg.Snapraid.Executable, cfg.Snapraid.Config)
	fmt.Printf("  delete threshold: %d\n", cfg.Snapraid.DeleteThreshold)
	fmt.Printf("  notifications:    %d target(s)\n", notifier.Len())

	if cfg.Schedule.Cron == "" {
		fmt.Println("  next run:         not scheduled")
		return nil
	}
	sched, err := schedule.New(cfg.Schedule.Cron)
	if err != nil {
		return configError(err)
	}
	next := sched.NextRun()
	fmt.Printf("  next run:         %s (%s)\n", next.Format(time.RFC1123), humanize.Time(next))
	return nil
}
