package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hochfrequenz/snapraid-orch/internal/config"
	"github.com/hochfrequenz/snapraid-orch/internal/logging"
	"github.com/hochfrequenz/snapraid-orch/internal/schedule"
)

func newTestDaemon(t *testing.T, path string, cfg *config.Config) *daemonState {
	t.Helper()
	logs, err := logging.New(logging.Options{
		Console: io.Discard,
		Level:   logging.LevelOutput,
		File:    cfg.Logging.File,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { logs.Close() })

	sched, err := schedule.New(cfg.Schedule.Cron)
	if err != nil {
		t.Fatal(err)
	}
	return &daemonState{path: path, sched: sched, logs: logs, logger: logs.Logger, cfg: cfg}
}

func TestDaemon_ReloadKeepsConfigWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Snapraid.DeleteThreshold = 7

	d := newTestDaemon(t, filepath.Join(dir, "config.toml"), cfg)
	d.reload()

	if got := d.current(); got != cfg {
		t.Errorf("reload of a missing file replaced the config: threshold %d", got.Snapraid.DeleteThreshold)
	}
	if d.sched.Cron() != cfg.Schedule.Cron {
		t.Errorf("Cron() = %q, want %q", d.sched.Cron(), cfg.Schedule.Cron)
	}
}

func TestDaemon_ReloadAppliesValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := "[snapraid]\ndelete_threshold = 12\n\n[schedule]\ncron = \"30 4 * * *\"\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	d := newTestDaemon(t, path, config.Default())
	d.reload()

	if got := d.current().Snapraid.DeleteThreshold; got != 12 {
		t.Errorf("DeleteThreshold = %d, want 12", got)
	}
	if d.sched.Cron() != "30 4 * * *" {
		t.Errorf("Cron() = %q, want 30 4 * * *", d.sched.Cron())
	}
}

func TestDaemon_RunsShareTheDaemonLogFile(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "daemon.log")

	cfg := config.Default()
	cfg.Snapraid.Executable = filepath.Join(dir, "missing-snapraid")
	cfg.Snapraid.Config = filepath.Join(dir, "missing.conf")
	cfg.Logging.File = logFile

	d := newTestDaemon(t, filepath.Join(dir, "config.toml"), cfg)

	d.run(context.Background())

	// a reloaded logging path must not open a second sink mid-flight
	reloaded := *cfg
	reloaded.Logging.File = filepath.Join(dir, "other.log")
	d.mu.Lock()
	d.cfg = &reloaded
	d.mu.Unlock()

	d.run(context.Background())

	if err := d.logs.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), "Run started"); n != 2 {
		t.Errorf("daemon log has %d run starts, want 2", n)
	}
	if !strings.Contains(string(data), "Waiting for next run") {
		t.Error("daemon messages should land in the same file as run output")
	}
	if _, err := os.Stat(reloaded.Logging.File); !os.IsNotExist(err) {
		t.Errorf("a run opened its own log file %s", reloaded.Logging.File)
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "daemon-") {
			t.Errorf("unexpected rotated backup %s", e.Name())
		}
	}
}
