package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hochfrequenz/snapraid-orch/internal/domain"
	"github.com/hochfrequenz/snapraid-orch/internal/logging"
)

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg := Default()

	if cfg.Snapraid.DeleteThreshold != 40 {
		t.Errorf("DeleteThreshold = %d, want 40", cfg.Snapraid.DeleteThreshold)
	}
	if cfg.Logging.MaxBackups != logging.DefaultMaxBackups {
		t.Errorf("MaxBackups = %d, want %d", cfg.Logging.MaxBackups, logging.DefaultMaxBackups)
	}
	if cfg.Scrub.Enabled {
		t.Error("scrub should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo.tmol")
	cfg, err := Load(path)
	if err == nil {
		t.Fatalf("Load of a missing file should fail, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "configuration file not found") {
		t.Errorf("error = %q, want not found", err)
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Snapraid.Executable != "snapraid" {
		t.Errorf("Executable = %q, want default", cfg.Snapraid.Executable)
	}
}

func TestLoadOrDefault_ExistingFileIsValidated(t *testing.T) {
	path := writeTempConfig(t, "config.toml", "[snapraid]\ndelete_threshold = -7\n")
	if _, err := LoadOrDefault(path); err == nil {
		t.Error("LoadOrDefault should validate an existing file")
	}
}

func TestLoad_FromFile(t *testing.T) {
	content := `
[snapraid]
executable = "/usr/local/bin/snapraid"
config = "/etc/snapraid.conf"
delete_threshold = -1
touch = true
step_timeout = "6h"

[scrub]
enabled = true
plan = "new"

[notifications]
urls = ["slack://hooks.slack.com/services/A/B/C"]
send_on = ["success", "error"]
attach_log = true

[history]
database_path = "/var/lib/snapraid-orch/history.db"
`
	cfg, err := Load(writeTempConfig(t, "config.toml", content))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Snapraid.Executable != "/usr/local/bin/snapraid" {
		t.Errorf("Executable = %q", cfg.Snapraid.Executable)
	}
	if cfg.Snapraid.DeleteThreshold != -1 {
		t.Errorf("DeleteThreshold = %d, want -1", cfg.Snapraid.DeleteThreshold)
	}
	if !cfg.Notifications.AttachLog || len(cfg.Notifications.SendOn) != 2 {
		t.Errorf("Notifications = %+v", cfg.Notifications)
	}

	rc, err := cfg.RunConfig(Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	if rc.Scrub.Plan != (domain.ScrubPlan{Keyword: domain.ScrubNew}) {
		t.Errorf("Plan = %+v, want new", rc.Scrub.Plan)
	}
	if rc.StepTimeout != 6*time.Hour {
		t.Errorf("StepTimeout = %s, want 6h", rc.StepTimeout)
	}
	if !rc.Touch {
		t.Error("Touch should be true")
	}
}

func TestLoad_TOMLPercentPlan(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, "config.toml", "[scrub]\nenabled = true\nplan = 25\nolder_than = 3\n"))
	if err != nil {
		t.Fatal(err)
	}
	rc, err := cfg.RunConfig(Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	if rc.Scrub.Plan.Percent != 25 || rc.Scrub.OlderThan != 3 {
		t.Errorf("Scrub = %+v", rc.Scrub)
	}
}

func TestLoad_LegacyYAML(t *testing.T) {
	content := `
snapraid:
  executable: /usr/bin/snapraid
  config: /etc/snapraid.conf
  deletethreshold: 40
  touch: true
logging:
  file: /var/log/snapraid.log
  maxsize: 5000
apprise:
  urls:
    - https://example.com/hook
  sendon: [success, error]
  attach-log: true
  short: true
scrub:
  enabled: true
  percentage: 12
  older-than: 10
`
	cfg, err := Load(writeTempConfig(t, "snapraid-runner.yml", content))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Logging.MaxSizeMB != 5 {
		t.Errorf("MaxSizeMB = %d, want 5", cfg.Logging.MaxSizeMB)
	}
	if len(cfg.Notifications.URLs) != 1 || !cfg.Notifications.Short {
		t.Errorf("Notifications = %+v", cfg.Notifications)
	}

	rc, err := cfg.RunConfig(Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	if rc.Scrub.Plan.Percent != 12 || rc.Scrub.OlderThan != 10 || !rc.Scrub.Enabled {
		t.Errorf("Scrub = %+v, want 12%% older than 10", rc.Scrub)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"threshold disabled", func(c *Config) { c.Snapraid.DeleteThreshold = -1 }, ""},
		{"threshold zero", func(c *Config) { c.Snapraid.DeleteThreshold = 0 }, ""},
		{"threshold below -1", func(c *Config) { c.Snapraid.DeleteThreshold = -2 }, "delete_threshold"},
		{"bad plan", func(c *Config) { c.Scrub.Plan = "most" }, "scrub.plan"},
		{"plan out of range", func(c *Config) { c.Scrub.Plan = int64(150) }, "scrub.plan"},
		{"negative age", func(c *Config) { c.Scrub.OlderThan = -1 }, "older_than"},
		{"unknown send_on", func(c *Config) { c.Notifications.SendOn = []string{"always"} }, "send_on"},
		{"bad cron", func(c *Config) { c.Schedule.Cron = "every day" }, "schedule.cron"},
		{"bad timeout", func(c *Config) { c.Snapraid.StepTimeout = "soon" }, "step_timeout"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"zero log size", func(c *Config) { c.Logging.MaxSizeMB = 0 }, "max_size_mb"},
		{"one MB log size", func(c *Config) { c.Logging.MaxSizeMB = 1 }, ""},
		{"no executable", func(c *Config) { c.Snapraid.Executable = "" }, "executable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_RejectsInvalidThreshold(t *testing.T) {
	_, err := Load(writeTempConfig(t, "config.toml", "[snapraid]\ndelete_threshold = -5\n"))
	if err == nil {
		t.Error("expected error for delete_threshold below -1")
	}
}

func TestRunConfig_Overrides(t *testing.T) {
	cfg := Default()
	cfg.Scrub.Enabled = true

	rc, err := cfg.RunConfig(Overrides{NoScrub: true, IgnoreDeleteThreshold: true})
	if err != nil {
		t.Fatal(err)
	}
	if rc.Scrub.Enabled {
		t.Error("--no-scrub should disable scrub")
	}
	if rc.DeleteThreshold != -1 {
		t.Errorf("DeleteThreshold = %d, want -1", rc.DeleteThreshold)
	}
	if cfg.Snapraid.DeleteThreshold != 40 {
		t.Error("overrides must not modify the loaded config")
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		input string
		want  string
	}{
		{"~/test", filepath.Join(home, "test")},
		{"/absolute/path", "/absolute/path"},
		{"relative", "relative"},
	}

	for _, tt := range tests {
		got := ExpandPath(tt.input)
		if got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
