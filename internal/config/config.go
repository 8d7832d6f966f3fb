package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/hochfrequenz/snapraid-orch/internal/domain"
	"github.com/hochfrequenz/snapraid-orch/internal/logging"
	"github.com/hochfrequenz/snapraid-orch/internal/schedule"
)

// Config holds all application configuration
type Config struct {
	Snapraid      SnapraidConfig      `toml:"snapraid" yaml:"snapraid"`
	Scrub         ScrubConfig         `toml:"scrub" yaml:"scrub"`
	Logging       LoggingConfig       `toml:"logging" yaml:"logging"`
	Notifications NotificationsConfig `toml:"notifications" yaml:"notifications"`
	Schedule      ScheduleConfig      `toml:"schedule" yaml:"schedule"`
	History       HistoryConfig       `toml:"history" yaml:"history"`

	// Apprise is the section name used by older YAML configs
	Apprise *NotificationsConfig `toml:"-" yaml:"apprise"`
}

// SnapraidConfig holds the parity tool settings
type SnapraidConfig struct {
	Executable      string `toml:"executable" yaml:"executable"`
	Config          string `toml:"config" yaml:"config"`
	DeleteThreshold int    `toml:"delete_threshold" yaml:"deletethreshold"`
	Touch           bool   `toml:"touch" yaml:"touch"`
	SkipUnchanged   bool   `toml:"skip_unchanged" yaml:"skip-unchanged"`
	StepTimeout     string `toml:"step_timeout" yaml:"step-timeout"`
}

// ScrubConfig holds scrub settings. Plan is a percentage or one of bad, new, full.
type ScrubConfig struct {
	Enabled   bool `toml:"enabled" yaml:"enabled"`
	Plan      any  `toml:"plan" yaml:"plan"`
	OlderThan int  `toml:"older_than" yaml:"older-than"`

	// Percentage is the pre-plan spelling of a percentage plan
	Percentage any `toml:"percentage" yaml:"percentage"`
}

// LoggingConfig holds log file settings
type LoggingConfig struct {
	File       string `toml:"file" yaml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max-size-mb"`
	MaxBackups int    `toml:"max_backups" yaml:"max-backups"`
	Level      string `toml:"level" yaml:"level"`

	// MaxSizeKB is the kilobyte limit used by older YAML configs
	MaxSizeKB int `toml:"-" yaml:"maxsize"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	URLs      []string `toml:"urls" yaml:"urls"`
	SendOn    []string `toml:"send_on" yaml:"sendon"`
	AttachLog bool     `toml:"attach_log" yaml:"attach-log"`
	Short     bool     `toml:"short" yaml:"short"`
}

// ScheduleConfig holds daemon mode settings
type ScheduleConfig struct {
	Cron string `toml:"cron" yaml:"cron"`
}

// HistoryConfig holds run history settings. An empty path disables history.
type HistoryConfig struct {
	DatabasePath string `toml:"database_path" yaml:"database-path"`
}

// Overrides are command line switches applied on top of the file
type Overrides struct {
	NoScrub               bool
	IgnoreDeleteThreshold bool
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Snapraid: SnapraidConfig{
			Executable:      "snapraid",
			Config:          "/etc/snapraid.conf",
			DeleteThreshold: 40,
		},
		Scrub: ScrubConfig{
			Enabled:   false,
			Plan:      12,
			OlderThan: 10,
		},
		Logging: LoggingConfig{
			MaxSizeMB:  logging.DefaultMaxSizeMB,
			MaxBackups: logging.DefaultMaxBackups,
			Level:      "output",
		},
		Notifications: NotificationsConfig{
			SendOn: []string{"error"},
		},
		Schedule: ScheduleConfig{
			Cron: "0 3 * * *",
		},
	}
}

// Load reads configuration from a TOML or YAML file. The file must exist;
// the result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", path)
		}
		return nil, err
	}

	if err := Decode(data, filepath.Ext(path), cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.migrate()

	// Expand paths
	cfg.Snapraid.Executable = ExpandPath(cfg.Snapraid.Executable)
	cfg.Snapraid.Config = ExpandPath(cfg.Snapraid.Config)
	cfg.Logging.File = ExpandPath(cfg.Logging.File)
	cfg.History.DatabasePath = ExpandPath(cfg.History.DatabasePath)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadOrDefault is like Load but returns the defaults if the file does not
// exist. It is meant for the implicit default location only.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Decode unmarshals data into cfg, choosing YAML for .yml/.yaml and TOML otherwise
func Decode(data []byte, ext string, cfg *Config) error {
	switch strings.ToLower(ext) {
	case ".yml", ".yaml":
		return yaml.Unmarshal(data, cfg)
	default:
		return toml.Unmarshal(data, cfg)
	}
}

// migrate folds legacy keys into their current spelling
func (c *Config) migrate() {
	if c.Scrub.Percentage != nil {
		c.Scrub.Plan = c.Scrub.Percentage
		c.Scrub.Percentage = nil
	}
	if c.Logging.MaxSizeKB > 0 {
		c.Logging.MaxSizeMB = int(math.Ceil(float64(c.Logging.MaxSizeKB) / 1024))
		c.Logging.MaxSizeKB = 0
	}
	if c.Apprise != nil {
		c.Notifications = *c.Apprise
		c.Apprise = nil
	}
}

// Validate checks the settings a run depends on
func (c *Config) Validate() error {
	var errs []error

	if c.Snapraid.Executable == "" {
		errs = append(errs, errors.New("snapraid.executable is required"))
	}
	if c.Snapraid.Config == "" {
		errs = append(errs, errors.New("snapraid.config is required"))
	}
	if c.Snapraid.DeleteThreshold < -1 {
		errs = append(errs, fmt.Errorf("snapraid.delete_threshold %d is invalid (use -1 to disable)", c.Snapraid.DeleteThreshold))
	}
	if _, err := c.stepTimeout(); err != nil {
		errs = append(errs, err)
	}

	if _, err := domain.ParseScrubPlan(c.Scrub.Plan); err != nil {
		errs = append(errs, fmt.Errorf("scrub.plan: %w", err))
	}
	if c.Scrub.OlderThan < 0 {
		errs = append(errs, fmt.Errorf("scrub.older_than %d must not be negative", c.Scrub.OlderThan))
	}

	if c.Logging.MaxSizeMB < 1 {
		errs = append(errs, fmt.Errorf("logging.max_size_mb %d must be at least 1", c.Logging.MaxSizeMB))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}

	for _, s := range c.Notifications.SendOn {
		if _, ok := domain.ParseRunStatus(strings.TrimSpace(s)); !ok {
			errs = append(errs, fmt.Errorf("notifications.send_on: unknown status %q", s))
		}
	}

	if c.Schedule.Cron != "" {
		if _, err := schedule.ParseCron(c.Schedule.Cron); err != nil {
			errs = append(errs, fmt.Errorf("schedule.cron: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) stepTimeout() (time.Duration, error) {
	if c.Snapraid.StepTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Snapraid.StepTimeout)
	if err != nil {
		return 0, fmt.Errorf("snapraid.step_timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("snapraid.step_timeout %s must not be negative", d)
	}
	return d, nil
}

// RunConfig builds the immutable settings for one run
func (c *Config) RunConfig(o Overrides) (domain.RunConfig, error) {
	plan, err := domain.ParseScrubPlan(c.Scrub.Plan)
	if err != nil {
		return domain.RunConfig{}, fmt.Errorf("scrub.plan: %w", err)
	}
	timeout, err := c.stepTimeout()
	if err != nil {
		return domain.RunConfig{}, err
	}

	rc := domain.RunConfig{
		Executable:      c.Snapraid.Executable,
		ConfigPath:      c.Snapraid.Config,
		DeleteThreshold: c.Snapraid.DeleteThreshold,
		Touch:           c.Snapraid.Touch,
		SkipUnchanged:   c.Snapraid.SkipUnchanged,
		Scrub: domain.ScrubConfig{
			Enabled:   c.Scrub.Enabled,
			Plan:      plan,
			OlderThan: c.Scrub.OlderThan,
		},
		StepTimeout: timeout,
	}

	if o.NoScrub {
		rc.Scrub.Enabled = false
	}
	if o.IgnoreDeleteThreshold {
		rc.DeleteThreshold = -1
	}

	return rc, nil
}

// LogLevel returns the configured console and file log level
func (c *Config) LogLevel() slog.Level {
	lvl, _ := logging.ParseLevel(c.Logging.Level)
	return lvl
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "snapraid-orch", "config.toml")
}
