// Package logging configures the slog handlers used for console output,
// the size-capped rotating log file and the per-run notification attachment.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Parity tool output is logged between DEBUG and INFO (stdout) and between
// INFO and WARN (stderr), so "short" sinks at INFO skip stdout chatter.
const (
	LevelOutput = slog.Level(-2)
	LevelOutErr = slog.Level(2)
)

// DefaultMaxBackups matches the number of rotated files kept next to the log
const DefaultMaxBackups = 9

// DefaultMaxSizeMB is used when no size cap is given. lumberjack would
// otherwise fall back to 100 MB.
const DefaultMaxSizeMB = 5

// Options configures the process-wide log sinks
type Options struct {
	Console    io.Writer
	Level      slog.Level
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Logs owns the configured sinks
type Logs struct {
	Logger  *slog.Logger
	closers []io.Closer
}

// New builds a logger writing to the console and, if configured, to a
// rotating log file capped at MaxSizeMB.
func New(opts Options) (*Logs, error) {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	handlers := []slog.Handler{newHandler(console, opts.Level)}
	var closers []io.Closer

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, fmt.Errorf("creating log dir: %w", err)
		}
		size := opts.MaxSizeMB
		if size <= 0 {
			size = DefaultMaxSizeMB
		}
		backups := opts.MaxBackups
		if backups <= 0 {
			backups = DefaultMaxBackups
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    size,
			MaxBackups: backups,
		}
		handlers = append(handlers, newHandler(rotator, opts.Level))
		closers = append(closers, rotator)
	}

	return &Logs{
		Logger:  slog.New(slogmulti.Fanout(handlers...)),
		closers: closers,
	}, nil
}

// Close flushes and closes the file sinks
func (l *Logs) Close() error {
	var firstErr error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RunLog captures the log lines of a single run into a file that can be
// attached to a notification.
type RunLog struct {
	path string
	file *os.File
	h    slog.Handler
}

// NewRunLog creates a fresh attachment file in dir. With short set, tool
// output is left out of the attachment.
func NewRunLog(dir string, short bool) (*RunLog, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	name := fmt.Sprintf("snapraid-orch_%s_*.log", time.Now().Format("2006-01-02"))
	f, err := os.CreateTemp(dir, name)
	if err != nil {
		return nil, fmt.Errorf("creating run log: %w", err)
	}
	level := LevelOutput
	if short {
		level = slog.LevelInfo
	}
	return &RunLog{path: f.Name(), file: f, h: newHandler(f, level)}, nil
}

// Path returns the attachment file path
func (r *RunLog) Path() string { return r.path }

// Attach returns a logger that writes to base and to the run log
func (r *RunLog) Attach(base *slog.Logger) *slog.Logger {
	return slog.New(slogmulti.Fanout(base.Handler(), r.h))
}

// Remove closes and deletes the attachment file
func (r *RunLog) Remove() error {
	r.file.Close()
	return os.Remove(r.path)
}

// ParseLevel accepts debug, output, info, outerr, warn and error
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "output":
		return LevelOutput, nil
	case "info":
		return slog.LevelInfo, nil
	case "outerr":
		return LevelOutErr, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

func newHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	})
}

func replaceLevelNames(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	switch a.Value.Any() {
	case LevelOutput:
		return slog.String(slog.LevelKey, "OUTPUT")
	case LevelOutErr:
		return slog.String(slog.LevelKey, "OUTERR")
	}
	return a
}
