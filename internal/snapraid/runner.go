// Package snapraid drives the external parity tool and interprets its output.
package snapraid

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hochfrequenz/snapraid-orch/internal/domain"
	"github.com/hochfrequenz/snapraid-orch/internal/logging"
)

// waitDelay bounds how long Run waits for output pipes after the process was killed
const waitDelay = 5 * time.Second

// Runner executes a single parity tool invocation
type Runner interface {
	Run(ctx context.Context, inv domain.Invocation) domain.StepOutcome
}

// Preflighter is implemented by runners that can verify their environment
// before the first step is attempted
type Preflighter interface {
	Preflight() error
}

// ExecRunner runs the parity tool as a child process
type ExecRunner struct {
	executable string
	confPath   string
	logger     *slog.Logger
}

// NewExecRunner creates a runner for the given executable and tool config file
func NewExecRunner(executable, confPath string, logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{
		executable: executable,
		confPath:   confPath,
		logger:     logger,
	}
}

// Argv returns the full argument vector for an invocation
func (r *ExecRunner) Argv(inv domain.Invocation) []string {
	argv := []string{r.executable, "--conf", r.confPath, string(inv.Step)}
	return append(argv, inv.Args...)
}

// Preflight checks that the executable and the tool config exist as regular files
func (r *ExecRunner) Preflight() error {
	exe := r.executable
	if !strings.ContainsRune(exe, os.PathSeparator) {
		resolved, err := exec.LookPath(exe)
		if err != nil {
			return fmt.Errorf("the configured snapraid executable %q does not exist or is not a file", r.executable)
		}
		exe = resolved
	}
	if !isFile(exe) {
		return fmt.Errorf("the configured snapraid executable %q does not exist or is not a file", r.executable)
	}
	if !isFile(r.confPath) {
		return fmt.Errorf("snapraid config does not exist at %s", r.confPath)
	}
	return nil
}

// Run spawns exactly one process and waits for it to exit.
// Output from stdout and stderr is merged into StepOutcome.Output.
func (r *ExecRunner) Run(ctx context.Context, inv domain.Invocation) domain.StepOutcome {
	start := time.Now()
	outcome := domain.StepOutcome{
		Step:      inv.Step,
		Args:      slices.Clone(inv.Args),
		StartedAt: start,
	}

	argv := r.Argv(inv)
	r.logger.Debug("spawning", "step", inv.Step, "argv", strings.Join(argv, " "))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.WaitDelay = waitDelay

	var combined lockedBuffer
	stdout := newLineLogger(&combined, r.logger, logging.LevelOutput)
	stderr := newLineLogger(&combined, r.logger, logging.LevelOutErr)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	// Run covers Start and Wait, so the child is always reaped once started
	err := cmd.Run()
	stdout.Flush()
	stderr.Flush()

	outcome.Duration = time.Since(start)
	outcome.Output = combined.String()

	switch {
	case ctx.Err() != nil:
		outcome.Status = domain.ExitProcessError
		outcome.ExitCode = -1
		outcome.Err = fmt.Sprintf("%s interrupted: %v", inv.Step, ctx.Err())
	case err == nil:
		outcome.Status = domain.ExitOK
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			outcome.ExitCode = exitErr.ExitCode()
			if slices.Contains(inv.AllowCodes, outcome.ExitCode) {
				outcome.Status = domain.ExitOK
			} else {
				outcome.Status = domain.ExitNonzero
				outcome.Err = fmt.Sprintf("snapraid %s returned exit code %d", inv.Step, outcome.ExitCode)
			}
		} else {
			outcome.Status = domain.ExitProcessError
			outcome.ExitCode = -1
			outcome.Err = err.Error()
		}
	}

	return outcome
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// lockedBuffer is shared by the stdout and stderr copiers
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// lineLogger tees process output into the combined buffer and logs each
// complete line at a fixed level
type lineLogger struct {
	sink    *lockedBuffer
	logger  *slog.Logger
	level   slog.Level
	pending []byte
}

func newLineLogger(sink *lockedBuffer, logger *slog.Logger, level slog.Level) *lineLogger {
	return &lineLogger{sink: sink, logger: logger, level: level}
}

func (l *lineLogger) Write(p []byte) (int, error) {
	if _, err := l.sink.Write(p); err != nil {
		return 0, err
	}
	l.pending = append(l.pending, p...)
	for {
		i := bytes.IndexByte(l.pending, '\n')
		if i < 0 {
			break
		}
		l.emit(l.pending[:i])
		l.pending = l.pending[i+1:]
	}
	return len(p), nil
}

// Flush logs a trailing line that was not newline terminated
func (l *lineLogger) Flush() {
	if len(l.pending) > 0 {
		l.emit(l.pending)
		l.pending = nil
	}
}

func (l *lineLogger) emit(line []byte) {
	l.logger.Log(context.Background(), l.level, strings.TrimRight(string(line), "\r"))
}
