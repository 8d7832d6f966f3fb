package snapraid

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hochfrequenz/snapraid-orch/internal/domain"
)

// writeScript creates an executable shell script standing in for the parity tool
func writeScript(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "snapraid")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeConf(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapraid.conf")
	if err := os.WriteFile(path, []byte("parity /mnt/parity/snapraid.parity\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExecRunner_Argv(t *testing.T) {
	r := NewExecRunner("/usr/bin/snapraid", "/etc/snapraid.conf", nil)
	got := r.Argv(domain.Invocation{Step: domain.StepScrub, Args: []string{"--plan", "12", "--older-than", "10"}})
	want := []string{"/usr/bin/snapraid", "--conf", "/etc/snapraid.conf", "scrub", "--plan", "12", "--older-than", "10"}

	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("Argv = %v, want %v", got, want)
	}
}

func TestExecRunner_RunOK(t *testing.T) {
	exe := writeScript(t, `echo "args: $@"; echo "to stderr" >&2`)
	r := NewExecRunner(exe, "/etc/snapraid.conf", nil)

	out := r.Run(context.Background(), domain.Invocation{Step: domain.StepSync})

	if out.Status != domain.ExitOK {
		t.Fatalf("Status = %s, want ok (err=%s)", out.Status, out.Err)
	}
	if !strings.Contains(out.Output, "args: --conf /etc/snapraid.conf sync") {
		t.Errorf("Output missing argv echo: %q", out.Output)
	}
	if !strings.Contains(out.Output, "to stderr") {
		t.Errorf("Output should merge stderr: %q", out.Output)
	}
	if out.Step != domain.StepSync {
		t.Errorf("Step = %s, want sync", out.Step)
	}
	if out.StartedAt.IsZero() {
		t.Error("StartedAt should be set")
	}
}

func TestExecRunner_RunNonzero(t *testing.T) {
	exe := writeScript(t, `echo "errors found"; exit 1`)
	r := NewExecRunner(exe, "/etc/snapraid.conf", nil)

	out := r.Run(context.Background(), domain.Invocation{Step: domain.StepScrub})

	if out.Status != domain.ExitNonzero {
		t.Fatalf("Status = %s, want nonzero", out.Status)
	}
	if out.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", out.ExitCode)
	}
	if !strings.Contains(out.Output, "errors found") {
		t.Errorf("Output = %q, want captured text", out.Output)
	}
}

func TestExecRunner_AllowCodes(t *testing.T) {
	exe := writeScript(t, `echo "       1 removed"; exit 2`)
	r := NewExecRunner(exe, "/etc/snapraid.conf", nil)

	out := r.Run(context.Background(), domain.Invocation{Step: domain.StepDiff, AllowCodes: []int{2}})

	if out.Status != domain.ExitOK {
		t.Errorf("Status = %s, want ok for allowed exit code", out.Status)
	}
	if out.ExitCode != 2 {
		t.Errorf("ExitCode = %d, want 2", out.ExitCode)
	}
}

func TestExecRunner_ProcessError(t *testing.T) {
	r := NewExecRunner(filepath.Join(t.TempDir(), "missing"), "/etc/snapraid.conf", nil)

	out := r.Run(context.Background(), domain.Invocation{Step: domain.StepDiff})

	if out.Status != domain.ExitProcessError {
		t.Fatalf("Status = %s, want process-error", out.Status)
	}
	if out.Err == "" {
		t.Error("Err should describe the spawn failure")
	}
}

func TestExecRunner_ContextTimeout(t *testing.T) {
	exe := writeScript(t, `exec sleep 5`)
	r := NewExecRunner(exe, "/etc/snapraid.conf", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	out := r.Run(ctx, domain.Invocation{Step: domain.StepSync})

	if out.Status != domain.ExitProcessError {
		t.Errorf("Status = %s, want process-error", out.Status)
	}
	if time.Since(start) > 4*time.Second {
		t.Error("Run should return once the context expires")
	}
}

func TestExecRunner_Preflight(t *testing.T) {
	exe := writeScript(t, `exit 0`)
	conf := writeConf(t)

	if err := NewExecRunner(exe, conf, nil).Preflight(); err != nil {
		t.Errorf("Preflight() = %v, want nil", err)
	}

	if err := NewExecRunner(filepath.Join(t.TempDir(), "nope"), conf, nil).Preflight(); err == nil {
		t.Error("Preflight should fail for a missing executable")
	}

	if err := NewExecRunner(exe, filepath.Join(t.TempDir(), "nope.conf"), nil).Preflight(); err == nil {
		t.Error("Preflight should fail for a missing config")
	}

	if err := NewExecRunner(exe, t.TempDir(), nil).Preflight(); err == nil {
		t.Error("Preflight should fail when the config is a directory")
	}
}

func TestExecRunner_PreflightLooksUpPath(t *testing.T) {
	exe := writeScript(t, `exit 0`)
	t.Setenv("PATH", filepath.Dir(exe))

	if err := NewExecRunner("snapraid", writeConf(t), nil).Preflight(); err != nil {
		t.Errorf("Preflight() = %v, want executable resolved from PATH", err)
	}
}
