package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/bep/helpers/envhelpers"
	"github.com/rogpeppe/go-internal/testscript"
)

func TestScripts(t *testing.T) {
	params := commonTestScriptsParam
	params.Dir = filepath.Join("testdata", "scripts")
	// params.TestWork = true
	testscript.Run(t, params)
}

func TestMain(m *testing.M) {
	testscript.Main(m, map[string]func(){
		"snapraid-orch": main,
		"snapraid":      fakeSnapraid,
	})
}

func TestExecute_ExplicitMissingConfigExitsWithTwo(t *testing.T) {
	t.Cleanup(func() {
		configPath = ""
		rootCmd.SetArgs(nil)
	})

	rootCmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "snapraid-orch.tmol"), "check-config"})
	if code := execute(); code != 2 {
		t.Errorf("execute() = %d, want 2", code)
	}
}

var commonTestScriptsParam = testscript.Params{
	Setup: func(env *testscript.Env) error {
		envhelpers.SetEnvVars(&env.Vars,
			"FAKE_CALLS", filepath.Join(env.WorkDir, "calls.txt"),
		)
		return nil
	},
}

// fakeSnapraid stands in for the parity tool. It records every call in
// $FAKE_CALLS and behaves according to FAKE_* variables:
//
//	FAKE_DIFF_ADDED, FAKE_DIFF_REMOVED  counters printed by diff
//	FAKE_<STEP>_EXIT                    exit code of diff, touch, sync or scrub
func fakeSnapraid() {
	args := os.Args[1:]
	if len(args) < 3 || args[0] != "--conf" {
		fmt.Fprintln(os.Stderr, "usage: snapraid --conf FILE COMMAND [OPTIONS]")
		os.Exit(1)
	}
	step, rest := args[2], args[3:]

	if path := os.Getenv("FAKE_CALLS"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintln(f, strings.TrimSpace(step+" "+strings.Join(rest, " ")))
			f.Close()
		}
	}

	code := envInt("FAKE_"+strings.ToUpper(step)+"_EXIT", 0)

	switch step {
	case "diff":
		added := envInt("FAKE_DIFF_ADDED", 0)
		removed := envInt("FAKE_DIFF_REMOVED", 0)
		fmt.Println("Loading state from snapraid.content...")
		fmt.Println("Comparing...")
		fmt.Println()
		fmt.Printf("%8d equal\n", 1000)
		fmt.Printf("%8d added\n", added)
		fmt.Printf("%8d removed\n", removed)
		fmt.Printf("%8d updated\n", 0)
		fmt.Printf("%8d moved\n", 0)
		fmt.Printf("%8d copied\n", 0)
		fmt.Printf("%8d restored\n", 0)
		if code == 0 && added+removed > 0 {
			code = 2
		}
	case "touch", "sync", "scrub":
		fmt.Printf("%s in progress...\n", step)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", step)
		os.Exit(1)
	}

	if code != 0 && code != 2 {
		fmt.Fprintf(os.Stderr, "%s failed\n", step)
	}
	os.Exit(code)
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}
