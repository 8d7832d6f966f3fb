package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "snapraid-orch",
		Short: "SnapRAID maintenance orchestrator",
		Long: `snapraid-orch runs scheduled SnapRAID maintenance: diff, a delete
threshold check, touch, sync and scrub. Every run ends with a report that is
logged, optionally stored in a history database and sent to the configured
notification targets.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// exitError carries the process exit code of a command. A nil err means
// the reason was already logged.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit code %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// configError marks err as a configuration problem
func configError(err error) error {
	return &exitError{code: 2, err: err}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	os.Exit(execute())
}

func execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(os.Stderr, ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(os.Stderr, err)
	return 1
}
