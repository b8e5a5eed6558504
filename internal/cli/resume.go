// resume.go implements the "dbbench resume" command for interrupted runs.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/berth-dev/dbbench/internal/cleanup"
	"github.com/berth-dev/dbbench/internal/runner"
)

var resumeCmd = &cobra.Command{
	Use:   "resume [run-id]",
	Short: "Resume an interrupted run",
	Long: `Resume a run that was interrupted or stopped by the circuit breaker.
Defaults to the most recent run. Samples already finished are not rerun;
the run keeps its original sample selection and round budget.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResume,
}

func runResume(cmd *cobra.Command, args []string) error {
	if err := requireInit(); err != nil {
		return err
	}

	runID, err := resolveRunID(args)
	if err != nil {
		return err
	}
	runDir := filepath.Join(runsDir(), runID)

	cp, err := runner.LoadCheckpoint(runDir)
	if err != nil {
		return err
	}
	if cp == nil {
		return fmt.Errorf("run %s has no checkpoint; it either finished or never started a sample", runID)
	}
	fmt.Printf("Resuming run %s (%d samples done)\n", runID, len(cp.Done))
	if cp.LastError != "" {
		fmt.Printf("  Last error: %s\n", cp.LastError)
	}

	return executeRun(cmd.Context(), runID, cp.Indices)
}

// resolveRunID returns the run named in args, or the latest run.
func resolveRunID(args []string) (string, error) {
	if len(args) > 0 {
		if _, err := os.Stat(filepath.Join(runsDir(), args[0])); err != nil {
			return "", fmt.Errorf("run %s not found", args[0])
		}
		return args[0], nil
	}
	latest, err := cleanup.Latest(runsDir())
	if err != nil {
		return "", err
	}
	if latest == "" {
		return "", fmt.Errorf("no runs found. Start one with: dbbench run")
	}
	return latest, nil
}
