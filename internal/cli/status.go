// status.go implements the "dbbench status" command showing run progress.
package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/berth-dev/dbbench/internal/bench"
	"github.com/berth-dev/dbbench/internal/dataset"
	"github.com/berth-dev/dbbench/internal/runner"
)

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show run progress",
	Long: `Display how far the current or most recent run got: samples finished,
how many were correct, and the outcome counts so far.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	runID, err := resolveRunID(args)
	if err != nil {
		return err
	}
	runDir := filepath.Join(runsDir(), runID)

	outs, err := runner.ReadResults(runDir)
	if err != nil {
		return err
	}
	cp, err := runner.LoadCheckpoint(runDir)
	if err != nil {
		return err
	}

	total := len(outs)
	state := "complete"
	if cp != nil {
		state = "in progress"
		total = len(cp.Indices)
		if total == 0 {
			total = datasetSize()
		}
	}

	tally := runner.NewTally(total)
	for _, o := range outs {
		tally.Record(o)
	}

	fmt.Println("dbbench Status")
	fmt.Printf("Run:   %s (%s)\n", runID, state)
	fmt.Println()
	for _, s := range bench.Statuses {
		if n := tally.Count(s); n > 0 {
			fmt.Printf("  %-24s %d\n", s, n)
		}
	}
	fmt.Println()
	fmt.Printf("Progress: %s samples finished, %d correct\n", tally.Progress(), tally.Correct())
	if cp != nil && cp.LastError != "" {
		fmt.Printf("Last error: %s\n", cp.LastError)
	}
	return nil
}

// datasetSize returns the configured dataset's length, or 0 when it cannot
// be loaded.
func datasetSize() int {
	cfg, err := loadConfig()
	if err != nil {
		return 0
	}
	ds, err := dataset.Load(cfg.Dataset)
	if err != nil {
		return 0
	}
	return ds.Len()
}
