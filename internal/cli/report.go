// report.go implements the "dbbench report" command for run summaries.
package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	dblog "github.com/berth-dev/dbbench/internal/log"
	"github.com/berth-dev/dbbench/internal/report"
	"github.com/berth-dev/dbbench/internal/runner"
)

var reportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "Show run results",
	Long: `Display the summary of a run: accuracy, mean reward and how many
samples ended in each status. Defaults to the most recent run. A run that
never wrote overall.json is summarized from its per-sample results.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	runID, err := resolveRunID(args)
	if err != nil {
		return err
	}
	runDir := filepath.Join(runsDir(), runID)

	rep, err := report.ReadJSON(runDir)
	if err != nil {
		rep, err = rebuildReport(runID, runDir)
		if err != nil {
			return fmt.Errorf("failed to generate report: %w", err)
		}
	}

	fmt.Print(report.Format(rep))
	return nil
}

// rebuildReport aggregates the results of an interrupted run.
func rebuildReport(runID, runDir string) (*report.Report, error) {
	outs, err := runner.ReadResults(runDir)
	if err != nil {
		return nil, err
	}
	if len(outs) == 0 {
		return nil, fmt.Errorf("run %s has no results yet", runID)
	}

	maxRound := 0
	if cp, err := runner.LoadCheckpoint(runDir); err == nil && cp != nil {
		maxRound = cp.MaxRound
	}
	if maxRound == 0 {
		if cfg, err := loadConfig(); err == nil {
			maxRound = cfg.MaxRound
		}
	}

	rep := report.Generate(runID, outs, maxRound)
	if events, err := dblog.ReadEvents(runDir); err == nil {
		report.FillDuration(rep, events)
	}
	if err := report.Write(runDir, rep); err != nil {
		return rep, err
	}
	return rep, nil
}
