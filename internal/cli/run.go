// run.go implements the "dbbench run" command, which evaluates the agent on
// the dataset and writes a report.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/berth-dev/dbbench/internal/cleanup"
	dblog "github.com/berth-dev/dbbench/internal/log"
	"github.com/berth-dev/dbbench/internal/report"
	"github.com/berth-dev/dbbench/internal/runner"
	"github.com/berth-dev/dbbench/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the benchmark",
	Long: `Run every sample of the configured dataset (or the ones selected with
--index) against the configured agent. Results, the event log and the report
are written to .dbbench/runs/<run-id>/. An interrupted run can be continued
with 'dbbench resume'.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var (
	indexFlag      []int
	noProgressFlag bool
)

func init() {
	f := runCmd.Flags()
	f.Int("max-round", 0, "Round budget per sample")
	f.String("dataset", "", "Dataset file (.jsonl, .json or .yaml)")
	f.String("provider", "", "Agent provider: anthropic, openai, ollama, gemini or scripted")
	f.String("model", "", "Agent model name")
	f.String("script", "", "Reply script for the scripted provider")
	f.String("driver", "", "SQL executor: sqlite or postgres")
	f.String("dsn", "", "Postgres connection string")
	f.Int("concurrency", 0, "Samples to run in parallel")
	f.IntSliceVar(&indexFlag, "index", nil, "Run only these sample indices (repeatable)")
	f.BoolVar(&noProgressFlag, "no-progress", false, "Disable the live progress display")

	for key, flag := range map[string]string{
		"max_round":          "max-round",
		"dataset":            "dataset",
		"agent.provider":     "provider",
		"agent.model":        "model",
		"agent.script_file":  "script",
		"executor.driver":    "driver",
		"executor.dsn":       "dsn",
		"runner.concurrency": "concurrency",
	} {
		bindFlag(runCmd, key, flag)
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	if err := requireInit(); err != nil {
		return err
	}
	runID := cleanup.NewRunID(time.Now())
	return executeRun(cmd.Context(), runID, indexFlag)
}

// executeRun runs (or resumes) the run runID inside .dbbench/runs/.
func executeRun(parent context.Context, runID string, indices []int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := consoleLogger()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := openHarness(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer h.Close()

	runDir := filepath.Join(runsDir(), runID)
	events, err := dblog.Open(runDir)
	if err != nil {
		return err
	}
	defer events.Close()

	opts := runner.Options{
		RunID:            runID,
		RunDir:           runDir,
		Dataset:          h.dataset,
		MaxRound:         cfg.MaxRound,
		Preamble:         h.preamble,
		Agent:            h.agent,
		Executor:         h.executor,
		Concurrency:      h.concurrency(),
		BreakerThreshold: cfg.Runner.BreakerThreshold,
		Events:           events,
		Logger:           logger,
		Store:            h.store,
	}

	total := len(indices)
	if total == 0 {
		total = h.dataset.Len()
	}
	var progress *ui.ProgressDisplay
	if !noProgressFlag && !verbose {
		progress = ui.NewProgressDisplay("dbbench "+runID, total)
		opts.Observer = progress
	}

	r, err := runner.New(opts)
	if err != nil {
		return err
	}
	logger.Info("starting run", "run", runID, "samples", total, "max_round", cfg.MaxRound,
		"provider", cfg.Agent.Provider, "concurrency", opts.Concurrency)

	rep, runErr := r.Run(ctx, indices)
	if progress != nil {
		progress.Finish()
	}

	switch {
	case errors.Is(runErr, context.Canceled):
		fmt.Printf("\nInterrupted. Continue with: dbbench resume %s\n", runID)
		return nil
	case errors.Is(runErr, runner.ErrBreakerTripped):
		fmt.Printf("\nStopped after repeated faults. Fix the cause, then: dbbench resume %s\n", runID)
	case runErr != nil:
		return runErr
	}

	if rep != nil {
		if err := report.Write(runDir, rep); err != nil {
			logger.Warn("writing report", "err", err)
		}
		fmt.Println()
		fmt.Print(report.Format(rep))
		fmt.Printf("Results: %s\n", runDir)
	}
	return runErr
}
