// mcp.go implements the "dbbench mcp" command.
package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/berth-dev/dbbench/internal/cleanup"
	"github.com/berth-dev/dbbench/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve benchmark tools over MCP (stdio)",
	Long: `Start a Model Context Protocol server on stdin/stdout exposing
list_tasks, get_task and run_sample. Samples run through the server are
archived in the history store under one run id per server session.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// stdout carries the protocol.
	logger := consoleLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := openHarness(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer h.Close()

	srv := mcpserver.New(mcpserver.Options{
		Dataset:  h.dataset,
		Agent:    h.agent,
		Executor: h.executor,
		MaxRound: cfg.MaxRound,
		Preamble: h.preamble,
		Version:  version,
		RunID:    "mcp-" + cleanup.NewRunID(time.Now()),
		Store:    h.store,
		Logger:   logger,
	})
	logger.Info("serving MCP on stdio", "tasks", h.dataset.Len())
	return srv.Run(ctx)
}
