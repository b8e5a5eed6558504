// harness.go builds the collaborators shared by run, resume and mcp.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/berth-dev/dbbench/internal/agent"
	"github.com/berth-dev/dbbench/internal/config"
	"github.com/berth-dev/dbbench/internal/dataset"
	"github.com/berth-dev/dbbench/internal/session"
	"github.com/berth-dev/dbbench/internal/sqlexec"
	"github.com/berth-dev/dbbench/prompts"
)

type harness struct {
	cfg      *config.Config
	dataset  *dataset.Dataset
	agent    agent.Agent
	executor sqlexec.Executor
	store    *session.Store // nil when archiving is disabled
	preamble string
	logger   *slog.Logger
}

func runsDir() string {
	return filepath.Join(config.Dir, "runs")
}

// openHarness loads the dataset and opens the agent, executor and archive
// described by cfg. Close releases whatever was opened.
func openHarness(ctx context.Context, cfg *config.Config, logger *slog.Logger) (h *harness, err error) {
	h = &harness{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			h.Close()
			h = nil
		}
	}()

	if h.preamble, err = prompts.LoadPreamble(cfg.PreambleFile, prompts.PreambleData{
		MaxRound: cfg.MaxRound,
		Dialect:  sqlexec.DialectName(cfg.Executor.Driver),
	}); err != nil {
		return h, err
	}
	if h.dataset, err = dataset.Load(cfg.Dataset); err != nil {
		return h, fmt.Errorf("loading dataset: %w", err)
	}
	if h.agent, err = agent.New(ctx, cfg.Agent); err != nil {
		return h, fmt.Errorf("creating agent: %w", err)
	}

	execCfg := cfg.Executor
	if execCfg.Driver == sqlexec.DriverSQLite && execCfg.WorkDir == "" {
		execCfg.WorkDir = filepath.Join(config.Dir, "work")
	}
	if h.executor, err = sqlexec.Open(execCfg); err != nil {
		return h, fmt.Errorf("opening executor: %w", err)
	}

	if cfg.Store.Path != "" {
		if h.store, err = session.NewStore(cfg.Store.Path); err != nil {
			return h, fmt.Errorf("opening history store: %w", err)
		}
	}
	return h, nil
}

// concurrency caps parallelism for agents that cannot be shared.
func (h *harness) concurrency() int {
	if h.cfg.Agent.Provider == agent.ProviderScripted {
		return 1
	}
	return h.cfg.Runner.Concurrency
}

func (h *harness) Close() {
	if h.store != nil {
		if err := h.store.Close(); err != nil {
			h.logger.Warn("closing history store", "err", err)
		}
	}
	if h.executor != nil {
		if err := h.executor.Close(); err != nil {
			h.logger.Warn("closing executor", "err", err)
		}
	}
	if c, ok := h.agent.(io.Closer); ok {
		if err := c.Close(); err != nil {
			h.logger.Warn("closing agent", "err", err)
		}
	}
}
