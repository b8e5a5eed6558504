// Package cli defines Cobra command definitions for the dbbench CLI.
// This file contains the root command, version flag, and shared flags.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/berth-dev/dbbench/internal/config"
	dblog "github.com/berth-dev/dbbench/internal/log"
)

var (
	verbose bool
	version = "dev" // set via ldflags at build time

	// vp layers DBBENCH_* environment variables and bound flags over the
	// config file.
	vp = config.NewViper()
)

var rootCmd = &cobra.Command{
	Use:   "dbbench",
	Short: "Evaluate agents on interactive SQL tasks",
	Long: `dbbench drives an agent through multi-round conversations with a SQL
database. Each sample gives the agent a table and a question or change
request; the agent answers by issuing SQL, giving a final answer, or quitting
within a fixed round budget.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Verbose returns true if --verbose flag is set.
func Verbose() bool {
	return verbose
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log every round and debug detail")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(mcpCmd)
}

// bindFlag exposes a command flag to config overrides under key.
func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := vp.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", flag, err))
	}
}

// loadConfig reads .dbbench/config.yaml with environment and flag overrides.
func loadConfig() (*config.Config, error) {
	return config.Load(".", vp)
}

// consoleLogger returns the stderr logger for a command.
func consoleLogger() *slog.Logger {
	return dblog.NewConsole(os.Stderr, verbose)
}

// requireInit fails when the project has not been initialized.
func requireInit() error {
	if _, err := os.Stat(config.Dir); os.IsNotExist(err) {
		return fmt.Errorf("%s/ not found. Run 'dbbench init' first", config.Dir)
	}
	return nil
}
