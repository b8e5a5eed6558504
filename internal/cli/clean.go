// clean.go implements "dbbench clean", which prunes run directories and
// optionally their archived history.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/berth-dev/dbbench/internal/cleanup"
	"github.com/berth-dev/dbbench/internal/config"
	"github.com/berth-dev/dbbench/internal/session"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove old run directories",
	Long: `Remove run directories under .dbbench/runs/.

Runs older than cleanup.max_age_days are removed unless --keep N is given,
in which case only the N newest runs survive. Results archived in the
history store stay unless --purge-history is set.`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

var (
	keepFlag         int
	dryRunFlag       bool
	purgeHistoryFlag bool
)

func init() {
	cleanCmd.Flags().IntVar(&keepFlag, "keep", 0, "Keep only the N newest runs instead of pruning by age")
	cleanCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "List the runs that would be removed")
	cleanCmd.Flags().BoolVar(&purgeHistoryFlag, "purge-history", false, "Also delete the removed runs from the history store")
}

func runClean(cmd *cobra.Command, args []string) error {
	if err := requireInit(); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pruned, err := pruneRuns(cfg)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	if len(pruned) == 0 {
		fmt.Println("No runs to clean up.")
		return nil
	}

	verb := "Removed"
	if dryRunFlag {
		verb = "Would remove"
	}
	for _, id := range pruned {
		fmt.Printf("  %s %s\n", verb, id)
	}
	fmt.Printf("%s %d run(s).\n", verb, len(pruned))

	if !purgeHistoryFlag || dryRunFlag {
		return nil
	}
	return purgeHistory(cfg, pruned)
}

func pruneRuns(cfg *config.Config) ([]string, error) {
	if keepFlag > 0 {
		return cleanup.PruneKeepRecent(runsDir(), keepFlag, dryRunFlag)
	}
	maxAge := cfg.Cleanup.MaxAgeDays
	if maxAge <= 0 {
		maxAge = config.DefaultConfig().Cleanup.MaxAgeDays
	}
	return cleanup.PruneByAge(runsDir(), maxAge, dryRunFlag)
}

func purgeHistory(cfg *config.Config, runIDs []string) error {
	store, err := session.NewStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	total := 0
	for _, id := range runIDs {
		n, err := store.DeleteRun(id)
		if err != nil {
			return fmt.Errorf("purging history of %s: %w", id, err)
		}
		total += n
	}
	fmt.Printf("Deleted %d archived result(s).\n", total)
	return nil
}
