// history.go implements the "dbbench history" command over the result archive.
package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/berth-dev/dbbench/internal/session"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Browse archived results",
	Long: `Without arguments, list archived runs. With a run id, list that run's
samples. Use --show <result-id> to print one sample's full conversation.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

var (
	historyLimitFlag int
	historyShowFlag  string
)

func init() {
	historyCmd.Flags().IntVar(&historyLimitFlag, "limit", 20, "Maximum rows to list")
	historyCmd.Flags().StringVar(&historyShowFlag, "show", "", "Print the conversation of one archived result")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Store.Path == "" {
		return fmt.Errorf("history is disabled (store.path is empty)")
	}
	if _, err := os.Stat(cfg.Store.Path); os.IsNotExist(err) {
		fmt.Println("No history yet. Start a run with: dbbench run")
		return nil
	}

	store, err := session.NewStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	switch {
	case historyShowFlag != "":
		return showResult(store, historyShowFlag)
	case len(args) == 1:
		return listResults(store, args[0])
	default:
		return listRuns(store)
	}
}

func listRuns(store *session.Store) error {
	runs, err := store.ListRuns(historyLimitFlag)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No archived runs.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSAMPLES\tCORRECT\tUPDATED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", r.RunID, r.Samples, r.Correct, r.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func listResults(store *session.Store, runID string) error {
	recs, err := store.ListResults(runID, historyLimitFlag)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Printf("No archived results for run %s.\n", runID)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tINDEX\tTYPE\tSTATUS\tCORRECT\tROUNDS")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%t\t%d\n", r.ID, r.Index, r.Type, r.Status, r.Correct, r.Rounds)
	}
	return w.Flush()
}

func showResult(store *session.Store, id string) error {
	rec, turns, err := store.GetResult(id)
	if errors.Is(err, session.ErrNotFound) {
		return fmt.Errorf("no archived result %s", id)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Result %s (run %s, sample %d)\n", rec.ID, rec.RunID, rec.Index)
	fmt.Printf("  Type:     %s\n", rec.Type)
	fmt.Printf("  Status:   %s\n", rec.Status)
	fmt.Printf("  Rounds:   %d\n", rec.Rounds)
	fmt.Printf("  Answer:   %s\n", rec.Answer)
	fmt.Printf("  Expected: %s\n", strings.Join(rec.CorrectAnswer, ", "))
	fmt.Printf("  Correct:  %t\n", rec.Correct)
	if rec.Error != "" {
		fmt.Printf("  Error:    %s\n", rec.Error)
	}
	fmt.Println()
	for i, t := range turns {
		fmt.Printf("--- %d %s ---\n%s\n\n", i, t.Role, t.Content)
	}
	return nil
}
