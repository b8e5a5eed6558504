// init.go implements the "dbbench init" command.
package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/berth-dev/dbbench/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize dbbench in the current directory",
	Long: `Create the .dbbench/ directory with a default config.yaml and a
runs/ directory, and make sure run artifacts are gitignored.`,
	RunE: runInit,
}

var forceInitFlag bool

func init() {
	initCmd.Flags().BoolVar(&forceInitFlag, "force", false, "Overwrite an existing config without asking")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	stateDir := filepath.Join(dir, config.Dir)
	if info, statErr := os.Stat(stateDir); statErr == nil && info.IsDir() && !forceInitFlag {
		fmt.Printf("Warning: %s/ directory already exists.\n", config.Dir)
		fmt.Print("Reinitialize? [y/N]: ")
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Join(stateDir, "runs"), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", config.Dir, err)
	}

	cfg := config.DefaultConfig()
	if err := config.WriteConfig(dir, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	if err := ensureGitignore(dir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to set up .gitignore: %v\n", err)
	}

	fmt.Println()
	fmt.Println("dbbench initialized")
	fmt.Printf("Configuration written to %s/config.yaml\n", config.Dir)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  1. Point dataset at your task file (currently %s)\n", cfg.Dataset)
	fmt.Println("  2. Put API keys in .env (ANTHROPIC_API_KEY, OPENAI_API_KEY, GOOGLE_API_KEY or OLLAMA_HOST)")
	fmt.Println("  3. Run: dbbench run")
	return nil
}

// ensureGitignore appends the run artifacts and secrets to .gitignore when
// they are not already listed.
func ensureGitignore(dir string) error {
	gitignorePath := filepath.Join(dir, ".gitignore")

	requiredEntries := []string{
		".env",
		config.Dir + "/runs/",
		config.Dir + "/history.db",
	}

	existing := ""
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existing = string(data)
	}

	var missing []string
	for _, entry := range requiredEntries {
		if !strings.Contains(existing, entry) {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString(existing)
	if existing != "" && !strings.HasSuffix(existing, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("# dbbench\n")
	for _, entry := range missing {
		b.WriteString(entry + "\n")
	}
	return os.WriteFile(gitignorePath, []byte(b.String()), 0644)
}
