// Package testutil provides test helper utilities for dbbench tests.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// TempProject creates a temporary directory with the given files and returns its path.
// Files is a map of relative path -> content. Directories are created as needed.
// The directory is automatically cleaned up when the test finishes.
func TempProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	for relPath, content := range files {
		absPath := filepath.Join(dir, relPath)
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			t.Fatalf("creating directory for %s: %v", relPath, err)
		}
		if err := os.WriteFile(absPath, []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", relPath, err)
		}
	}

	return dir
}

// PeopleTable is a small table in dataset form.
func PeopleTable() map[string]any {
	return map[string]any{
		"table_name": "people",
		"table_info": map[string]any{
			"columns": []map[string]string{
				{"name": "name", "type": "TEXT"},
				{"name": "age", "type": "INT"},
			},
			"rows": [][]any{{"ann", 30}, {"bob", 25}},
		},
	}
}

// SelectTask returns a read task over PeopleTable.
func SelectTask(description string, label ...any) map[string]any {
	return map[string]any{
		"description":     description,
		"add_description": "The table is people.",
		"table":           PeopleTable(),
		"type":            []string{"SELECT"},
		"label":           label,
	}
}

// DatasetJSONL encodes tasks one per line.
func DatasetJSONL(t *testing.T, tasks ...map[string]any) string {
	t.Helper()
	var b strings.Builder
	for _, task := range tasks {
		line, err := json.Marshal(task)
		if err != nil {
			t.Fatalf("encoding task: %v", err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// Script encodes agent replies in the scripted provider's file format.
func Script(t *testing.T, replies ...string) string {
	t.Helper()
	data, err := yaml.Marshal(replies)
	if err != nil {
		t.Fatalf("encoding script: %v", err)
	}
	return string(data)
}

// Operation is an agent reply that runs sql.
func Operation(sql string) string {
	return "Action: Operation\n```sql\n" + sql + "\n```"
}

// Answer is an agent reply that gives a final answer.
func Answer(list string) string {
	return "Action: Answer\nFinal Answer: " + list
}

// ScriptedProject returns the files of an initialized project that runs
// dataset with the scripted agent replying script.
func ScriptedProject(dataset, script string) map[string]string {
	return map[string]string{
		".dbbench/config.yaml": `version: 1
max_round: 5
dataset: tasks.jsonl
agent:
  provider: scripted
  script_file: script.yaml
executor:
  driver: sqlite
runner:
  concurrency: 1
  breaker_threshold: 3
store:
  path: .dbbench/history.db
cleanup:
  max_age_days: 30
`,
		".dbbench/runs/.keep": "",
		"tasks.jsonl":         dataset,
		"script.yaml":         script,
	}
}
