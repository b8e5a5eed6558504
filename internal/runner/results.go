package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/berth-dev/dbbench/internal/bench"
)

// ResultsDir is the per-sample output directory inside a run directory.
const ResultsDir = "results"

// WriteResult writes out to results/<index>.json.
func WriteResult(runDir string, out *bench.TaskOutput) error {
	dir := filepath.Join(runDir, ResultsDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating results directory: %w", err)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result %d: %w", out.Index, err)
	}
	path := filepath.Join(dir, strconv.Itoa(out.Index)+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing result %d: %w", out.Index, err)
	}
	return nil
}

// ReadResults loads every per-sample result of a run, ordered by index.
// A run without results yields an empty slice.
func ReadResults(runDir string) ([]*bench.TaskOutput, error) {
	dir := filepath.Join(runDir, ResultsDir)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []*bench.TaskOutput{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading results: %w", err)
	}

	outs := []*bench.TaskOutput{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		var out bench.TaskOutput
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", e.Name(), err)
		}
		outs = append(outs, &out)
	}
	sort.Slice(outs, func(i, j int) bool { return outs[i].Index < outs[j].Index })
	return outs, nil
}
