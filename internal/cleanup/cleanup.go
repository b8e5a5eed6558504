// Package cleanup names run directories and prunes old ones.
package cleanup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// runTimestampLayout prefixes every run id so ids sort chronologically.
const runTimestampLayout = "20060102-150405"

// NewRunID returns an id like "20260118-093012-1a2b3c4d" for a run started at t.
func NewRunID(t time.Time) string {
	return t.UTC().Format(runTimestampLayout) + "-" + uuid.New().String()[:8]
}

// RunTime extracts the start time encoded in a run id.
func RunTime(runID string) (time.Time, bool) {
	if len(runID) < len(runTimestampLayout) {
		return time.Time{}, false
	}
	prefix := runID[:len(runTimestampLayout)]
	rest := runID[len(runTimestampLayout):]
	if rest != "" && !strings.HasPrefix(rest, "-") {
		return time.Time{}, false
	}
	t, err := time.Parse(runTimestampLayout, prefix)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

type runDir struct {
	name    string
	started time.Time
}

// listRuns returns the run directories under runsDir, oldest first.
// Directories whose names carry no timestamp are ignored.
func listRuns(runsDir string) ([]runDir, error) {
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading runs directory: %w", err)
	}

	var runs []runDir
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if t, ok := RunTime(entry.Name()); ok {
			runs = append(runs, runDir{name: entry.Name(), started: t})
		}
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].started.Equal(runs[j].started) {
			return runs[i].name < runs[j].name
		}
		return runs[i].started.Before(runs[j].started)
	})
	return runs, nil
}

func remove(runsDir string, names []string, dryRun bool) ([]string, error) {
	var pruned []string
	for _, name := range names {
		if !dryRun {
			if err := os.RemoveAll(filepath.Join(runsDir, name)); err != nil {
				return pruned, fmt.Errorf("removing %s: %w", name, err)
			}
		}
		pruned = append(pruned, name)
	}
	return pruned, nil
}

// PruneByAge removes run directories started more than maxAgeDays ago.
// With dryRun nothing is deleted. Returns the pruned run ids.
func PruneByAge(runsDir string, maxAgeDays int, dryRun bool) ([]string, error) {
	runs, err := listRuns(runsDir)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	var old []string
	for _, r := range runs {
		if r.started.Before(cutoff) {
			old = append(old, r.name)
		}
	}
	return remove(runsDir, old, dryRun)
}

// PruneKeepRecent removes all but the keep most recent run directories.
func PruneKeepRecent(runsDir string, keep int, dryRun bool) ([]string, error) {
	runs, err := listRuns(runsDir)
	if err != nil {
		return nil, err
	}
	if keep < 0 {
		keep = 0
	}
	if len(runs) <= keep {
		return nil, nil
	}

	names := make([]string, 0, len(runs)-keep)
	for _, r := range runs[:len(runs)-keep] {
		names = append(names, r.name)
	}
	return remove(runsDir, names, dryRun)
}

// Latest returns the id of the most recent run, or "" when there is none.
func Latest(runsDir string) (string, error) {
	runs, err := listRuns(runsDir)
	if err != nil || len(runs) == 0 {
		return "", err
	}
	return runs[len(runs)-1].name, nil
}
