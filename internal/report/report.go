// Package report aggregates finished samples into a run summary.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/berth-dev/dbbench/internal/bench"
	"github.com/berth-dev/dbbench/internal/log"
)

// File names written into a run directory.
const (
	OverallFile  = "overall.json"
	MarkdownFile = "report.md"
)

// SampleSummary is the per-sample line of a report.
type SampleSummary struct {
	Index   int                `json:"index"`
	Status  bench.SampleStatus `json:"status"`
	Type    string             `json:"type,omitempty"`
	Rounds  int                `json:"rounds"`
	Correct bool               `json:"correct"`
	Reward  float64            `json:"reward"`
	Error   string             `json:"error,omitempty"`
}

// Report holds the aggregated statistics of a run.
type Report struct {
	RunID      string          `json:"run_id"`
	Total      int             `json:"total"`
	Correct    int             `json:"correct"`
	Accuracy   float64         `json:"accuracy"`
	MeanReward float64         `json:"mean_reward"`
	MaxRound   int             `json:"max_round"`
	ByStatus   map[string]int  `json:"by_status"`
	ByType     map[string]int  `json:"by_type,omitempty"`
	StartedAt  time.Time       `json:"started_at,omitempty"`
	FinishedAt time.Time       `json:"finished_at,omitempty"`
	Samples    []SampleSummary `json:"samples"`
}

// Generate aggregates outs. Every known status appears in ByStatus, with a
// zero count when no sample ended that way.
func Generate(runID string, outs []*bench.TaskOutput, maxRound int) *Report {
	r := &Report{
		RunID:    runID,
		MaxRound: maxRound,
		ByStatus: make(map[string]int, len(bench.Statuses)),
		ByType:   make(map[string]int),
		Samples:  make([]SampleSummary, 0, len(outs)),
	}
	for _, s := range bench.Statuses {
		r.ByStatus[string(s)] = 0
	}

	var rewardSum float64
	for _, o := range outs {
		if o == nil {
			continue
		}
		reward := bench.Reward(o.Result.Correct, o.Rounds, maxRound)
		r.Total++
		r.ByStatus[string(o.Status)]++
		if o.Result.Type != "" {
			r.ByType[o.Result.Type]++
		}
		if o.Result.Correct {
			r.Correct++
		}
		rewardSum += reward
		r.Samples = append(r.Samples, SampleSummary{
			Index:   o.Index,
			Status:  o.Status,
			Type:    o.Result.Type,
			Rounds:  o.Rounds,
			Correct: o.Result.Correct,
			Reward:  reward,
			Error:   o.Result.Error,
		})
	}
	if r.Total > 0 {
		r.Accuracy = float64(r.Correct) / float64(r.Total)
		r.MeanReward = rewardSum / float64(r.Total)
	}
	return r
}

// Duration returns the wall time of the run, or zero when unknown.
func (r *Report) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	goodStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	badStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	bannerString = strings.Repeat("=", 40)
)

// Format produces a terminal-friendly summary. Colors are dropped
// automatically when the output is not a terminal.
func Format(r *Report) string {
	var b strings.Builder

	b.WriteString(bannerString + "\n")
	b.WriteString("  " + titleStyle.Render("dbbench Run Report") + "\n")
	b.WriteString(bannerString + "\n\n")

	line := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-13s", label+":")), value)
	}

	line("Run", r.RunID)
	line("Max rounds", fmt.Sprintf("%d", r.MaxRound))
	line("Samples", fmt.Sprintf("%d", r.Total))
	line("Correct", goodStyle.Render(fmt.Sprintf("%d", r.Correct)))
	line("Accuracy", fmt.Sprintf("%.1f%%", r.Accuracy*100))
	line("Mean reward", fmt.Sprintf("%.3f", r.MeanReward))
	b.WriteString("\n")

	b.WriteString("Status:\n")
	for _, s := range bench.Statuses {
		n := r.ByStatus[string(s)]
		fmt.Fprintf(&b, "  %-24s %s\n", string(s), statusStyle(s, n).Render(fmt.Sprintf("%d", n)))
	}

	if len(r.ByType) > 0 {
		b.WriteString("\nTypes:\n")
		for _, t := range sortedKeys(r.ByType) {
			fmt.Fprintf(&b, "  %-24s %d\n", t, r.ByType[t])
		}
	}

	if d := r.Duration(); d > 0 {
		b.WriteString("\n")
		line("Duration", formatDuration(d))
	}

	b.WriteString(bannerString + "\n")
	return b.String()
}

func statusStyle(s bench.SampleStatus, n int) lipgloss.Style {
	if n == 0 {
		return labelStyle
	}
	switch s {
	case bench.StatusCompleted:
		return goodStyle
	case bench.StatusUnknown:
		return badStyle
	default:
		return warnStyle
	}
}

// Write writes the formatted report to {runDir}/report.md.
func Write(runDir string, r *Report) error {
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}
	path := filepath.Join(runDir, MarkdownFile)
	if err := os.WriteFile(path, []byte(Format(r)), 0644); err != nil {
		return fmt.Errorf("writing report file: %w", err)
	}
	return nil
}

// WriteJSON writes r to {runDir}/overall.json.
func WriteJSON(runDir string, r *Report) error {
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, OverallFile), data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", OverallFile, err)
	}
	return nil
}

// ReadJSON loads a report previously written by WriteJSON.
func ReadJSON(runDir string) (*Report, error) {
	data, err := os.ReadFile(filepath.Join(runDir, OverallFile))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", OverallFile, err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", OverallFile, err)
	}
	return &r, nil
}

// FillDuration sets StartedAt and FinishedAt from the run's event log when
// the report lacks them.
func FillDuration(r *Report, events []log.Event) {
	if !r.StartedAt.IsZero() {
		return
	}
	start, end := eventSpan(events)
	r.StartedAt, r.FinishedAt = start, end
}

// eventSpan finds the first run_started event and the last run_complete
// event, falling back to the last timestamp seen.
func eventSpan(events []log.Event) (time.Time, time.Time) {
	var start, end time.Time
	for _, e := range events {
		if e.Event == log.EventRunStarted && start.IsZero() {
			start = e.Time
		}
		if !e.Time.IsZero() {
			end = e.Time
		}
		if e.Event == log.EventRunComplete {
			end = e.Time
		}
	}
	if start.IsZero() || end.Before(start) {
		return time.Time{}, time.Time{}
	}
	return start, end
}

// formatDuration produces a human-readable duration string such as "5m 32s"
// or "1h 12m 5s". Sub-second durations are shown as "< 1s".
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "< 1s"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
