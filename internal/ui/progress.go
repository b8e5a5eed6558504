// Package ui provides terminal UI components for dbbench.
// This file implements the progress display shown while samples run.
package ui

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/berth-dev/dbbench/internal/bench"
)

// sampleState holds the display state of one in-flight or finished sample.
type sampleState struct {
	Index   int
	Status  bench.SampleStatus // empty while running
	Correct bool
	Rounds  int
	Started time.Time
	Elapsed time.Duration
}

// ProgressDisplay renders run progress. It satisfies runner.Observer.
type ProgressDisplay struct {
	mu         sync.Mutex
	out        io.Writer
	title      string
	total      int
	isTTY      bool
	linesDrawn int

	running  map[int]*sampleState
	finished int
	correct  int
	byStatus map[bench.SampleStatus]int
	started  time.Time
}

// NewProgressDisplay creates a display for total samples written to stdout.
func NewProgressDisplay(title string, total int) *ProgressDisplay {
	return newProgressDisplay(os.Stdout, title, total, term.IsTerminal(int(os.Stdout.Fd())))
}

func newProgressDisplay(out io.Writer, title string, total int, isTTY bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:      out,
		title:    title,
		total:    total,
		isTTY:    isTTY,
		running:  make(map[int]*sampleState),
		byStatus: make(map[bench.SampleStatus]int),
		started:  time.Now(),
	}
}

// SampleStarted marks a sample as running.
func (p *ProgressDisplay) SampleStarted(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.running[index] = &sampleState{Index: index, Started: time.Now()}
	if !p.isTTY {
		fmt.Fprintf(p.out, "[RUNNING] sample %d\n", index)
		return
	}
	p.renderTTY()
}

// SampleFinished records a sample's outcome.
func (p *ProgressDisplay) SampleFinished(out *bench.TaskOutput) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.running[out.Index]
	if !ok {
		s = &sampleState{Index: out.Index, Started: time.Now()}
	}
	delete(p.running, out.Index)
	s.Status = out.Status
	s.Correct = out.Result.Correct
	s.Rounds = out.Rounds
	s.Elapsed = time.Since(s.Started)

	p.finished++
	p.byStatus[out.Status]++
	if out.Result.Correct {
		p.correct++
	}

	if !p.isTTY {
		fmt.Fprintln(p.out, formatSampleLinePlain(s))
		return
	}
	// Finished lines scroll above the live block.
	p.clear()
	fmt.Fprintf(p.out, "\033[2K%s\n", formatSampleLine(s))
	p.renderTTY()
}

// Finish prints the closing summary line.
func (p *ProgressDisplay) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isTTY {
		p.clear()
	}
	fmt.Fprintf(p.out, "\nDone: %d/%d samples, %d correct", p.finished, p.total, p.correct)
	for _, st := range bench.Statuses {
		if st == bench.StatusCompleted {
			continue
		}
		if n := p.byStatus[st]; n > 0 {
			fmt.Fprintf(p.out, ", %d %s", n, st)
		}
	}
	fmt.Fprintf(p.out, " [%s]\n", formatDuration(time.Since(p.started)))
}

// clear erases the live block drawn by renderTTY.
func (p *ProgressDisplay) clear() {
	if p.linesDrawn == 0 {
		return
	}
	fmt.Fprintf(p.out, "\033[%dA", p.linesDrawn)
	for i := 0; i < p.linesDrawn; i++ {
		fmt.Fprint(p.out, "\033[2K\n")
	}
	fmt.Fprintf(p.out, "\033[%dA", p.linesDrawn)
	p.linesDrawn = 0
}

// renderTTY redraws the header and the running samples in place.
func (p *ProgressDisplay) renderTTY() {
	if p.linesDrawn > 0 {
		fmt.Fprintf(p.out, "\033[%dA", p.linesDrawn)
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "\033[2K\033[1m%s\033[0m  [%d/%d] %d correct\n", p.title, p.finished, p.total, p.correct)

	indices := make([]int, 0, len(p.running))
	for i := range p.running {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	for _, i := range indices {
		buf.WriteString("\033[2K")
		buf.WriteString(formatSampleLine(p.running[i]))
		buf.WriteString("\n")
	}

	fmt.Fprint(p.out, buf.String())
	p.linesDrawn = len(indices) + 1
}

// formatSampleLine formats a sample with ANSI colors and a status icon.
func formatSampleLine(s *sampleState) string {
	if s.Status == "" {
		return fmt.Sprintf("  %s sample %-5d \033[33m[%s]\033[0m", statusIcon(s), s.Index, formatDuration(time.Since(s.Started)))
	}
	return fmt.Sprintf("  %s sample %-5d %s \033[90m[%d rounds, %s]\033[0m",
		statusIcon(s), s.Index, s.Status, s.Rounds, formatDuration(s.Elapsed))
}

// formatSampleLinePlain formats a finished sample for non-TTY output.
func formatSampleLinePlain(s *sampleState) string {
	verdict := "WRONG"
	if s.Correct {
		verdict = "CORRECT"
	}
	return fmt.Sprintf("[%s] sample %d: %s, %d rounds [%s]", verdict, s.Index, s.Status, s.Rounds, formatDuration(s.Elapsed))
}

func statusIcon(s *sampleState) string {
	switch {
	case s.Status == "":
		return "\033[33m⏳\033[0m" // yellow hourglass
	case s.Status == bench.StatusUnknown:
		return "\033[31m❌\033[0m" // red X
	case s.Correct:
		return "\033[32m✅\033[0m" // green checkmark
	default:
		return "\033[90m○\033[0m" // dim circle
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm%ds", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}
