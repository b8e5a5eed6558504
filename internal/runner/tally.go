package runner

import (
	"fmt"
	"sync"

	"github.com/berth-dev/dbbench/internal/bench"
)

// Tally tracks progress across all samples in a run.
// All methods are thread-safe via mu.
type Tally struct {
	mu       sync.Mutex
	total    int
	done     int
	correct  int
	byStatus map[bench.SampleStatus]int
}

// NewTally creates a Tally for total samples.
func NewTally(total int) *Tally {
	return &Tally{
		total:    total,
		byStatus: make(map[bench.SampleStatus]int),
	}
}

// Record counts a finished sample.
func (t *Tally) Record(out *bench.TaskOutput) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done++
	t.byStatus[out.Status]++
	if out.Result.Correct {
		t.correct++
	}
}

// Progress returns a formatted progress string like "[2/5]".
func (t *Tally) Progress() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("[%d/%d]", t.done, t.total)
}

// Done returns the number of finished samples.
func (t *Tally) Done() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Correct returns the number of correct samples.
func (t *Tally) Correct() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.correct
}

// Count returns how many samples finished with status.
func (t *Tally) Count(status bench.SampleStatus) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byStatus[status]
}

// IsComplete returns true once every sample has finished.
func (t *Tally) IsComplete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done >= t.total
}
