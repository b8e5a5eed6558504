package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const checkpointFile = "checkpoint.json"

// Checkpoint records which samples of a run have finished, for resume.
type Checkpoint struct {
	RunID        string    `json:"run_id"`
	MaxRound     int       `json:"max_round"`
	Indices      []int     `json:"indices,omitempty"` // samples the run covers; empty means all
	Done         []int     `json:"done"`
	ConsecFaults int       `json:"consec_faults"` // for the breaker
	LastError    string    `json:"last_error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Has reports whether index is recorded as done.
func (cp *Checkpoint) Has(index int) bool {
	for _, d := range cp.Done {
		if d == index {
			return true
		}
	}
	return false
}

// MarkDone records index, keeping Done sorted and unique.
func (cp *Checkpoint) MarkDone(index int) {
	if cp.Has(index) {
		return
	}
	cp.Done = append(cp.Done, index)
	sort.Ints(cp.Done)
}

// SaveCheckpoint writes the current state to disk.
func SaveCheckpoint(runDir string, cp *Checkpoint) error {
	cp.Timestamp = time.Now()
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling checkpoint: %w", err)
	}
	path := filepath.Join(runDir, checkpointFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint reads the checkpoint from disk.
// Returns nil, nil if no checkpoint exists (not an error).
func LoadCheckpoint(runDir string) (*Checkpoint, error) {
	path := filepath.Join(runDir, checkpointFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("parsing checkpoint: %w", err)
	}
	return &cp, nil
}

// ClearCheckpoint removes the checkpoint file.
func ClearCheckpoint(runDir string) error {
	path := filepath.Join(runDir, checkpointFile)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing checkpoint: %w", err)
	}
	return nil
}
