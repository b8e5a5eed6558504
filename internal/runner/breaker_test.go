package runner

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/berth-dev/dbbench/internal/bench"
)

func TestBreakerTrips(t *testing.T) {
	b := NewBreaker(3)
	if b.RecordFault() || b.RecordFault() {
		t.Fatal("breaker tripped before threshold")
	}
	if b.Tripped() {
		t.Error("Tripped should be false after 2 faults (threshold is 3)")
	}
	if !b.RecordFault() {
		t.Error("third fault should trip the breaker")
	}
	if b.RecordFault() {
		t.Error("RecordFault reports the trip only once")
	}
	if !b.Tripped() {
		t.Error("Tripped should be true")
	}
}

func TestBreakerSuccessResetsStreak(t *testing.T) {
	b := NewBreaker(3)
	b.RecordFault()
	b.RecordFault()
	b.RecordSuccess()
	b.RecordFault()
	if b.Tripped() {
		t.Error("success should reset the streak")
	}
	if b.Consecutive() != 1 {
		t.Errorf("Consecutive = %d, want 1", b.Consecutive())
	}
}

func TestBreakerDefaultThreshold(t *testing.T) {
	b := NewBreaker(0)
	for i := 0; i < defaultBreakerThreshold-1; i++ {
		b.RecordFault()
	}
	if b.Tripped() {
		t.Fatal("tripped before default threshold")
	}
	b.RecordFault()
	if !b.Tripped() {
		t.Error("default threshold not applied")
	}
}

func TestBreakerRestore(t *testing.T) {
	b := NewBreaker(2)
	b.RecordFault()
	b.RecordFault()
	b.Restore(2)
	if b.Tripped() {
		t.Error("Restore should clear the tripped flag")
	}
	if !b.RecordFault() {
		t.Error("restored streak should trip on the next fault")
	}
}

func TestBreakerConcurrent(t *testing.T) {
	b := NewBreaker(100)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.RecordFault()
		}()
	}
	wg.Wait()
	if b.Consecutive() != 50 {
		t.Errorf("Consecutive = %d, want 50", b.Consecutive())
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cp := &Checkpoint{RunID: "test-run", ConsecFaults: 1, LastError: "some error"}
	cp.MarkDone(4)
	cp.MarkDone(1)
	cp.MarkDone(4)

	if err := SaveCheckpoint(dir, cp); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}
	loaded, err := LoadCheckpoint(dir)
	if err != nil {
		t.Fatalf("LoadCheckpoint failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("LoadCheckpoint returned nil")
	}
	if loaded.RunID != "test-run" {
		t.Errorf("RunID = %q, want test-run", loaded.RunID)
	}
	if len(loaded.Done) != 2 || loaded.Done[0] != 1 || loaded.Done[1] != 4 {
		t.Errorf("Done = %v, want [1 4]", loaded.Done)
	}
	if !loaded.Has(4) || loaded.Has(2) {
		t.Errorf("Has mismatch for %v", loaded.Done)
	}
	if loaded.Timestamp.IsZero() {
		t.Error("Timestamp should be set after SaveCheckpoint")
	}
	if _, err := os.Stat(filepath.Join(dir, checkpointFile+".tmp")); !os.IsNotExist(err) {
		t.Error("temporary checkpoint file left behind")
	}
}

func TestLoadCheckpointMissing(t *testing.T) {
	cp, err := LoadCheckpoint(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cp != nil {
		t.Errorf("expected nil checkpoint, got %+v", cp)
	}
}

func TestClearCheckpoint(t *testing.T) {
	dir := t.TempDir()
	if err := SaveCheckpoint(dir, &Checkpoint{RunID: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := ClearCheckpoint(dir); err != nil {
		t.Fatalf("ClearCheckpoint failed: %v", err)
	}
	if err := ClearCheckpoint(dir); err != nil {
		t.Errorf("clearing a missing checkpoint should succeed: %v", err)
	}
}

func TestTally(t *testing.T) {
	tally := NewTally(3)
	tally.Record(&bench.TaskOutput{Status: bench.StatusCompleted, Result: bench.Result{Correct: true}})
	tally.Record(&bench.TaskOutput{Status: bench.StatusQuit})

	if got := tally.Progress(); got != "[2/3]" {
		t.Errorf("Progress = %q, want [2/3]", got)
	}
	if tally.Correct() != 1 {
		t.Errorf("Correct = %d, want 1", tally.Correct())
	}
	if tally.Count(bench.StatusQuit) != 1 {
		t.Errorf("Count(quit) = %d, want 1", tally.Count(bench.StatusQuit))
	}
	if tally.IsComplete() {
		t.Error("IsComplete should be false at 2/3")
	}
	tally.Record(&bench.TaskOutput{Status: bench.StatusUnknown})
	if !tally.IsComplete() {
		t.Error("IsComplete should be true at 3/3")
	}
}
