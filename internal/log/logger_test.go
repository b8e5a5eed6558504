package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestRecordAndReadEvents(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "runs", "r1")
	l, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	stamp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return stamp }

	events := []Event{
		{Event: EventRunStarted, RunID: "r1", Total: 2},
		{Event: EventRoundExecuted, Index: IntPtr(0), Round: 1, SQL: "SELECT 1"},
		{Event: EventSampleFinished, Index: IntPtr(0), Status: "completed", Correct: BoolPtr(false)},
	}
	for _, e := range events {
		if err := l.Record(e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := ReadEvents(dir)
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}
	if !got[0].Time.Equal(stamp) {
		t.Errorf("time = %v, want %v", got[0].Time, stamp)
	}
	if got[1].Index == nil || *got[1].Index != 0 {
		t.Errorf("index 0 lost in round trip: %v", got[1].Index)
	}
	if got[2].Correct == nil || *got[2].Correct {
		t.Error("correct=false lost in round trip")
	}
	if l.Path() != filepath.Join(dir, FileName) {
		t.Errorf("Path: got %q", l.Path())
	}
}

func TestRecordAfterClose(t *testing.T) {
	l, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := l.Record(Event{Event: EventRunComplete}); err == nil {
		t.Error("Record after Close succeeded")
	}
}

func TestOpenContinuesExistingLog(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		l, err := Open(dir)
		if err != nil {
			t.Fatal(err)
		}
		if err := l.Record(Event{Event: EventRunStarted}); err != nil {
			t.Fatal(err)
		}
		l.Close()
	}
	got, err := ReadEvents(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("got %d events, want 2 after reopening", len(got))
	}
}

func TestReadEvents(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr string
	}{
		{"empty", "", 0, ""},
		{"blank lines", "{\"event\":\"run_started\"}\n\n{\"event\":\"run_complete\"}\n", 2, ""},
		{"torn final line", "{\"event\":\"run_started\"}\n{\"event\":\"sam", 1, ""},
		{"malformed middle line", "{\"event\":\"run_started\"}\nnot json\n{\"event\":\"run_complete\"}\n", 0, "line 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			got, err := ReadEvents(dir)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadEvents: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d events, want %d", len(got), tt.want)
			}
		})
	}
}

func TestReadEventsMissingFile(t *testing.T) {
	got, err := ReadEvents(t.TempDir())
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d events, want 0", len(got))
	}
}

func TestRecordConcurrent(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = l.Record(Event{Event: EventSampleStarted, Index: IntPtr(i)})
		}(i)
	}
	wg.Wait()

	got, err := ReadEvents(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 20 {
		t.Errorf("got %d events, want 20", len(got))
	}
}

func TestConsoleLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsole(&buf, false)
	logger.Debug("hidden")
	logger.Error("sample failed", "err", errors.New("boom"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug message logged without verbose")
	}
	if !strings.Contains(out, "sample failed") || !strings.Contains(out, "boom") {
		t.Errorf("error message missing: %q", out)
	}

	buf.Reset()
	NewConsole(&buf, true).Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Error("debug message dropped with verbose")
	}
}
