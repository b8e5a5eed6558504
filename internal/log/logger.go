// Package log records run events and builds console loggers.
//
// Each run directory holds an append-only log.jsonl with one Event per line.
// The log survives interrupted runs: ReadEvents ignores a torn final line.
package log

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event names.
const (
	EventRunStarted     = "run_started"
	EventSampleStarted  = "sample_started"
	EventRoundExecuted  = "round_executed"
	EventSampleFinished = "sample_finished"
	EventSampleFault    = "sample_fault"
	EventBreakerTripped = "breaker_tripped"
	EventRunComplete    = "run_complete"
)

// FileName is the event log inside a run directory.
const FileName = "log.jsonl"

// Event is one line of the event log. Index and Correct are pointers so that
// sample 0 and a wrong answer survive omitempty.
type Event struct {
	Time       time.Time      `json:"time"`
	Event      string         `json:"event"`
	RunID      string         `json:"run,omitempty"`
	Index      *int           `json:"index,omitempty"`
	Round      int            `json:"round,omitempty"`
	SQL        string         `json:"sql,omitempty"`
	Status     string         `json:"status,omitempty"`
	Correct    *bool          `json:"correct,omitempty"`
	Error      string         `json:"error,omitempty"`
	Phase      string         `json:"phase,omitempty"`
	Completed  int            `json:"completed,omitempty"`
	Total      int            `json:"total,omitempty"`
	DurationMs int64          `json:"duration_ms,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// EventLog appends events to a run's log file. Safe for concurrent use.
type EventLog struct {
	mu   sync.Mutex
	f    *os.File
	enc  *json.Encoder
	path string
	now  func() time.Time
}

// Open opens (or continues) the event log in dir, creating dir as needed.
func Open(dir string) (*EventLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}
	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return &EventLog{
		f:    f,
		enc:  json.NewEncoder(f),
		path: path,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// Path returns the log file path.
func (l *EventLog) Path() string { return l.path }

// Record writes e as one line, stamping the time when unset.
func (l *EventLog) Record(e Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return errors.New("event log closed")
	}
	if e.Time.IsZero() {
		e.Time = l.now()
	}
	if err := l.enc.Encode(e); err != nil {
		return fmt.Errorf("write event %s: %w", e.Event, err)
	}
	return nil
}

// Close closes the log file. Further Record calls fail.
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f, l.enc = nil, nil
	return err
}

// ReadEvents parses the event log in dir. A missing log yields no events.
// A malformed final line is dropped, since an interrupted run can leave one
// half written; a malformed line anywhere else is an error.
func ReadEvents(dir string) ([]Event, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}

	var (
		events []Event
		torn   error
	)
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for n := 1; sc.Scan(); n++ {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if torn != nil {
			return nil, torn
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			torn = fmt.Errorf("parse event log line %d: %w", n, err)
			continue
		}
		events = append(events, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan event log: %w", err)
	}
	return events, nil
}

// IntPtr and BoolPtr build the optional fields of an Event.
func IntPtr(v int) *int { return &v }

func BoolPtr(v bool) *bool { return &v }
