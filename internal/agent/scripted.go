package agent

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Reply configures one scripted agent turn.
type Reply struct {
	Content string
	Err     error
}

// Scripted replays a fixed sequence of replies. It is used by tests and for
// offline replays of recorded transcripts.
type Scripted struct {
	mu      sync.Mutex
	index   int
	replies []Reply
	calls   [][]Turn
}

// NewScripted returns an agent that answers with replies in order.
func NewScripted(replies ...Reply) *Scripted {
	cloned := make([]Reply, len(replies))
	copy(cloned, replies)
	return &Scripted{replies: cloned}
}

// ScriptedText is NewScripted for plain text replies.
func ScriptedText(contents ...string) *Scripted {
	replies := make([]Reply, len(contents))
	for i, c := range contents {
		replies[i] = Reply{Content: c}
	}
	return NewScripted(replies...)
}

// LoadScript reads a YAML list of reply texts.
func LoadScript(path string) (*Scripted, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	var contents []string
	if err := yaml.Unmarshal(data, &contents); err != nil {
		return nil, fmt.Errorf("parsing script %s: %w", path, err)
	}
	return ScriptedText(contents...), nil
}

func (s *Scripted) Inference(_ context.Context, history []Turn) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]Turn, len(history))
	copy(snapshot, history)
	s.calls = append(s.calls, snapshot)

	if s.index >= len(s.replies) {
		return "", fmt.Errorf("script exhausted at step %d", s.index+1)
	}
	r := s.replies[s.index]
	s.index++
	return r.Content, r.Err
}

// Calls returns the history passed to each Inference call so far.
func (s *Scripted) Calls() [][]Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]Turn, len(s.calls))
	copy(out, s.calls)
	return out
}
