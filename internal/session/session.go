// Package session buffers the turns of one sample's conversation and archives
// finished samples in SQLite.
package session

import (
	"context"
	"errors"

	"github.com/berth-dev/dbbench/internal/agent"
)

// OutputStatus tells whether the agent produced a normal reply.
type OutputStatus string

const (
	StatusNormal       OutputStatus = "normal"
	StatusContextLimit OutputStatus = "agent context limit"
)

// Response is the outcome of one agent invocation.
type Response struct {
	Content string
	Status  OutputStatus
}

// Session is the append-only conversation of one sample. It is not safe for
// concurrent use; each sample owns its own session.
type Session struct {
	agent   agent.Agent
	history []agent.Turn
}

// New returns an empty session that dispatches to a.
func New(a agent.Agent) *Session {
	return &Session{agent: a}
}

// Inject appends a turn without calling the agent.
func (s *Session) Inject(role, content string) {
	s.history = append(s.history, agent.Turn{Role: role, Content: content})
}

// Action asks the agent for its next reply and records it. A context-window
// overflow is reported through Status, not as an error, and leaves the
// history untouched.
func (s *Session) Action(ctx context.Context) (Response, error) {
	content, err := s.agent.Inference(ctx, s.History())
	if err != nil {
		if errors.Is(err, agent.ErrContextLimit) {
			return Response{Status: StatusContextLimit}, nil
		}
		return Response{}, err
	}
	s.history = append(s.history, agent.Turn{Role: agent.RoleAgent, Content: content})
	return Response{Content: content, Status: StatusNormal}, nil
}

// History returns a copy of the turns so far.
func (s *Session) History() []agent.Turn {
	out := make([]agent.Turn, len(s.history))
	copy(out, s.history)
	return out
}
