// Package agent talks to the model under evaluation. Every backend turns an
// ordered conversation into the agent's next reply.
package agent

import (
	"context"
	"errors"
	"strings"
)

// Conversation roles. RoleUser is the task side, RoleAgent the model side.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// ErrContextLimit is returned when the conversation no longer fits the
// model's context window. Callers map it to a terminal status rather than a
// fault.
var ErrContextLimit = errors.New("agent context limit exceeded")

// Turn is one message of the conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Agent produces the next reply for a conversation.
type Agent interface {
	Inference(ctx context.Context, history []Turn) (string, error)
}

// contextLimitMarkers are fragments of provider error messages that mean the
// prompt exceeded the context window.
var contextLimitMarkers = []string{
	"context_length_exceeded",
	"maximum context length",
	"context window",
	"prompt is too long",
	"too many tokens",
	"exceeds the context",
}

// isContextLimitMessage reports whether a provider error message describes
// an exhausted context window.
func isContextLimitMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, m := range contextLimitMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
