package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

const defaultOllamaModel = "llama3.1"

// Ollama chats with a local or remote Ollama server.
type Ollama struct {
	client      *api.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewOllama connects to baseURL, or to OLLAMA_HOST when baseURL is empty.
func NewOllama(baseURL, model string, maxTokens int, temperature float64, httpClient *http.Client) (*Ollama, error) {
	var client *api.Client
	if baseURL == "" {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("ollama client: %w", err)
		}
		client = c
	} else {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("ollama base url: %w", err)
		}
		client = api.NewClient(u, httpClient)
	}
	if model == "" {
		model = defaultOllamaModel
	}
	return &Ollama{client: client, model: model, maxTokens: maxTokens, temperature: temperature}, nil
}

func (o *Ollama) Inference(ctx context.Context, history []Turn) (string, error) {
	messages := make([]api.Message, len(history))
	for i, t := range history {
		role := "user"
		if t.Role == RoleAgent {
			role = "assistant"
		}
		messages[i] = api.Message{Role: role, Content: t.Content}
	}

	options := map[string]any{"temperature": o.temperature}
	if o.maxTokens > 0 {
		options["num_predict"] = o.maxTokens
	}
	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}

	var out strings.Builder
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		var serr api.StatusError
		if errors.As(err, &serr) && isContextLimitMessage(serr.ErrorMessage) {
			return "", fmt.Errorf("%w: %s", ErrContextLimit, serr.ErrorMessage)
		}
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return out.String(), nil
}
