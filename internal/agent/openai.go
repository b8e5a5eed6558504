package agent

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

const (
	defaultOpenAIURL   = "https://api.openai.com"
	defaultOpenAIModel = "gpt-4o-mini"
)

// OpenAI calls the Chat Completions API. Any compatible server works when
// BaseURL points at it.
type OpenAI struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Client      *http.Client
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (o *OpenAI) Inference(ctx context.Context, history []Turn) (string, error) {
	req := openAIRequest{
		Model:       o.Model,
		MaxTokens:   o.MaxTokens,
		Temperature: o.Temperature,
		Messages:    make([]openAIMessage, len(history)),
	}
	for i, t := range history {
		role := "user"
		if t.Role == RoleAgent {
			role = "assistant"
		}
		req.Messages[i] = openAIMessage{Role: role, Content: t.Content}
	}

	var headers map[string]string
	if o.APIKey != "" {
		headers = map[string]string{"authorization": "Bearer " + o.APIKey}
	}
	url := strings.TrimRight(o.BaseURL, "/") + "/v1/chat/completions"

	var resp openAIResponse
	if err := postJSON(ctx, o.Client, "openai", url, headers, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
