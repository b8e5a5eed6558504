package agent

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

const (
	defaultAnthropicURL   = "https://api.anthropic.com"
	defaultAnthropicModel = "claude-3-5-sonnet-latest"
	anthropicVersion      = "2023-06-01"
)

// Anthropic calls the Messages API.
type Anthropic struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Client      *http.Client
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (a *Anthropic) Inference(ctx context.Context, history []Turn) (string, error) {
	req := anthropicRequest{
		Model:       a.Model,
		MaxTokens:   a.MaxTokens,
		Temperature: a.Temperature,
		Messages:    make([]anthropicMessage, len(history)),
	}
	for i, t := range history {
		role := "user"
		if t.Role == RoleAgent {
			role = "assistant"
		}
		req.Messages[i] = anthropicMessage{Role: role, Content: t.Content}
	}

	headers := map[string]string{
		"x-api-key":         a.APIKey,
		"anthropic-version": anthropicVersion,
	}
	url := strings.TrimRight(a.BaseURL, "/") + "/v1/messages"

	var resp anthropicResponse
	if err := postJSON(ctx, a.Client, "anthropic", url, headers, req, &resp); err != nil {
		return "", err
	}
	if resp.StopReason == "model_context_window_exceeded" {
		return "", ErrContextLimit
	}
	for _, c := range resp.Content {
		if c.Type == "text" {
			return c.Text, nil
		}
	}
	return "", errors.New("anthropic: no text content in response")
}
