package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seedHistory = []Turn{
	{Role: RoleUser, Content: "preamble"},
	{Role: RoleAgent, Content: "Ok."},
	{Role: RoleUser, Content: "How many rows?"},
}

func TestAnthropicInference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 3)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "assistant", req.Messages[1].Role)
		assert.Equal(t, "Ok.", req.Messages[1].Content)

		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Action: Answer\nFinal Answer: [\"3\"]"}],"stop_reason":"end_turn"}`))
	}))
	defer srv.Close()

	a := &Anthropic{APIKey: "test-key", Model: "m", BaseURL: srv.URL, MaxTokens: 64, Client: srv.Client()}
	out, err := a.Inference(context.Background(), seedHistory)
	require.NoError(t, err)
	assert.Equal(t, "Action: Answer\nFinal Answer: [\"3\"]", out)
}

func TestAnthropicContextLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"prompt is too long: 210000 tokens > 200000 maximum"}}`))
	}))
	defer srv.Close()

	a := &Anthropic{APIKey: "k", BaseURL: srv.URL, Client: srv.Client()}
	_, err := a.Inference(context.Background(), seedHistory)
	assert.ErrorIs(t, err, ErrContextLimit)
}

func TestOpenAIRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("authorization"))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"quit"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	o := &OpenAI{APIKey: "sk-test", Model: "m", BaseURL: srv.URL, Client: srv.Client()}
	out, err := o.Inference(context.Background(), seedHistory)
	require.NoError(t, err)
	assert.Equal(t, "quit", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAIClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	o := &OpenAI{APIKey: "sk-bad", BaseURL: srv.URL, Client: srv.Client()}
	_, err := o.Inference(context.Background(), seedHistory)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrContextLimit)

	var serr *statusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusUnauthorized, serr.Status)
	assert.Equal(t, "invalid_api_key: bad key", serr.Message)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIContextLengthCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"This model's maximum context length is 8192 tokens.","code":"context_length_exceeded"}}`))
	}))
	defer srv.Close()

	o := &OpenAI{BaseURL: srv.URL, Client: srv.Client()}
	_, err := o.Inference(context.Background(), seedHistory)
	assert.ErrorIs(t, err, ErrContextLimit)
}

func TestOllamaInference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tiny", req.Model)
		require.Len(t, req.Messages, 3)
		assert.Equal(t, "assistant", req.Messages[1].Role)

		w.Header().Set("content-type", "application/json")
		_, _ = w.Write([]byte(`{"model":"tiny","message":{"role":"assistant","content":"Action: quit\n"},"done":true}`))
	}))
	defer srv.Close()

	o, err := NewOllama(srv.URL, "tiny", 0, 0, srv.Client())
	require.NoError(t, err)
	out, err := o.Inference(context.Background(), seedHistory)
	require.NoError(t, err)
	assert.Equal(t, "Action: quit\n", out)
}

func TestScripted(t *testing.T) {
	boom := errors.New("boom")
	s := NewScripted(Reply{Content: "one"}, Reply{Err: boom})

	out, err := s.Inference(context.Background(), seedHistory[:1])
	require.NoError(t, err)
	assert.Equal(t, "one", out)

	_, err = s.Inference(context.Background(), seedHistory)
	assert.ErrorIs(t, err, boom)

	_, err = s.Inference(context.Background(), seedHistory)
	assert.ErrorContains(t, err, "script exhausted at step 3")

	calls := s.Calls()
	require.Len(t, calls, 3)
	assert.Len(t, calls[0], 1)
	assert.Len(t, calls[1], 3)
}

func TestNewScriptedFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- |\n  Action: Answer\n  Final Answer: [\"1\"]\n"), 0644))

	a, err := New(context.Background(), Config{Provider: ProviderScripted, ScriptFile: path})
	require.NoError(t, err)
	out, err := a.Inference(context.Background(), seedHistory)
	require.NoError(t, err)
	assert.Equal(t, "Action: Answer\nFinal Answer: [\"1\"]\n", out)
}

func TestNewProviderSelection(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("OLLAMA_HOST", "")

	_, err := New(context.Background(), Config{})
	assert.ErrorContains(t, err, "no agent provider configured")

	_, err = New(context.Background(), Config{Provider: "bogus"})
	assert.ErrorContains(t, err, `unknown agent provider "bogus"`)

	_, err = New(context.Background(), Config{Provider: ProviderAnthropic})
	assert.ErrorContains(t, err, "ANTHROPIC_API_KEY")

	t.Setenv("ANTHROPIC_API_KEY", "k")
	a, err := New(context.Background(), Config{})
	require.NoError(t, err)
	anth, ok := a.(*Anthropic)
	require.True(t, ok)
	assert.Equal(t, defaultAnthropicModel, anth.Model)
	assert.Equal(t, defaultMaxTokens, anth.MaxTokens)
}

func TestIsContextLimitMessage(t *testing.T) {
	assert.True(t, isContextLimitMessage("Request exceeds the context window"))
	assert.True(t, isContextLimitMessage("CONTEXT_LENGTH_EXCEEDED"))
	assert.False(t, isContextLimitMessage("rate limited"))
}
