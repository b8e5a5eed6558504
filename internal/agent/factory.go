package agent

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// Provider names accepted in agent config.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderGemini    = "gemini"
	ProviderScripted  = "scripted"
)

const (
	defaultMaxTokens = 1024
	defaultTimeout   = 120 * time.Second
)

// Config selects and configures the agent backend. API keys come from the
// environment, never from the config file.
type Config struct {
	Provider       string  `yaml:"provider"`
	Model          string  `yaml:"model"`
	BaseURL        string  `yaml:"base_url,omitempty"`
	MaxTokens      int     `yaml:"max_tokens,omitempty"`
	Temperature    float64 `yaml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds,omitempty"`
	// ScriptFile holds replies for the scripted provider.
	ScriptFile string `yaml:"script_file,omitempty"`
}

func (c Config) timeout() time.Duration {
	if c.TimeoutSeconds > 0 {
		return time.Duration(c.TimeoutSeconds) * time.Second
	}
	return defaultTimeout
}

func (c Config) maxTokens() int {
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return defaultMaxTokens
}

// New builds the backend named by cfg.Provider. With no provider set, the
// first API key found in the environment picks one.
func New(ctx context.Context, cfg Config) (Agent, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = detectProvider()
	}
	httpClient := &http.Client{Timeout: cfg.timeout()}

	switch provider {
	case ProviderAnthropic:
		key, err := requireEnv("ANTHROPIC_API_KEY")
		if err != nil {
			return nil, err
		}
		return &Anthropic{
			APIKey:      key,
			Model:       orDefault(cfg.Model, defaultAnthropicModel),
			BaseURL:     orDefault(cfg.BaseURL, orDefault(os.Getenv("ANTHROPIC_BASE_URL"), defaultAnthropicURL)),
			MaxTokens:   cfg.maxTokens(),
			Temperature: cfg.Temperature,
			Client:      httpClient,
		}, nil
	case ProviderOpenAI:
		// Local OpenAI-compatible servers often need no key.
		key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
		if key == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		return &OpenAI{
			APIKey:      key,
			Model:       orDefault(cfg.Model, defaultOpenAIModel),
			BaseURL:     orDefault(cfg.BaseURL, orDefault(os.Getenv("OPENAI_API_BASE"), defaultOpenAIURL)),
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Client:      httpClient,
		}, nil
	case ProviderOllama:
		return NewOllama(cfg.BaseURL, cfg.Model, cfg.MaxTokens, cfg.Temperature, httpClient)
	case ProviderGemini:
		key, err := requireEnv("GOOGLE_API_KEY")
		if err != nil {
			return nil, err
		}
		return NewGemini(ctx, key, cfg.Model, cfg.MaxTokens, cfg.Temperature)
	case ProviderScripted:
		if cfg.ScriptFile == "" {
			return nil, fmt.Errorf("scripted provider needs script_file")
		}
		return LoadScript(cfg.ScriptFile)
	case "":
		return nil, fmt.Errorf("no agent provider configured and no API key found in the environment")
	default:
		return nil, fmt.Errorf("unknown agent provider %q", cfg.Provider)
	}
}

func detectProvider() string {
	switch {
	case os.Getenv("ANTHROPIC_API_KEY") != "":
		return ProviderAnthropic
	case os.Getenv("OPENAI_API_KEY") != "":
		return ProviderOpenAI
	case os.Getenv("GOOGLE_API_KEY") != "":
		return ProviderGemini
	case os.Getenv("OLLAMA_HOST") != "":
		return ProviderOllama
	}
	return ""
}

func requireEnv(name string) (string, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return "", fmt.Errorf("%s is not set", name)
	}
	return v, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return def
}
