package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"

	"github.com/berth-dev/dbbench/internal/bench"
)

func TestConfigYAMLRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.MaxRound = 10
	cfg.Agent.Model = "gpt-4o"
	cfg.Executor.Driver = "postgres"
	cfg.Executor.DSN = "postgres://localhost/bench"

	if err := WriteConfig(tmpDir, cfg); err != nil {
		t.Fatalf("WriteConfig failed: %v", err)
	}

	loaded, err := ReadConfig(tmpDir)
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}

	if loaded.MaxRound != 10 {
		t.Errorf("MaxRound: got %d, want 10", loaded.MaxRound)
	}
	if loaded.Agent.Model != "gpt-4o" {
		t.Errorf("Agent.Model: got %q, want %q", loaded.Agent.Model, "gpt-4o")
	}
	if loaded.Executor.DSN != "postgres://localhost/bench" {
		t.Errorf("Executor.DSN: got %q", loaded.Executor.DSN)
	}
	if loaded.Runner.BreakerThreshold != 5 {
		t.Errorf("Runner.BreakerThreshold: got %d, want 5", loaded.Runner.BreakerThreshold)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxRound != 15 {
		t.Errorf("default MaxRound: got %d, want 15", cfg.MaxRound)
	}
	if cfg.Executor.Driver != "sqlite" {
		t.Errorf("default Executor.Driver: got %q, want sqlite", cfg.Executor.Driver)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestPartialConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	partial := `max_round: 5
agent:
  provider: ollama
  model: llama3.1
`
	configPath := filepath.Join(tmpDir, ".dbbench")
	if err := os.MkdirAll(configPath, 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configPath, "config.yaml"), []byte(partial), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(tmpDir, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MaxRound != 5 {
		t.Errorf("MaxRound: got %d, want 5", cfg.MaxRound)
	}
	if cfg.Agent.Provider != "ollama" {
		t.Errorf("Agent.Provider: got %q, want ollama", cfg.Agent.Provider)
	}
	if cfg.Runner.Concurrency != 0 {
		t.Errorf("Runner.Concurrency: got %d, want 0 for absent section", cfg.Runner.Concurrency)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MaxRound != 15 {
		t.Errorf("MaxRound: got %d, want 15", cfg.MaxRound)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DBBENCH_MAX_ROUND", "7")
	t.Setenv("DBBENCH_AGENT_MODEL", "claude-test")
	t.Setenv("DBBENCH_AGENT_TEMPERATURE", "0.5")
	t.Setenv("DBBENCH_RUNNER_CONCURRENCY", "2")

	cfg := DefaultConfig()
	ApplyOverrides(cfg, NewViper())

	if cfg.MaxRound != 7 {
		t.Errorf("MaxRound: got %d, want 7", cfg.MaxRound)
	}
	if cfg.Agent.Model != "claude-test" {
		t.Errorf("Agent.Model: got %q", cfg.Agent.Model)
	}
	if cfg.Agent.Temperature != 0.5 {
		t.Errorf("Agent.Temperature: got %v, want 0.5", cfg.Agent.Temperature)
	}
	if cfg.Runner.Concurrency != 2 {
		t.Errorf("Runner.Concurrency: got %d, want 2", cfg.Runner.Concurrency)
	}
	if cfg.Executor.Driver != "sqlite" {
		t.Errorf("unset key changed: Executor.Driver = %q", cfg.Executor.Driver)
	}
}

func TestExplicitOverride(t *testing.T) {
	v := viper.New()
	v.Set("executor.work_dir", "/tmp/ns")

	cfg := DefaultConfig()
	ApplyOverrides(cfg, v)
	if cfg.Executor.WorkDir != "/tmp/ns" {
		t.Errorf("Executor.WorkDir: got %q", cfg.Executor.WorkDir)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero budget", func(c *Config) { c.MaxRound = 0 }, true},
		{"postgres without dsn", func(c *Config) { c.Executor.Driver = "postgres" }, true},
		{"unknown driver", func(c *Config) { c.Executor.Driver = "mysql" }, true},
		{"negative concurrency", func(c *Config) { c.Runner.Concurrency = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	cfg := DefaultConfig()
	cfg.MaxRound = -3
	if err := cfg.Validate(); !errors.Is(err, bench.ErrInvalidBudget) {
		t.Errorf("expected ErrInvalidBudget, got %v", err)
	}
}
