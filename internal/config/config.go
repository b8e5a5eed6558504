// Package config handles reading and writing .dbbench/config.yaml and
// layering environment and flag overrides on top of it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/berth-dev/dbbench/internal/agent"
	"github.com/berth-dev/dbbench/internal/bench"
	"github.com/berth-dev/dbbench/internal/sqlexec"
)

// Config is the top-level structure for .dbbench/config.yaml.
type Config struct {
	Version      int            `yaml:"version"`
	MaxRound     int            `yaml:"max_round"`
	PreambleFile string         `yaml:"preamble_file,omitempty"`
	Dataset      string         `yaml:"dataset"`
	Agent        agent.Config   `yaml:"agent"`
	Executor     sqlexec.Config `yaml:"executor"`
	Runner       RunnerConfig   `yaml:"runner"`
	Store        StoreConfig    `yaml:"store"`
	Cleanup      CleanupConfig  `yaml:"cleanup"`
}

// RunnerConfig controls batch execution.
type RunnerConfig struct {
	Concurrency      int `yaml:"concurrency"`
	BreakerThreshold int `yaml:"breaker_threshold"` // consecutive UNKNOWN outcomes before aborting
}

// StoreConfig locates the result archive.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// CleanupConfig controls pruning of old run directories.
type CleanupConfig struct {
	MaxAgeDays int `yaml:"max_age_days"`
}

const (
	// Dir is the per-project state directory.
	Dir        = ".dbbench"
	configFile = "config.yaml"
	// EnvPrefix prefixes environment overrides, e.g. DBBENCH_MAX_ROUND.
	EnvPrefix = "DBBENCH"
)

// ReadConfig reads .dbbench/config.yaml from the given project directory.
// dir is the project root (not .dbbench/ itself).
// Returns an error if the file is not found or YAML is malformed.
func ReadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, Dir, configFile)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

// WriteConfig writes cfg to .dbbench/config.yaml in the given project directory.
// Creates the .dbbench/ directory if it does not exist.
func WriteConfig(dir string, cfg *Config) error {
	dirPath := filepath.Join(dir, Dir)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	path := filepath.Join(dirPath, configFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version:  1,
		MaxRound: 15,
		Dataset:  "data/dbbench/standard.jsonl",
		Agent: agent.Config{
			Provider:       agent.ProviderAnthropic,
			MaxTokens:      1024,
			TimeoutSeconds: 120,
		},
		Executor: sqlexec.Config{
			Driver: sqlexec.DriverSQLite,
		},
		Runner: RunnerConfig{
			Concurrency:      4,
			BreakerThreshold: 5,
		},
		Store: StoreConfig{
			Path: filepath.Join(Dir, "history.db"),
		},
		Cleanup: CleanupConfig{
			MaxAgeDays: 30,
		},
	}
}

// NewViper returns a viper instance reading DBBENCH_* environment variables.
// Nested keys use underscores: agent.model is DBBENCH_AGENT_MODEL.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// override copies one viper key into the config when it is set.
type override struct {
	key   string
	apply func(c *Config, v *viper.Viper, key string)
}

func setInt(field func(*Config) *int) func(*Config, *viper.Viper, string) {
	return func(c *Config, v *viper.Viper, key string) { *field(c) = v.GetInt(key) }
}

func setString(field func(*Config) *string) func(*Config, *viper.Viper, string) {
	return func(c *Config, v *viper.Viper, key string) { *field(c) = v.GetString(key) }
}

var overrides = []override{
	{"max_round", setInt(func(c *Config) *int { return &c.MaxRound })},
	{"preamble_file", setString(func(c *Config) *string { return &c.PreambleFile })},
	{"dataset", setString(func(c *Config) *string { return &c.Dataset })},
	{"agent.provider", setString(func(c *Config) *string { return &c.Agent.Provider })},
	{"agent.model", setString(func(c *Config) *string { return &c.Agent.Model })},
	{"agent.base_url", setString(func(c *Config) *string { return &c.Agent.BaseURL })},
	{"agent.max_tokens", setInt(func(c *Config) *int { return &c.Agent.MaxTokens })},
	{"agent.temperature", func(c *Config, v *viper.Viper, key string) { c.Agent.Temperature = v.GetFloat64(key) }},
	{"agent.timeout_seconds", setInt(func(c *Config) *int { return &c.Agent.TimeoutSeconds })},
	{"agent.script_file", setString(func(c *Config) *string { return &c.Agent.ScriptFile })},
	{"executor.driver", setString(func(c *Config) *string { return &c.Executor.Driver })},
	{"executor.dsn", setString(func(c *Config) *string { return &c.Executor.DSN })},
	{"executor.work_dir", setString(func(c *Config) *string { return &c.Executor.WorkDir })},
	{"runner.concurrency", setInt(func(c *Config) *int { return &c.Runner.Concurrency })},
	{"runner.breaker_threshold", setInt(func(c *Config) *int { return &c.Runner.BreakerThreshold })},
	{"store.path", setString(func(c *Config) *string { return &c.Store.Path })},
	{"cleanup.max_age_days", setInt(func(c *Config) *int { return &c.Cleanup.MaxAgeDays })},
}

// ApplyOverrides copies every key set in v (environment or bound flags)
// over cfg.
func ApplyOverrides(cfg *Config, v *viper.Viper) {
	if v == nil {
		return
	}
	for _, o := range overrides {
		if v.IsSet(o.key) {
			o.apply(cfg, v, o.key)
		}
	}
}

// Load reads the project config, applies overrides from v and validates the
// result. A missing config file falls back to defaults.
func Load(dir string, v *viper.Viper) (*Config, error) {
	cfg, err := ReadConfig(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = DefaultConfig()
	}
	ApplyOverrides(cfg, v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values the harness cannot run without.
func (c *Config) Validate() error {
	if c.MaxRound <= 0 {
		return fmt.Errorf("config: %w (max_round=%d)", bench.ErrInvalidBudget, c.MaxRound)
	}
	if c.Runner.Concurrency < 0 {
		return fmt.Errorf("config: runner.concurrency must not be negative")
	}
	switch c.Executor.Driver {
	case "", sqlexec.DriverSQLite:
	case sqlexec.DriverPostgres:
		if c.Executor.DSN == "" {
			return fmt.Errorf("config: executor.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("config: unknown executor.driver %q", c.Executor.Driver)
	}
	return nil
}
