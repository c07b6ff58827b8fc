// Package config loads dfagent settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/akhildatla/dfagent/pkg/guard"
	"github.com/akhildatla/dfagent/pkg/llm"
	"github.com/akhildatla/dfagent/pkg/optimizer"
	"github.com/akhildatla/dfagent/pkg/translate"
)

// Config holds all dfagent configuration.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Execution ExecutionConfig `yaml:"execution"`
	Sampling  SamplingConfig  `yaml:"sampling"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LLMConfig selects the text-generation service.
type LLMConfig struct {
	Provider   string `yaml:"provider"` // groq, openai, gemini
	APIKey     string `yaml:"api_key,omitempty"`
	Model      string `yaml:"model,omitempty"`
	BaseURL    string `yaml:"base_url,omitempty"`
	Timeout    string `yaml:"timeout"`
	MaxRetries int    `yaml:"max_retries"`
}

// ExecutionConfig bounds generated code.
type ExecutionConfig struct {
	Timeout     string `yaml:"timeout"`
	MaxSteps    int64  `yaml:"max_steps"`
	Optimize    bool   `yaml:"optimize"`
	Concurrency int    `yaml:"concurrency"`
}

// SamplingConfig overrides the generation budget per intent.
type SamplingConfig struct {
	Temperature        float64 `yaml:"temperature"`
	CleanMaxTokens     int     `yaml:"clean_max_tokens"`
	TransformMaxTokens int     `yaml:"transform_max_tokens"`
	VisualizeMaxTokens int     `yaml:"visualize_max_tokens"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:   llm.ProviderGroq,
			Timeout:    "60s",
			MaxRetries: llm.DefaultMaxRetries,
		},
		Execution: ExecutionConfig{
			Timeout:     "5s",
			MaxSteps:    guard.DefaultMaxSteps,
			Optimize:    true,
			Concurrency: 4,
		},
		Sampling: SamplingConfig{
			Temperature:        translate.DefaultSampling(translate.IntentClean).Temperature,
			CleanMaxTokens:     translate.DefaultSampling(translate.IntentClean).MaxTokens,
			TransformMaxTokens: translate.DefaultSampling(translate.IntentTransform).MaxTokens,
			VisualizeMaxTokens: translate.DefaultSampling(translate.IntentVisualize).MaxTokens,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.dfagent/config.yaml, or a relative path when the
// home directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".dfagent", "config.yaml")
	}
	return filepath.Join(home, ".dfagent", "config.yaml")
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file. The API key is never written.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := *c
	out.LLM.APIKey = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	// provider-specific keys, lowest priority first
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = llm.ProviderGemini
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = llm.ProviderOpenAI
	}
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = llm.ProviderGroq
	}

	if p := os.Getenv("DFAGENT_PROVIDER"); p != "" {
		c.LLM.Provider = strings.ToLower(p)
	}
	if m := os.Getenv("DFAGENT_MODEL"); m != "" {
		c.LLM.Model = m
	}
	if lvl := os.Getenv("DFAGENT_LOG_LEVEL"); lvl != "" {
		c.Logging.Level = lvl
	}
}

// Validate checks values that would otherwise fail later.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "", llm.ProviderGroq, llm.ProviderOpenAI, llm.ProviderGemini:
	default:
		return fmt.Errorf("%w: %q", llm.ErrUnknownProvider, c.LLM.Provider)
	}
	for name, v := range map[string]string{"llm.timeout": c.LLM.Timeout, "execution.timeout": c.Execution.Timeout} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
	}
	if c.Execution.MaxSteps < 0 {
		return fmt.Errorf("invalid execution.max_steps %d", c.Execution.MaxSteps)
	}
	return nil
}

// GetLLMTimeout returns the request timeout of the text-generation client.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return llm.DefaultTimeout
	}
	return d
}

// GetExecutionTimeout returns the wall-clock bound of one execution.
func (c *Config) GetExecutionTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.Timeout)
	if err != nil {
		return guard.DefaultTimeout
	}
	return d
}

// LLMClientConfig converts the LLM section for llm.NewClient.
func (c *Config) LLMClientConfig() llm.Config {
	return llm.Config{
		Provider:   c.LLM.Provider,
		APIKey:     c.LLM.APIKey,
		BaseURL:    c.LLM.BaseURL,
		Model:      c.LLM.Model,
		Timeout:    c.GetLLMTimeout(),
		MaxRetries: c.LLM.MaxRetries,
	}
}

// GuardOptions converts the execution section for guard.New.
func (c *Config) GuardOptions() []guard.Option {
	opts := []guard.Option{
		guard.WithTimeout(c.GetExecutionTimeout()),
		guard.WithMaxSteps(c.Execution.MaxSteps),
	}
	if c.Execution.Optimize {
		opts = append(opts, guard.WithOptimizer(optimizer.New(optimizer.WithAllOptimizations())))
	}
	return opts
}

// TranslateOptions converts the sampling section for translate.New. Zero
// token budgets keep the defaults.
func (c *Config) TranslateOptions() []translate.Option {
	var opts []translate.Option
	for intent, tokens := range map[translate.Intent]int{
		translate.IntentClean:     c.Sampling.CleanMaxTokens,
		translate.IntentTransform: c.Sampling.TransformMaxTokens,
		translate.IntentVisualize: c.Sampling.VisualizeMaxTokens,
	} {
		s := translate.DefaultSampling(intent)
		if tokens > 0 {
			s.MaxTokens = tokens
		}
		s.Temperature = c.Sampling.Temperature
		opts = append(opts, translate.WithSampling(intent, s))
	}
	return opts
}
