package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akhildatla/dfagent/pkg/guard"
	"github.com/akhildatla/dfagent/pkg/llm"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GROQ_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "DFAGENT_PROVIDER", "DFAGENT_MODEL", "DFAGENT_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, llm.ProviderGroq, cfg.LLM.Provider)
	assert.Equal(t, 300, cfg.Sampling.CleanMaxTokens)
	assert.Equal(t, 400, cfg.Sampling.TransformMaxTokens)
	assert.Equal(t, 500, cfg.Sampling.VisualizeMaxTokens)
	assert.Equal(t, guard.DefaultTimeout, cfg.GetExecutionTimeout())
}

func TestLoad_ParsesYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: openai
  model: gpt-4o
  timeout: 15s
execution:
  timeout: 250ms
  max_steps: 5000
sampling:
  transform_max_tokens: 900
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, llm.ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 15*time.Second, cfg.GetLLMTimeout())
	assert.Equal(t, 250*time.Millisecond, cfg.GetExecutionTimeout())
	assert.EqualValues(t, 5000, cfg.Execution.MaxSteps)
	assert.Equal(t, 900, cfg.Sampling.TransformMaxTokens)
	assert.Equal(t, 300, cfg.Sampling.CleanMaxTokens)
	assert.Equal(t, llm.DefaultMaxRetries, cfg.LLM.MaxRetries)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unclosed"), 0o600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestLoad_EnvOverrides(t *testing.T) {
	tests := []struct {
		name         string
		env          map[string]string
		wantProvider string
		wantKey      string
	}{
		{"groq key", map[string]string{"GROQ_API_KEY": "gsk"}, llm.ProviderGroq, "gsk"},
		{"openai key", map[string]string{"OPENAI_API_KEY": "sk"}, llm.ProviderOpenAI, "sk"},
		{"gemini key", map[string]string{"GEMINI_API_KEY": "g"}, llm.ProviderGemini, "g"},
		{"groq wins", map[string]string{"GEMINI_API_KEY": "g", "GROQ_API_KEY": "gsk"}, llm.ProviderGroq, "gsk"},
		{"explicit provider", map[string]string{"OPENAI_API_KEY": "sk", "DFAGENT_PROVIDER": "Gemini"}, llm.ProviderGemini, "sk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
			require.NoError(t, err)
			assert.Equal(t, tt.wantProvider, cfg.LLM.Provider)
			assert.Equal(t, tt.wantKey, cfg.LLM.APIKey)
		})
	}
}

func TestLoad_ModelAndLevelOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DFAGENT_MODEL", "mixtral-8x7b")
	t.Setenv("DFAGENT_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "mixtral-8x7b", cfg.LLM.Model)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestSave_RoundTripWithoutKey(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.LLM.APIKey = "secret"
	cfg.Execution.MaxSteps = 42
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.Equal(t, "secret", cfg.LLM.APIKey)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.EqualValues(t, 42, loaded.Execution.MaxSteps)
	assert.Empty(t, loaded.LLM.APIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "claude" }, true},
		{"bad llm timeout", func(c *Config) { c.LLM.Timeout = "soon" }, true},
		{"bad execution timeout", func(c *Config) { c.Execution.Timeout = "5 parsecs" }, true},
		{"negative steps", func(c *Config) { c.Execution.MaxSteps = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDurationFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Timeout = "nope"
	cfg.Execution.Timeout = ""
	assert.Equal(t, llm.DefaultTimeout, cfg.GetLLMTimeout())
	assert.Equal(t, guard.DefaultTimeout, cfg.GetExecutionTimeout())
}

func TestLLMClientConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.APIKey = "k"
	cfg.LLM.Model = "m"
	cfg.LLM.Timeout = "3s"

	got := cfg.LLMClientConfig()
	assert.Equal(t, llm.Config{
		Provider:   llm.ProviderGroq,
		APIKey:     "k",
		Model:      "m",
		Timeout:    3 * time.Second,
		MaxRetries: llm.DefaultMaxRetries,
	}, got)
}

func TestGuardAndTranslateOptions(t *testing.T) {
	cfg := DefaultConfig()
	assert.Len(t, cfg.GuardOptions(), 3)
	cfg.Execution.Optimize = false
	assert.Len(t, cfg.GuardOptions(), 2)
	assert.Len(t, cfg.TranslateOptions(), 3)
}
