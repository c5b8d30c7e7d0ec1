package config

import (
	"fmt"
	"os"
)

// LLMProvider identifies the LLM provider type.
type LLMProvider string

const (
	LLMProviderOpenAI LLMProvider = "openai"
	LLMProviderOllama LLMProvider = "ollama"
)

// LLMConfig configures an LLM provider.
//
// Both providers speak the OpenAI-compatible chat-completions wire format;
// ollama is reached through its /v1 endpoint.
type LLMConfig struct {
	// Provider type (openai, ollama).
	Provider LLMProvider `yaml:"provider,omitempty" json:"provider,omitempty"`

	// Model name (e.g. "gpt-4o", "llama3.2").
	Model string `yaml:"model,omitempty" json:"model,omitempty"`

	// APIKey for authentication. Supports ${VAR} expansion.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty"`

	// BaseURL overrides the default API endpoint.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`

	// Temperature for generation.
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`

	// MaxTokens limits response length.
	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`

	// Timeout is the per-request timeout in seconds.
	Timeout int `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// SetDefaults applies default values.
func (c *LLMConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = LLMProviderOpenAI
	}

	if c.Model == "" {
		switch c.Provider {
		case LLMProviderOpenAI:
			c.Model = "gpt-4o"
		case LLMProviderOllama:
			c.Model = "llama3.2"
		}
	}

	if c.BaseURL == "" {
		switch c.Provider {
		case LLMProviderOpenAI:
			c.BaseURL = "https://api.openai.com/v1"
		case LLMProviderOllama:
			c.BaseURL = "http://localhost:11434/v1"
		}
	}

	if c.APIKey == "" && c.Provider == LLMProviderOpenAI {
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if c.Temperature == nil {
		temp := 0.7
		c.Temperature = &temp
	}

	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}

	if c.Timeout == 0 {
		c.Timeout = 120
	}
}

// Validate checks the LLM configuration.
func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case LLMProviderOpenAI, LLMProviderOllama:
	default:
		return fmt.Errorf("invalid llm provider %q (valid: openai, ollama)", c.Provider)
	}

	if c.Provider == LLMProviderOpenAI && c.APIKey == "" {
		return fmt.Errorf("openai provider requires api_key (or OPENAI_API_KEY)")
	}

	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2")
	}

	return nil
}
