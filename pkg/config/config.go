// Package config loads and validates service configuration from a YAML file
// with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported reasoning backends.
const (
	BackendAnthropic = "anthropic"
	BackendOpenAI    = "openai"
	BackendOllama    = "ollama"
)

// Default model names per backend.
const (
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	DefaultOpenAIModel    = "gpt-4o"
	DefaultOllamaModel    = "llama3.1"
	DefaultOllamaHost     = "http://localhost:11434"
)

// LLMConfig selects and configures the reasoning backend.
type LLMConfig struct {
	Backend         string `yaml:"backend"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	AnthropicModel  string `yaml:"anthropic_model"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	OpenAIModel     string `yaml:"openai_model"`
	OllamaHost      string `yaml:"ollama_host"`
	OllamaModel     string `yaml:"ollama_model"`
	MaxTokens       int    `yaml:"max_tokens"`
}

// ServerConfig configures the inbound webhook listener.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// PhoneConfig configures sender-number normalization.
type PhoneConfig struct {
	// DefaultCountryCode replaces a national "0" prefix, e.g. "+44".
	DefaultCountryCode string `yaml:"default_country_code"`
}

// Config is the root configuration object.
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Phone    PhoneConfig    `yaml:"phone"`
}

// Load reads configuration from the given YAML path (which may be empty or
// missing), overlays environment variables, applies defaults, and validates.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Missing file is fine; env + defaults carry the config.
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	overlay(&c.LLM.Backend, "PROPLINE_LLM_BACKEND")
	overlay(&c.LLM.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	overlay(&c.LLM.AnthropicModel, "PROPLINE_ANTHROPIC_MODEL")
	overlay(&c.LLM.OpenAIAPIKey, "OPENAI_API_KEY")
	overlay(&c.LLM.OpenAIModel, "PROPLINE_OPENAI_MODEL")
	overlay(&c.LLM.OllamaHost, "PROPLINE_OLLAMA_HOST")
	overlay(&c.LLM.OllamaModel, "PROPLINE_OLLAMA_MODEL")
	overlay(&c.Server.ListenAddr, "PROPLINE_LISTEN_ADDR")
	overlay(&c.Database.Path, "PROPLINE_DB_PATH")
	overlay(&c.Phone.DefaultCountryCode, "PROPLINE_COUNTRY_CODE")
}

func overlay(target *string, env string) {
	if v := os.Getenv(env); v != "" {
		*target = v
	}
}

func (c *Config) applyDefaults() {
	if c.LLM.Backend == "" {
		c.LLM.Backend = BackendAnthropic
	}
	if c.LLM.AnthropicModel == "" {
		c.LLM.AnthropicModel = DefaultAnthropicModel
	}
	if c.LLM.OpenAIModel == "" {
		c.LLM.OpenAIModel = DefaultOpenAIModel
	}
	if c.LLM.OllamaHost == "" {
		c.LLM.OllamaHost = DefaultOllamaHost
	}
	if c.LLM.OllamaModel == "" {
		c.LLM.OllamaModel = DefaultOllamaModel
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 1024
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Database.Path == "" {
		c.Database.Path = "propline.db"
	}
	if c.Phone.DefaultCountryCode == "" {
		c.Phone.DefaultCountryCode = "+44"
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	switch c.LLM.Backend {
	case BackendAnthropic:
		if c.LLM.AnthropicAPIKey == "" {
			return fmt.Errorf("anthropic backend selected but ANTHROPIC_API_KEY is not set")
		}
	case BackendOpenAI:
		if c.LLM.OpenAIAPIKey == "" {
			return fmt.Errorf("openai backend selected but OPENAI_API_KEY is not set")
		}
	case BackendOllama:
		// Local runtime, no key required.
	default:
		return fmt.Errorf("unknown llm backend %q (expected %s, %s or %s)",
			c.LLM.Backend, BackendAnthropic, BackendOpenAI, BackendOllama)
	}

	if !strings.HasPrefix(c.Phone.DefaultCountryCode, "+") {
		return fmt.Errorf("default_country_code must start with '+', got %q", c.Phone.DefaultCountryCode)
	}
	return nil
}
