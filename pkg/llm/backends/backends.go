// Package backends constructs the configured model backend client.
package backends

import (
	"fmt"

	"propline/pkg/config"
	"propline/pkg/llm"
	"propline/pkg/llm/anthropic"
	"propline/pkg/llm/ollama"
	"propline/pkg/llm/openai"
)

// NewClient returns the backend client selected by configuration.
func NewClient(cfg *config.LLMConfig) (llm.Client, error) {
	switch cfg.Backend {
	case config.BackendAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic backend requires an API key")
		}
		return anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel), nil
	case config.BackendOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai backend requires an API key")
		}
		return openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	case config.BackendOllama:
		return ollama.NewClient(cfg.OllamaHost, cfg.OllamaModel), nil
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.Backend)
	}
}
