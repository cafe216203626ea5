package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/floresloli/pedidos-factura-service/internal/models"
)

// Provider sends a prompt to a language model and returns its raw text answer
type Provider interface {
	Name() string
	ExtractData(ctx context.Context, prompt string) (string, error)
}

// NewProvider builds the provider named in cfg.DefaultProvider.
// An empty name returns nil, nil: the AI engine is disabled.
func NewProvider(ctx context.Context, cfg models.AIConfig) (Provider, error) {
	switch strings.ToLower(cfg.DefaultProvider) {
	case "":
		return nil, nil
	case "openai":
		p, err := NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "gemini":
		p, err := NewGeminiProvider(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "ollama":
		return NewOllamaProvider(cfg.Ollama.BaseURL, cfg.Ollama.Model), nil
	default:
		return nil, fmt.Errorf("unknown AI provider: %s", cfg.DefaultProvider)
	}
}
