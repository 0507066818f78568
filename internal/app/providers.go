package app

import (
	"context"
	"strings"

	"github.com/suPer8Hu/ai-chat-backend/internal/ai"
	"github.com/suPer8Hu/ai-chat-backend/internal/config"
)

// NewRegistry registers every completion backend the service can talk to.
func NewRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()

	reg.Register("openai", func(ctx context.Context, model string) (ai.Provider, error) {
		return ai.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, strings.TrimSpace(model)), nil
	})
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = "llama3:latest"
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m), nil
	})
	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = "openrouter/auto"
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, m, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})
	return reg
}

// Provider resolves the configured AI_PROVIDER / AI_MODEL pair.
func Provider(ctx context.Context, cfg config.Config) (ai.Provider, error) {
	return NewRegistry(cfg).Get(ctx, cfg.AIProvider, cfg.AIModel)
}
